// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/pkg/errors"

	"github.com/mvp1983/lido-dao/stackedmap"
)

// Stage abstracts the batch-write of accumulated state changes.
type Stage struct {
	state   *State
	changes map[storageKey][]byte
}

// Commit writes all staged changes into the persistent store atomically,
// then collapses the in-memory overlay. After commit the state reads
// through to the store again.
func (stg *Stage) Commit() error {
	if len(stg.changes) == 0 {
		return nil
	}
	batch := stg.state.store.NewBatch()
	for key, value := range stg.changes {
		if len(value) == 0 {
			if err := batch.Delete(key.persistentKey()); err != nil {
				return errors.Wrap(err, "stage commit")
			}
		} else {
			if err := batch.Put(key.persistentKey(), value); err != nil {
				return errors.Wrap(err, "stage commit")
			}
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "stage commit")
	}

	for key, value := range stg.changes {
		stg.state.cache.Add(key, value)
	}

	// drop the overlay, committed values are now served by the store
	stg.state.sm = stackedmap.New(stg.state.readStore)
	stg.state.sm.Push()
	return nil
}
