// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/registry/globalstats"
	"github.com/mvp1983/lido-dao/builtin/solidity"
	"github.com/mvp1983/lido-dao/lido"
)

// StorageVersion is the current layout version of the registry storage.
// Version 1 introduced the incrementally maintained global aggregates.
const StorageVersion = 1

var slotStorageVersion = nameToSlot("storage-version")

// RecomputeAggregates rebuilds the global key totals and the active
// operator cache from the per-operator records. This is the only code
// path allowed to derive the aggregates by full scan; it exists for the
// one-time migration after an upgrade and for drift diagnosis.
//
// Only the governor may run it. progress, if non-nil, is invoked after
// each operator scanned.
func (r *Registry) RecomputeAggregates(caller lido.Address, progress func(done, total uint64)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	governor, err := r.auth.Governor()
	if err != nil {
		return err
	}
	if governor.IsZero() || caller != governor {
		return errs.NewUnauthorized("caller %v is not the governor", caller)
	}

	checkpoint := r.state.NewCheckpoint()
	if err := r.recomputeAggregates(progress); err != nil {
		r.state.RevertTo(checkpoint)
		return err
	}
	return nil
}

func (r *Registry) recomputeAggregates(progress func(done, total uint64)) error {
	count, err := r.storage.operatorCount.Get()
	if err != nil {
		return err
	}

	totals := &globalstats.Totals{}
	var activeOperators uint64
	for id := ID(0); uint64(id) < count; id++ {
		op, err := r.storage.getOperator(id)
		if err != nil {
			return err
		}
		if err := op.CheckInvariants(); err != nil {
			return err
		}
		totals.Total += op.Total
		totals.Vetted += op.Vetted
		totals.Deposited += op.Deposited
		totals.Exited += op.Exited
		if op.Active {
			activeOperators++
		}
		if progress != nil {
			progress(uint64(id)+1, count)
		}
	}

	r.stats.Set(totals)
	r.storage.activeOperatorCount.Set(activeOperators)

	version := solidity.NewUint64(r.storage.context, slotStorageVersion)
	current, err := version.Get()
	if err != nil {
		return err
	}
	if current < StorageVersion {
		version.Set(StorageVersion)
	}
	logger.Info("aggregates recomputed", "operators", count, "active", activeOperators,
		"totalKeys", totals.Total)
	return nil
}
