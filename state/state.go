// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"

	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/mvp1983/lido-dao/kv"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/stackedmap"
)

const readCacheSize = 4096

// storageKey addresses one persistent slot: contract address + slot hash.
type storageKey struct {
	addr lido.Address
	key  lido.Bytes32
}

func (k storageKey) persistentKey() []byte {
	buf := make([]byte, 0, lido.AddressLength+32)
	buf = append(buf, k.addr[:]...)
	return append(buf, k.key[:]...)
}

// State provides checkpoint-revertible access to persistent storage slots.
// Values are opaque RLP-encoded blobs; an empty value means the slot is unset.
// All mutations stay in memory until staged and committed.
type State struct {
	store kv.GetPutter
	sm    *stackedmap.StackedMap[storageKey, []byte]
	cache *lru.Cache
}

// New creates state object backed by the given store.
func New(store kv.GetPutter) *State {
	cache, _ := lru.New(readCacheSize)

	state := &State{store: store, cache: cache}
	state.sm = stackedmap.New(state.readStore)
	// base level to host uncheckpointed writes
	state.sm.Push()
	return state
}

func (s *State) readStore(key storageKey) ([]byte, bool, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.([]byte), true, nil
	}
	raw, err := s.store.Get(key.persistentKey())
	if err != nil {
		if s.store.IsNotFound(err) {
			return nil, true, nil
		}
		return nil, false, errors.Wrap(err, "read storage")
	}
	s.cache.Add(key, raw)
	return raw, true, nil
}

// GetRawStorage returns the raw RLP-encoded value of the slot, empty if unset.
func (s *State) GetRawStorage(addr lido.Address, key lido.Bytes32) (rlp.RawValue, error) {
	raw, _, err := s.sm.Get(storageKey{addr, key})
	return raw, err
}

// SetRawStorage sets the raw RLP-encoded value of the slot. Empty raw unsets the slot.
func (s *State) SetRawStorage(addr lido.Address, key lido.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// GetStorage returns the word-sized value of the slot.
func (s *State) GetStorage(addr lido.Address, key lido.Bytes32) (lido.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return lido.Bytes32{}, err
	}
	if len(raw) == 0 {
		return lido.Bytes32{}, nil
	}
	var content []byte
	if err := rlp.DecodeBytes(raw, &content); err != nil {
		return lido.Bytes32{}, errors.Wrap(err, "decode storage word")
	}
	return lido.BytesToBytes32(content), nil
}

// SetStorage sets the word-sized value of the slot. Zero value unsets the slot.
func (s *State) SetStorage(addr lido.Address, key, value lido.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(addr, key, v)
}

// EncodeStorage sets the slot to the value produced by the encoder.
// An empty or nil result unsets the slot.
func (s *State) EncodeStorage(addr lido.Address, key lido.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return err
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage passes the raw slot value to the decoder.
// The decoder receives empty raw if the slot is unset.
func (s *State) DecodeStorage(addr lido.Address, key lido.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	return dec(raw)
}

// NewCheckpoint makes a checkpoint of the current state.
// It returns the checkpoint to be passed to RevertTo.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo reverts the state to the given checkpoint.
// Panics if the checkpoint does not exist.
func (s *State) RevertTo(checkpoint int) {
	if checkpoint < 1 {
		// the base level never reverts
		panic("invalid checkpoint")
	}
	s.sm.PopTo(checkpoint)
}

// Stage collects all pending writes into a commitable stage.
func (s *State) Stage() *Stage {
	changes := make(map[storageKey][]byte)
	s.sm.Journal(func(key storageKey, value []byte) bool {
		changes[key] = value
		return true
	})
	return &Stage{state: s, changes: changes}
}
