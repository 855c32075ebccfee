// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"bytes"
	"encoding/hex"
	"strconv"

	"github.com/mvp1983/lido-dao/builtin/authorization"
	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/registry/globalstats"
	"github.com/mvp1983/lido-dao/lido"
)

var zeroPubkey [lido.PubkeyLength]byte

// AddKeys appends count signing keys to the operator. pubkeys and
// signatures are the concatenated fixed-width blobs; the whole call fails
// if any single public key is all-zero. The change nonce is bumped once
// up front.
func (r *Registry) AddKeys(caller lido.Address, id ID, count uint64, pubkeys, signatures []byte) error {
	return r.mutate("add signing keys", caller, authorization.RoleManageKeys, uint64(id), func() error {
		if count == 0 {
			return errs.NewInvalidArgument("key count must be positive")
		}
		// blob lengths are checked by division, an oversized count must
		// not wrap the expected length
		if uint64(len(pubkeys))%lido.PubkeyLength != 0 || uint64(len(pubkeys))/lido.PubkeyLength != count {
			return errs.NewInvalidArgument(
				"pubkeys blob length %d does not hold %d keys", len(pubkeys), count)
		}
		if uint64(len(signatures))%lido.SignatureLength != 0 || uint64(len(signatures))/lido.SignatureLength != count {
			return errs.NewInvalidArgument(
				"signatures blob length %d does not hold %d signatures", len(signatures), count)
		}

		op, err := r.storage.getOperator(id)
		if err != nil {
			return err
		}
		if err := r.bumpNonce(); err != nil {
			return err
		}

		for i := uint64(0); i < count; i++ {
			pubkey := pubkeys[i*lido.PubkeyLength : (i+1)*lido.PubkeyLength]
			signature := signatures[i*lido.SignatureLength : (i+1)*lido.SignatureLength]
			if bytes.Equal(pubkey, zeroPubkey[:]) {
				return errs.NewInvalidArgument("key %d is empty", i)
			}

			index := op.Total + i
			if err := r.storage.setKey(id, index, &SigningKey{
				Pubkey:    append([]byte(nil), pubkey...),
				Signature: append([]byte(nil), signature...),
			}); err != nil {
				return err
			}
			r.emit(EvSigningKeyAdded, id, map[string]string{
				"index":  strconv.FormatUint(index, 10),
				"pubkey": "0x" + hex.EncodeToString(pubkey),
			})
		}

		op.Total += count
		if err := r.storage.setOperator(id, op); err != nil {
			return err
		}
		if err := r.stats.Apply(&globalstats.Delta{Total: int64(count)}); err != nil {
			return err
		}
		logger.Info("added signing keys", "id", id, "count", count, "total", op.Total)
		return nil
	})
}

// RemoveKeys deletes count never-deposited keys starting at fromIndex.
// Removal walks from the highest index down so the swap-with-last scheme
// never invalidates a pending index. The change nonce is bumped once; the
// global totals are adjusted by the net effect.
func (r *Registry) RemoveKeys(caller lido.Address, id ID, fromIndex, count uint64) error {
	return r.mutate("remove signing keys", caller, authorization.RoleManageKeys, uint64(id), func() error {
		if count == 0 {
			return errs.NewInvalidArgument("key count must be positive")
		}
		op, err := r.storage.getOperator(id)
		if err != nil {
			return err
		}
		if count > op.Total || fromIndex > op.Total-count {
			return errs.NewNotFound(
				"operator %d has no %d keys from index %d", id, count, fromIndex)
		}
		if err := r.bumpNonce(); err != nil {
			return err
		}

		delta := &globalstats.Delta{}
		for i := count; i > 0; i-- {
			if err := r.removeUnusedKey(id, op, fromIndex+i-1, delta); err != nil {
				return err
			}
		}

		if err := r.storage.setOperator(id, op); err != nil {
			return err
		}
		if err := r.stats.Apply(delta); err != nil {
			return err
		}
		logger.Info("removed signing keys", "id", id, "from", fromIndex, "count", count, "total", op.Total)
		return nil
	})
}

// removeUnusedKey removes the slot at index by relocating the current
// last slot into it. A removal below the vetted bound clamps the vetted
// count down to the removed index: the swapped-in key has never been
// approved and must not surface as approved.
func (r *Registry) removeUnusedKey(id ID, op *Operator, index uint64, delta *globalstats.Delta) error {
	if index >= op.Total {
		return errs.NewNotFound("operator %d has no key at index %d", id, index)
	}
	if index < op.Deposited {
		return errs.NewInvariantViolation("key %d of operator %d is already deposited", index, id)
	}

	last := op.Total - 1
	if index != last {
		lastKey, err := r.storage.getKey(id, last)
		if err != nil {
			return err
		}
		if err := r.storage.setKey(id, index, lastKey); err != nil {
			return err
		}
	}
	if err := r.storage.unsetKey(id, last); err != nil {
		return err
	}

	op.Total = last
	delta.Total--
	if index < op.Vetted {
		delta.Vetted -= int64(op.Vetted - index)
		op.Vetted = index
	}

	r.emit(EvSigningKeyRemoved, id, map[string]string{
		"index": strconv.FormatUint(index, 10),
	})
	return nil
}

// TrimUnusedKeys discards all never-deposited keys, operator by operator
// in id order. The scan stops at the first operator that has nothing to
// trim; accumulated global deltas are applied once at the end and the
// nonce is bumped only if anything was trimmed.
func (r *Registry) TrimUnusedKeys(caller lido.Address) error {
	return r.mutate("trim unused keys", caller, authorization.RoleManageKeys, authorization.GlobalScope, func() error {
		count, err := r.storage.operatorCount.Get()
		if err != nil {
			return err
		}

		delta := &globalstats.Delta{}
		for id := ID(0); uint64(id) < count; id++ {
			op, err := r.storage.getOperator(id)
			if err != nil {
				return err
			}
			if op.Deposited == op.Total {
				// nothing to trim here ends the whole pass
				break
			}

			trimmed := op.Total - op.Deposited
			delta.Total -= int64(trimmed)
			delta.Vetted -= int64(op.Vetted - op.Deposited)
			op.Total = op.Deposited
			op.Vetted = op.Deposited
			if err := r.storage.setOperator(id, op); err != nil {
				return err
			}
			r.emit(EvOperatorKeysTrimmed, id, map[string]string{
				"trimmed": strconv.FormatUint(trimmed, 10),
			})
		}

		if delta.IsZero() {
			return nil
		}
		if err := r.stats.Apply(delta); err != nil {
			return err
		}
		if err := r.bumpNonce(); err != nil {
			return err
		}
		logger.Info("trimmed unused keys", "totalDelta", delta.Total)
		return nil
	})
}

// TotalKeyCount returns the number of key slots of the operator.
func (r *Registry) TotalKeyCount(id ID) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := r.storage.getOperator(id)
	if err != nil {
		return 0, err
	}
	return op.Total, nil
}

// UnusedKeyCount returns the number of not-yet-deposited keys.
func (r *Registry) UnusedKeyCount(id ID) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := r.storage.getOperator(id)
	if err != nil {
		return 0, err
	}
	return op.Total - op.Deposited, nil
}

// GetKey returns the key slot at index, marked used if it sits below the
// deposited bound.
func (r *Registry) GetKey(id ID, index uint64) (*KeyInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := r.storage.getOperator(id)
	if err != nil {
		return nil, err
	}
	if index >= op.Total {
		return nil, errs.NewNotFound("operator %d has no key at index %d", id, index)
	}
	key, err := r.storage.getKey(id, index)
	if err != nil {
		return nil, err
	}
	return &KeyInfo{
		Pubkey:    key.Pubkey,
		Signature: key.Signature,
		Used:      index < op.Deposited,
	}, nil
}

// GetKeysRange reads limit key slots starting at offset, returning
// concatenated blobs plus the per-key used flags.
func (r *Registry) GetKeysRange(id ID, offset, limit uint64) (pubkeys, signatures []byte, used []bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := r.storage.getOperator(id)
	if err != nil {
		return nil, nil, nil, err
	}
	if offset > op.Total || limit > op.Total-offset {
		return nil, nil, nil, errs.NewInvalidArgument(
			"range of %d keys at offset %d exceeds key count %d of operator %d", limit, offset, op.Total, id)
	}

	pubkeys = make([]byte, 0, limit*lido.PubkeyLength)
	signatures = make([]byte, 0, limit*lido.SignatureLength)
	used = make([]bool, 0, limit)
	for index := offset; index < offset+limit; index++ {
		key, err := r.storage.getKey(id, index)
		if err != nil {
			return nil, nil, nil, err
		}
		pubkeys = append(pubkeys, key.Pubkey...)
		signatures = append(signatures, key.Signature...)
		used = append(used, index < op.Deposited)
	}
	return pubkeys, signatures, used, nil
}
