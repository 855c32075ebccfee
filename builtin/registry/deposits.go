// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"strconv"

	"github.com/mvp1983/lido-dao/builtin/authorization"
	"github.com/mvp1983/lido-dao/builtin/registry/allocation"
	"github.com/mvp1983/lido-dao/builtin/registry/globalstats"
	"github.com/mvp1983/lido-dao/lido"
)

// RequestDeposits assigns up to count deposit slots across active
// operators and marks the chosen keys deposited. It returns the number of
// keys actually assigned together with their concatenated pubkey and
// signature blobs, in ascending operator id order.
//
// The allocation itself is a pure function over a snapshot of (active
// count, capacity) pairs; this method commits its result. When nothing
// can be allocated the state is left untouched and empty blobs are
// returned.
func (r *Registry) RequestDeposits(caller lido.Address, count uint64) (allocated uint64, pubkeys, signatures []byte, err error) {
	err = r.mutate("request deposits", caller, authorization.RoleRequestDeposits, authorization.GlobalScope, func() error {
		operatorCount, err := r.storage.operatorCount.Get()
		if err != nil {
			return err
		}

		// snapshot active operators in ascending id order
		ids := make([]ID, 0, operatorCount)
		ops := make([]*Operator, 0, operatorCount)
		active := make([]uint64, 0, operatorCount)
		capacity := make([]uint64, 0, operatorCount)
		for id := ID(0); uint64(id) < operatorCount; id++ {
			op, err := r.storage.getOperator(id)
			if err != nil {
				return err
			}
			if !op.Active {
				continue
			}
			ids = append(ids, id)
			ops = append(ops, op)
			active = append(active, op.Deposited-op.Exited)
			capacity = append(capacity, op.Vetted-op.Exited)
		}

		total, perOperator, err := allocation.Distribute(active, capacity, count)
		if err != nil {
			return err
		}
		if total == 0 {
			return nil
		}

		pubkeys = make([]byte, 0, total*lido.PubkeyLength)
		signatures = make([]byte, 0, total*lido.SignatureLength)
		for i, id := range ids {
			assigned := perOperator[i]
			if assigned == 0 {
				continue
			}
			op := ops[i]
			for index := op.Deposited; index < op.Deposited+assigned; index++ {
				key, err := r.storage.getKey(id, index)
				if err != nil {
					return err
				}
				pubkeys = append(pubkeys, key.Pubkey...)
				signatures = append(signatures, key.Signature...)
			}
			op.Deposited += assigned
			if err := r.storage.setOperator(id, op); err != nil {
				return err
			}
			r.emit(EvDepositsAllocated, id, map[string]string{
				"assigned":  strconv.FormatUint(assigned, 10),
				"deposited": strconv.FormatUint(op.Deposited, 10),
			})
		}

		if err := r.stats.Apply(&globalstats.Delta{Deposited: int64(total)}); err != nil {
			return err
		}
		if err := r.bumpNonce(); err != nil {
			return err
		}
		allocated = total
		logger.Info("deposits allocated", "requested", count, "allocated", total)
		return nil
	})
	if err != nil {
		return 0, nil, nil, err
	}
	return allocated, pubkeys, signatures, nil
}
