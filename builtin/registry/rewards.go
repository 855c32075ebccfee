// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math/big"

	"github.com/mvp1983/lido-dao/builtin/authorization"
	"github.com/mvp1983/lido-dao/lido"
)

// Distribution is the computed reward split across active operators.
// Recipients and amounts are parallel, in ascending operator id order;
// operators contributing no active validators are omitted entirely.
type Distribution struct {
	Recipients []lido.Address
	Amounts    []*big.Int
}

// DistributedTotal sums the individual amounts.
func (d *Distribution) DistributedTotal() *big.Int {
	total := new(big.Int)
	for _, amount := range d.Amounts {
		total.Add(total, amount)
	}
	return total
}

// computeDistribution splits totalShares proportionally to each active
// operator's active validator count. The per-validator reward is the
// floor of totalShares over the total active validator count; the
// division remainder stays undistributed.
func (r *Registry) computeDistribution(totalShares *big.Int) (*Distribution, error) {
	operatorCount, err := r.storage.operatorCount.Get()
	if err != nil {
		return nil, err
	}

	recipients := make([]lido.Address, 0, operatorCount)
	validators := make([]uint64, 0, operatorCount)
	var totalActive uint64
	for id := ID(0); uint64(id) < operatorCount; id++ {
		op, err := r.storage.getOperator(id)
		if err != nil {
			return nil, err
		}
		if !op.Active {
			continue
		}
		activeValidators := op.Deposited - op.Exited
		if activeValidators == 0 {
			continue
		}
		recipients = append(recipients, op.RewardAddress)
		validators = append(validators, activeValidators)
		totalActive += activeValidators
	}

	if totalActive == 0 {
		return &Distribution{}, nil
	}

	perValidator := new(big.Int).Div(totalShares, new(big.Int).SetUint64(totalActive))
	amounts := make([]*big.Int, len(recipients))
	for i, count := range validators {
		amounts[i] = new(big.Int).Mul(perValidator, new(big.Int).SetUint64(count))
	}
	return &Distribution{Recipients: recipients, Amounts: amounts}, nil
}

// ComputeDistribution previews the reward split of totalShares without
// touching the ledger.
func (r *Registry) ComputeDistribution(totalShares *big.Int) (*Distribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.computeDistribution(totalShares)
}

// DistributeRewards splits the registry's current share balance across
// active operators and hands each portion to the external ledger for
// transfer. Returns the total amount distributed.
func (r *Registry) DistributeRewards(caller lido.Address) (*big.Int, error) {
	distributed := new(big.Int)
	err := r.mutate("distribute rewards", caller, authorization.RoleDistributeRewards, authorization.GlobalScope, func() error {
		totalShares, err := r.ledger.SharesOf(r.addr)
		if err != nil {
			return err
		}

		dist, err := r.computeDistribution(totalShares)
		if err != nil {
			return err
		}
		for i, recipient := range dist.Recipients {
			if err := r.ledger.TransferShares(recipient, dist.Amounts[i]); err != nil {
				return err
			}
			distributed.Add(distributed, dist.Amounts[i])
		}

		r.emit(EvRewardsDistributed, NoOperator, map[string]string{
			"total":       totalShares.String(),
			"distributed": distributed.String(),
		})
		logger.Info("rewards distributed", "total", totalShares, "distributed", distributed,
			"recipients", len(dist.Recipients))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return distributed, nil
}
