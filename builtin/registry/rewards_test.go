// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp1983/lido-dao/builtin"
	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/registry"
	"github.com/mvp1983/lido-dao/builtin/shares"
	"github.com/mvp1983/lido-dao/lido"
)

// setupRewards builds two operators with 3 and 1 active validators.
func setupRewards(t *testing.T) (*registry.Registry, *shares.Shares, registry.ID, registry.ID) {
	reg, st := newTestRegistry(t)
	ledger := builtin.Shares.WithState(st)

	a := addOperator(t, reg, "alpha")
	b := addOperator(t, reg, "beta")

	pubkeys, signatures := makeKeys(6)
	require.NoError(t, reg.AddKeys(governor, a, 6, pubkeys, signatures))
	require.NoError(t, reg.AddKeys(governor, b, 6, pubkeys, signatures))
	require.NoError(t, reg.SetVettedCount(governor, a, 3))
	allocated, _, _, err := reg.RequestDeposits(governor, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(3), allocated)

	require.NoError(t, reg.SetVettedCount(governor, b, 4))
	allocated, _, _, err = reg.RequestDeposits(governor, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), allocated)

	return reg, ledger, a, b
}

func balanceOf(t *testing.T, ledger *shares.Shares, addr lido.Address) *big.Int {
	balance, err := ledger.BalanceOf(addr)
	require.NoError(t, err)
	return balance
}

func TestComputeDistribution(t *testing.T) {
	reg, _, _, _ := setupRewards(t)

	dist, err := reg.ComputeDistribution(big.NewInt(400))
	require.NoError(t, err)
	require.Len(t, dist.Recipients, 2)
	assert.Equal(t, rewardAddr("alpha"), dist.Recipients[0])
	assert.Equal(t, rewardAddr("beta"), dist.Recipients[1])
	// 400 / 4 active validators = 100 per validator
	assert.Equal(t, big.NewInt(300), dist.Amounts[0])
	assert.Equal(t, big.NewInt(100), dist.Amounts[1])
	assert.Equal(t, big.NewInt(400), dist.DistributedTotal())
}

func TestComputeDistributionRemainder(t *testing.T) {
	reg, _, _, _ := setupRewards(t)

	// 10 / 4 floors to 2 per validator, the remainder stays put
	dist, err := reg.ComputeDistribution(big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(6), dist.Amounts[0])
	assert.Equal(t, big.NewInt(2), dist.Amounts[1])
	assert.Equal(t, big.NewInt(8), dist.DistributedTotal())
}

func TestComputeDistributionNoActiveValidators(t *testing.T) {
	reg, _ := newTestRegistry(t)
	addOperator(t, reg, "alpha")

	dist, err := reg.ComputeDistribution(big.NewInt(100))
	require.NoError(t, err)
	assert.Empty(t, dist.Recipients)
	assert.Zero(t, dist.DistributedTotal().Sign())
}

func TestDistributeRewards(t *testing.T) {
	reg, ledger, _, _ := setupRewards(t)
	require.NoError(t, ledger.Mint(reg.Address(), big.NewInt(403)))

	distributed, err := reg.DistributeRewards(governor)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(400), distributed)

	assert.Equal(t, big.NewInt(300), balanceOf(t, ledger, rewardAddr("alpha")))
	assert.Equal(t, big.NewInt(100), balanceOf(t, ledger, rewardAddr("beta")))
	// the floor-division remainder stays on the registry account
	assert.Equal(t, big.NewInt(3), balanceOf(t, ledger, reg.Address()))
}

func TestDistributeRewardsSkipsInactive(t *testing.T) {
	reg, ledger, a, _ := setupRewards(t)
	require.NoError(t, reg.Deactivate(governor, a))
	require.NoError(t, ledger.Mint(reg.Address(), big.NewInt(100)))

	distributed, err := reg.DistributeRewards(governor)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), distributed)

	assert.Zero(t, balanceOf(t, ledger, rewardAddr("alpha")).Sign())
	assert.Equal(t, big.NewInt(100), balanceOf(t, ledger, rewardAddr("beta")))
}

func TestDistributeRewardsExitedReduceWeight(t *testing.T) {
	reg, ledger, a, _ := setupRewards(t)
	// alpha drops from 3 active to 1
	require.NoError(t, reg.UpdateExitedCount(governor, a, 2))
	require.NoError(t, ledger.Mint(reg.Address(), big.NewInt(200)))

	distributed, err := reg.DistributeRewards(governor)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), distributed)
	assert.Equal(t, big.NewInt(100), balanceOf(t, ledger, rewardAddr("alpha")))
	assert.Equal(t, big.NewInt(100), balanceOf(t, ledger, rewardAddr("beta")))
}

func TestDistributeRewardsUnauthorized(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.DistributeRewards(stranger)
	assert.True(t, errs.IsUnauthorized(err))
}

func TestRecomputeAggregates(t *testing.T) {
	reg, _, _, _ := setupRewards(t)

	before, err := reg.GlobalStats()
	require.NoError(t, err)

	var calls int
	require.NoError(t, reg.RecomputeAggregates(governor, func(done, total uint64) {
		calls++
		assert.Equal(t, uint64(2), total)
	}))
	assert.Equal(t, 2, calls)

	after, err := reg.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, before, after, "a clean registry recomputes to identical totals")

	err = reg.RecomputeAggregates(stranger, nil)
	assert.True(t, errs.IsUnauthorized(err))
}
