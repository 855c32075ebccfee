// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package shares_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/shares"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/lvldb"
	"github.com/mvp1983/lido-dao/state"
)

var (
	contractAddr = lido.BytesToAddress([]byte("shares-contract"))
	alice        = lido.BytesToAddress([]byte("alice"))
	bob          = lido.BytesToAddress([]byte("bob"))
)

func newLedger(t *testing.T) *shares.Shares {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	return shares.New(contractAddr, state.New(db))
}

func balance(t *testing.T, ledger *shares.Shares, addr lido.Address) *big.Int {
	bal, err := ledger.BalanceOf(addr)
	require.NoError(t, err)
	return bal
}

func TestMintBurn(t *testing.T) {
	ledger := newLedger(t)

	require.NoError(t, ledger.Mint(alice, big.NewInt(100)))
	require.NoError(t, ledger.Mint(alice, big.NewInt(50)))
	assert.Equal(t, big.NewInt(150), balance(t, ledger, alice))

	require.NoError(t, ledger.Burn(alice, big.NewInt(30)))
	assert.Equal(t, big.NewInt(120), balance(t, ledger, alice))

	supply, err := ledger.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(120), supply)

	minted, err := ledger.TotalMinted()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(150), minted)

	burned, err := ledger.TotalBurned()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), burned)

	err = ledger.Burn(alice, big.NewInt(1000))
	assert.True(t, errs.IsInvariantViolation(err))
}

func TestTransfer(t *testing.T) {
	ledger := newLedger(t)
	require.NoError(t, ledger.Mint(alice, big.NewInt(100)))

	require.NoError(t, ledger.Transfer(alice, bob, big.NewInt(40)))
	assert.Equal(t, big.NewInt(60), balance(t, ledger, alice))
	assert.Equal(t, big.NewInt(40), balance(t, ledger, bob))

	err := ledger.Transfer(alice, bob, big.NewInt(100))
	assert.True(t, errs.IsInvariantViolation(err))

	// zero transfers are no-ops
	require.NoError(t, ledger.Transfer(bob, alice, new(big.Int)))
	assert.Equal(t, big.NewInt(40), balance(t, ledger, bob))
}

func TestHolder(t *testing.T) {
	ledger := newLedger(t)
	require.NoError(t, ledger.Mint(contractAddr, big.NewInt(100)))

	holder := shares.NewHolder(ledger, contractAddr)

	bal, err := holder.SharesOf(contractAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), bal)

	require.NoError(t, holder.TransferShares(alice, big.NewInt(25)))
	assert.Equal(t, big.NewInt(25), balance(t, ledger, alice))
	assert.Equal(t, big.NewInt(75), balance(t, ledger, contractAddr))
}
