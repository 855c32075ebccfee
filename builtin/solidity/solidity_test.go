// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity_test

import (
	"encoding/binary"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/solidity"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/lvldb"
	"github.com/mvp1983/lido-dao/state"
)

var contractAddr = lido.BytesToAddress([]byte("contract"))

func newContext(t *testing.T) *solidity.Context {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	return solidity.NewContext(contractAddr, state.New(db))
}

type testKey uint64

func (k testKey) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(k))
}

type record struct {
	Label string
	Count uint64
}

func TestMapping(t *testing.T) {
	m := solidity.NewMapping[testKey, *record](newContext(t), lido.BytesToBytes32([]byte("records")))

	// vacant slots yield a zero element
	got, err := m.Get(1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Label)

	require.NoError(t, m.Set(1, &record{Label: "one", Count: 11}))
	require.NoError(t, m.Set(2, &record{Label: "two", Count: 22}))

	got, err = m.Get(1)
	require.NoError(t, err)
	assert.Equal(t, &record{Label: "one", Count: 11}, got)

	require.NoError(t, m.Unset(1))
	got, err = m.Get(1)
	require.NoError(t, err)
	assert.Empty(t, got.Label)

	// neighbours are untouched
	got, err = m.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Label)
}

func TestMappingPositionsDisjoint(t *testing.T) {
	sctx := newContext(t)
	a := solidity.NewMapping[testKey, uint64](sctx, lido.BytesToBytes32([]byte("a")))
	b := solidity.NewMapping[testKey, uint64](sctx, lido.BytesToBytes32([]byte("b")))

	assert.NotEqual(t, a.Position(1), b.Position(1))
	assert.NotEqual(t, a.Position(1), a.Position(2))
}

func TestUint64(t *testing.T) {
	counter := solidity.NewUint64(newContext(t), lido.BytesToBytes32([]byte("counter")))

	value, err := counter.Get()
	require.NoError(t, err)
	assert.Zero(t, value)

	require.NoError(t, counter.Add(5))
	require.NoError(t, counter.Sub(2))
	value, err = counter.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), value)

	err = counter.Sub(4)
	assert.True(t, errs.IsInvariantViolation(err))

	counter.Set(math.MaxUint64)
	err = counter.Add(1)
	assert.True(t, errs.IsInvariantViolation(err))

	// failed arithmetic leaves the value untouched
	value, err = counter.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), value)
}

func TestUint256(t *testing.T) {
	amount := solidity.NewUint256(newContext(t), lido.BytesToBytes32([]byte("amount")))

	require.NoError(t, amount.Add(big.NewInt(100)))
	require.NoError(t, amount.Sub(big.NewInt(40)))

	value, err := amount.Get()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(60), value)

	err = amount.Sub(big.NewInt(61))
	assert.True(t, errs.IsInvariantViolation(err))
}

func TestAddress(t *testing.T) {
	slot := solidity.NewAddress(newContext(t), lido.BytesToBytes32([]byte("owner")))

	addr, err := slot.Get()
	require.NoError(t, err)
	assert.True(t, addr.IsZero())

	want := lido.BytesToAddress([]byte("owner-account"))
	slot.Set(want)
	addr, err = slot.Get()
	require.NoError(t, err)
	assert.Equal(t, want, addr)
}
