// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package globalstats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/registry/globalstats"
	"github.com/mvp1983/lido-dao/builtin/solidity"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/lvldb"
	"github.com/mvp1983/lido-dao/state"
)

func newService(t *testing.T) *globalstats.Service {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	sctx := solidity.NewContext(lido.BytesToAddress([]byte("stats")), state.New(db))
	return globalstats.New(sctx)
}

func TestApply(t *testing.T) {
	service := newService(t)

	totals, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, &globalstats.Totals{}, totals)

	require.NoError(t, service.Apply(&globalstats.Delta{Total: 10, Vetted: 5}))
	require.NoError(t, service.Apply(&globalstats.Delta{Total: -2, Deposited: 3, Exited: 1}))

	totals, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, &globalstats.Totals{Total: 8, Vetted: 5, Deposited: 3, Exited: 1}, totals)
}

func TestApplyUnderflow(t *testing.T) {
	service := newService(t)

	err := service.Apply(&globalstats.Delta{Vetted: -1})
	assert.True(t, errs.IsInvariantViolation(err))
}

func TestSet(t *testing.T) {
	service := newService(t)

	want := &globalstats.Totals{Total: 7, Vetted: 6, Deposited: 5, Exited: 2}
	service.Set(want)

	totals, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, want, totals)
}

func TestDelta(t *testing.T) {
	d := &globalstats.Delta{Total: 1}
	assert.False(t, d.IsZero())
	assert.True(t, (&globalstats.Delta{}).IsZero())

	d.Add(&globalstats.Delta{Total: -1, Exited: 2})
	assert.Equal(t, &globalstats.Delta{Exited: 2}, d)
	d.Add(nil)
	assert.Equal(t, &globalstats.Delta{Exited: 2}, d)
}
