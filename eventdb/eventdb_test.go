// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp1983/lido-dao/builtin/registry"
	"github.com/mvp1983/lido-dao/eventdb"
)

func newDB(t *testing.T) *eventdb.EventDB {
	db, err := eventdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndQuery(t *testing.T) {
	db := newDB(t)

	require.NoError(t, db.Record([]registry.Event{
		{Name: registry.EvOperatorAdded, Operator: 0, Data: map[string]string{"name": "alpha"}},
		{Name: registry.EvSigningKeyAdded, Operator: 0, Data: map[string]string{"index": "0"}},
	}))
	require.NoError(t, db.Record([]registry.Event{
		{Name: registry.EvOperatorAdded, Operator: 1, Data: map[string]string{"name": "beta"}},
	}))

	events, err := db.Query(&eventdb.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	// insertion order, monotonically increasing sequence
	assert.Equal(t, registry.EvOperatorAdded, events[0].Name)
	assert.Equal(t, "alpha", events[0].Data["name"])
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.Less(t, events[1].Seq, events[2].Seq)
}

func TestQueryFilters(t *testing.T) {
	db := newDB(t)

	require.NoError(t, db.Record([]registry.Event{
		{Name: registry.EvOperatorAdded, Operator: 0},
		{Name: registry.EvSigningKeyAdded, Operator: 0},
		{Name: registry.EvOperatorAdded, Operator: 1},
	}))

	events, err := db.Query(&eventdb.Filter{Name: registry.EvOperatorAdded})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	op := registry.ID(0)
	events, err = db.Query(&eventdb.Filter{Operator: &op})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = db.Query(&eventdb.Filter{Name: registry.EvOperatorAdded, Operator: &op})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, registry.ID(0), events[0].Operator)
}

func TestQueryPagination(t *testing.T) {
	db := newDB(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.Record([]registry.Event{
			{Name: registry.EvChangeNonceSet, Operator: registry.NoOperator},
		}))
	}

	events, err := db.Query(&eventdb.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = db.Query(&eventdb.Filter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecordEmpty(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Record(nil))

	events, err := db.Query(&eventdb.Filter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
