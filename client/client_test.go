// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package client_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp1983/lido-dao/api"
	"github.com/mvp1983/lido-dao/builtin"
	"github.com/mvp1983/lido-dao/builtin/registry"
	"github.com/mvp1983/lido-dao/client"
	"github.com/mvp1983/lido-dao/eventdb"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/lvldb"
	"github.com/mvp1983/lido-dao/state"
)

var (
	governor   = lido.BytesToAddress([]byte("governor"))
	rewardAddr = lido.BytesToAddress([]byte("reward"))
)

func newClient(t *testing.T) *client.Client {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	st := state.New(db)
	_, err = builtin.Authorization.WithState(st).Init(governor)
	require.NoError(t, err)
	require.NoError(t, st.Stage().Commit())

	events, err := eventdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { events.Close() })

	reg := builtin.Registry.WithState(st, registry.WithEventSink(events))
	srv := httptest.NewServer(api.New(reg, st, events))
	t.Cleanup(srv.Close)
	return client.New(srv.URL)
}

func makeKeys(count int) (pubkeys, signatures []byte) {
	for i := 0; i < count; i++ {
		pubkeys = append(pubkeys, bytes.Repeat([]byte{byte(i) + 1}, lido.PubkeyLength)...)
		signatures = append(signatures, bytes.Repeat([]byte{byte(i) + 1}, lido.SignatureLength)...)
	}
	return
}

func TestClientFlow(t *testing.T) {
	c := newClient(t)

	id, err := c.AddOperator(governor, "alpha", rewardAddr)
	require.NoError(t, err)

	info, err := c.Operator(id, true)
	require.NoError(t, err)
	assert.Equal(t, "alpha", info.Name)

	pubkeys, signatures := makeKeys(3)
	require.NoError(t, c.AddKeys(governor, id, 3, pubkeys, signatures))
	require.NoError(t, c.SetVettedCount(governor, id, 2))

	allocated, gotPubkeys, _, err := c.RequestDeposits(governor, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), allocated)
	assert.Equal(t, pubkeys[:2*lido.PubkeyLength], gotPubkeys)

	gotPubkeys, _, used, err := c.Keys(id, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, pubkeys, gotPubkeys)
	assert.Equal(t, []bool{true, true, false}, used)

	stats, err := c.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Active)

	nonce, err := c.ChangeNonce()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), nonce)

	events, err := c.Events(&eventdb.Filter{Name: "OperatorAdded"})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestClientErrors(t *testing.T) {
	c := newClient(t)

	_, err := c.Operator(42, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = c.AddOperator(lido.BytesToAddress([]byte("nobody")), "x", rewardAddr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestSubscribeNonce(t *testing.T) {
	c := newClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := c.SubscribeNonce(ctx)
	require.NoError(t, err)

	// the current value is pushed immediately
	select {
	case nonce := <-ch:
		assert.Zero(t, nonce)
	case <-ctx.Done():
		t.Fatal("no initial nonce received")
	}
}
