// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package authorization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp1983/lido-dao/builtin/authorization"
	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/lvldb"
	"github.com/mvp1983/lido-dao/state"
)

var (
	contractAddr = lido.BytesToAddress([]byte("auth-contract"))
	governor     = lido.BytesToAddress([]byte("governor"))
	keeper       = lido.BytesToAddress([]byte("keeper"))
	stranger     = lido.BytesToAddress([]byte("stranger"))
)

func newAuth(t *testing.T) *authorization.Authorization {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	auth := authorization.New(contractAddr, state.New(db))
	applied, err := auth.Init(governor)
	require.NoError(t, err)
	require.True(t, applied)
	return auth
}

func TestInit(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	auth := authorization.New(contractAddr, state.New(db))

	_, err = auth.Init(lido.Address{})
	assert.True(t, errs.IsInvalidArgument(err))

	applied, err := auth.Init(governor)
	require.NoError(t, err)
	assert.True(t, applied)

	// a second init is a no-op, the governor stays
	applied, err = auth.Init(stranger)
	require.NoError(t, err)
	assert.False(t, applied)

	current, err := auth.Governor()
	require.NoError(t, err)
	assert.Equal(t, governor, current)
}

func TestGovernorImplicitlyAuthorized(t *testing.T) {
	auth := newAuth(t)

	ok, err := auth.Authorized(governor, authorization.RoleManageKeys, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.Authorized(stranger, authorization.RoleManageKeys, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScopedGrant(t *testing.T) {
	auth := newAuth(t)

	require.NoError(t, auth.Grant(governor, authorization.RoleManageKeys, keeper, 3))

	ok, err := auth.Authorized(keeper, authorization.RoleManageKeys, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	// a scoped grant covers neither other operators nor the global scope
	ok, err = auth.Authorized(keeper, authorization.RoleManageKeys, 4)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = auth.Authorized(keeper, authorization.RoleManageKeys, authorization.GlobalScope)
	require.NoError(t, err)
	assert.False(t, ok)

	// nor a different role
	ok, err = auth.Authorized(keeper, authorization.RoleSetVettedCount, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGlobalGrant(t *testing.T) {
	auth := newAuth(t)

	require.NoError(t, auth.Grant(governor, authorization.RoleReportExited, keeper, authorization.GlobalScope))

	for _, scope := range []uint64{0, 42, authorization.GlobalScope} {
		ok, err := auth.Authorized(keeper, authorization.RoleReportExited, scope)
		require.NoError(t, err)
		assert.True(t, ok, "global grant must satisfy scope %d", scope)
	}
}

func TestRevoke(t *testing.T) {
	auth := newAuth(t)

	require.NoError(t, auth.Grant(governor, authorization.RoleManageKeys, keeper, 1))
	require.NoError(t, auth.Revoke(governor, authorization.RoleManageKeys, keeper, 1))

	ok, err := auth.Authorized(keeper, authorization.RoleManageKeys, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOnlyGovernorGrants(t *testing.T) {
	auth := newAuth(t)

	err := auth.Grant(stranger, authorization.RoleManageKeys, keeper, 1)
	assert.True(t, errs.IsUnauthorized(err))
	err = auth.Revoke(stranger, authorization.RoleManageKeys, keeper, 1)
	assert.True(t, errs.IsUnauthorized(err))
}

func TestRoleByName(t *testing.T) {
	role, ok := authorization.RoleByName("manage-keys")
	require.True(t, ok)
	assert.Equal(t, authorization.RoleManageKeys, role)

	_, ok = authorization.RoleByName("no-such-role")
	assert.False(t, ok)
}
