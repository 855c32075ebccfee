// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package authorization

import (
	"encoding/binary"
	"math"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/solidity"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/state"
)

// GlobalScope marks a grant valid for every operator.
const GlobalScope = uint64(math.MaxUint64)

// Role tags of the registry's mutating surface. A grant pairs a role with
// a holder address and a scope (one operator id, or GlobalScope).
var (
	RoleAddOperator         = roleTag("role-add-operator")
	RoleSetOperatorActive   = roleTag("role-set-operator-active")
	RoleSetOperatorName     = roleTag("role-set-operator-name")
	RoleSetOperatorAddress  = roleTag("role-set-operator-address")
	RoleSetVettedCount      = roleTag("role-set-vetted-count")
	RoleReportExited        = roleTag("role-report-exited")
	RoleUnsafeCorrectExited = roleTag("role-unsafe-correct-exited")
	RoleManageKeys          = roleTag("role-manage-keys")
	RoleRequestDeposits     = roleTag("role-request-deposits")
	RoleDistributeRewards   = roleTag("role-distribute-rewards")
)

var (
	slotGovernor = lido.BytesToBytes32([]byte("governor"))
	slotGrants   = lido.BytesToBytes32([]byte("role-grants"))
)

var rolesByName = map[string]lido.Bytes32{
	"add-operator":          RoleAddOperator,
	"set-operator-active":   RoleSetOperatorActive,
	"set-operator-name":     RoleSetOperatorName,
	"set-operator-address":  RoleSetOperatorAddress,
	"set-vetted-count":      RoleSetVettedCount,
	"report-exited":         RoleReportExited,
	"unsafe-correct-exited": RoleUnsafeCorrectExited,
	"manage-keys":           RoleManageKeys,
	"request-deposits":      RoleRequestDeposits,
	"distribute-rewards":    RoleDistributeRewards,
}

// RoleByName resolves a role tag from its configuration name.
func RoleByName(name string) (lido.Bytes32, bool) {
	role, ok := rolesByName[name]
	return role, ok
}

func roleTag(name string) lido.Bytes32 {
	return lido.Blake2b([]byte(name))
}

type grantKey struct {
	role  lido.Bytes32
	who   lido.Address
	scope uint64
}

func (k grantKey) Bytes() []byte {
	buf := make([]byte, 0, 32+lido.AddressLength+8)
	buf = append(buf, k.role[:]...)
	buf = append(buf, k.who[:]...)
	return binary.BigEndian.AppendUint64(buf, k.scope)
}

// Authorization implements the role gate of the registry: which address
// may invoke which mutating operation, optionally scoped to one operator.
type Authorization struct {
	governor *solidity.Address
	grants   *solidity.Mapping[grantKey, bool]
}

// New creates a new instance bound to the given contract address.
func New(addr lido.Address, state *state.State) *Authorization {
	context := solidity.NewContext(addr, state)
	return &Authorization{
		governor: solidity.NewAddress(context, slotGovernor),
		grants:   solidity.NewMapping[grantKey, bool](context, slotGrants),
	}
}

// Init sets the governor address. It is a no-op if a governor is already set.
func (a *Authorization) Init(governor lido.Address) (bool, error) {
	if governor.IsZero() {
		return false, errs.NewInvalidArgument("governor must not be zero")
	}
	current, err := a.governor.Get()
	if err != nil {
		return false, err
	}
	if !current.IsZero() {
		return false, nil
	}
	a.governor.Set(governor)
	return true, nil
}

// Governor returns the governor address.
func (a *Authorization) Governor() (lido.Address, error) {
	return a.governor.Get()
}

func (a *Authorization) requireGovernor(caller lido.Address) error {
	governor, err := a.governor.Get()
	if err != nil {
		return err
	}
	if governor.IsZero() || caller != governor {
		return errs.NewUnauthorized("caller %v is not the governor", caller)
	}
	return nil
}

// Grant lets the governor grant role to who, within scope.
func (a *Authorization) Grant(caller lido.Address, role lido.Bytes32, who lido.Address, scope uint64) error {
	if err := a.requireGovernor(caller); err != nil {
		return err
	}
	return a.grants.Set(grantKey{role, who, scope}, true)
}

// Revoke lets the governor revoke a previously granted role.
func (a *Authorization) Revoke(caller lido.Address, role lido.Bytes32, who lido.Address, scope uint64) error {
	if err := a.requireGovernor(caller); err != nil {
		return err
	}
	return a.grants.Unset(grantKey{role, who, scope})
}

// Authorized reports whether caller holds role for the given operator
// scope. A global grant satisfies any scope; the governor is implicitly
// authorized for everything.
func (a *Authorization) Authorized(caller lido.Address, role lido.Bytes32, scope uint64) (bool, error) {
	governor, err := a.governor.Get()
	if err != nil {
		return false, err
	}
	if !governor.IsZero() && caller == governor {
		return true, nil
	}
	if scope != GlobalScope {
		ok, err := a.grants.Get(grantKey{role, caller, scope})
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return a.grants.Get(grantKey{role, caller, GlobalScope})
}
