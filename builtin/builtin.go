// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package builtin binds the well-known contracts of the protocol to
// their fixed addresses.
package builtin

import (
	"github.com/mvp1983/lido-dao/builtin/authorization"
	"github.com/mvp1983/lido-dao/builtin/registry"
	"github.com/mvp1983/lido-dao/builtin/shares"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/state"
)

// Builtin contracts binding.
var (
	Authorization = &authorizationContract{contractAddress("Authorization")}
	Shares        = &sharesContract{contractAddress("Shares")}
	Registry      = &registryContract{contractAddress("NodeOperatorsRegistry")}
)

func contractAddress(name string) lido.Address {
	return lido.BytesToAddress(lido.Blake2b([]byte(name)).Bytes()[12:])
}

type (
	authorizationContract struct{ Address lido.Address }
	sharesContract        struct{ Address lido.Address }
	registryContract      struct{ Address lido.Address }
)

func (a *authorizationContract) WithState(state *state.State) *authorization.Authorization {
	return authorization.New(a.Address, state)
}

func (s *sharesContract) WithState(state *state.State) *shares.Shares {
	return shares.New(s.Address, state)
}

// WithState wires the registry with its collaborators: the role gate and
// the shares ledger holding the registry's reward balance.
func (r *registryContract) WithState(state *state.State, options ...registry.Option) *registry.Registry {
	auth := Authorization.WithState(state)
	ledger := shares.NewHolder(Shares.WithState(state), r.Address)
	return registry.New(r.Address, state, auth, ledger, options...)
}
