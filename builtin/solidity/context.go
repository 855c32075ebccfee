// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/state"
)

// Context binds a contract address to the state, scoping all storage
// access of a built-in contract to its own slot space.
type Context struct {
	address lido.Address
	state   *state.State
}

func NewContext(address lido.Address, state *state.State) *Context {
	return &Context{
		address: address,
		state:   state,
	}
}

func (c *Context) Address() lido.Address {
	return c.address
}

func (c *Context) State() *state.State {
	return c.state
}
