// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"github.com/mvp1983/lido-dao/lido"
)

// Address is a wrapper for storage and retrieval of a single account
// address held in its own slot.
type Address struct {
	context *Context
	pos     lido.Bytes32
}

func NewAddress(context *Context, slot lido.Bytes32) *Address {
	return &Address{context: context, pos: slot}
}

func (a *Address) Get() (lido.Address, error) {
	word, err := a.context.state.GetStorage(a.context.address, a.pos)
	if err != nil {
		return lido.Address{}, err
	}
	return lido.BytesToAddress(word.Bytes()), nil
}

func (a *Address) Set(value lido.Address) {
	a.context.state.SetStorage(a.context.address, a.pos, lido.BytesToBytes32(value.Bytes()))
}
