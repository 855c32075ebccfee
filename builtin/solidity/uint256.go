// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"math/big"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/lido"
)

// Uint256 is a wrapper for storage and retrieval of an unsigned big
// integer, similar to storing an uint256 in a smart contract.
// If the provided value exceeds 256 bits, it will be truncated to fit
// into lido.Bytes32.
type Uint256 struct {
	context *Context
	pos     lido.Bytes32
}

func NewUint256(context *Context, slot lido.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: slot}
}

func (u *Uint256) Get() (*big.Int, error) {
	word, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(word.Bytes()), nil
}

func (u *Uint256) Set(value *big.Int) {
	u.context.state.SetStorage(u.context.address, u.pos, lido.BytesToBytes32(value.Bytes()))
}

func (u *Uint256) Add(value *big.Int) error {
	current, err := u.Get()
	if err != nil {
		return err
	}
	u.Set(current.Add(current, value))
	return nil
}

func (u *Uint256) Sub(value *big.Int) error {
	current, err := u.Get()
	if err != nil {
		return err
	}
	if current.Cmp(value) < 0 {
		return errs.NewInvariantViolation("balance underflow")
	}
	u.Set(current.Sub(current, value))
	return nil
}
