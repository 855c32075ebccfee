// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"encoding/binary"
	"math"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/lido"
)

// Uint64 is a wrapper for storage and retrieval of a single uint64
// counter held in its own slot. Arithmetic is checked: overflow and
// underflow fail instead of wrapping.
type Uint64 struct {
	context *Context
	pos     lido.Bytes32
}

func NewUint64(context *Context, slot lido.Bytes32) *Uint64 {
	return &Uint64{context: context, pos: slot}
}

func (u *Uint64) Get() (uint64, error) {
	word, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(word[24:]), nil
}

func (u *Uint64) Set(value uint64) {
	var word lido.Bytes32
	binary.BigEndian.PutUint64(word[24:], value)
	u.context.state.SetStorage(u.context.address, u.pos, word)
}

// Add increases the counter by delta, failing on overflow.
func (u *Uint64) Add(delta uint64) error {
	value, err := u.Get()
	if err != nil {
		return err
	}
	if delta > math.MaxUint64-value {
		return errs.NewInvariantViolation("counter overflow: %d + %d", value, delta)
	}
	u.Set(value + delta)
	return nil
}

// Sub decreases the counter by delta, failing on underflow.
func (u *Uint64) Sub(delta uint64) error {
	value, err := u.Get()
	if err != nil {
		return err
	}
	if delta > value {
		return errs.NewInvariantViolation("counter underflow: %d - %d", value, delta)
	}
	u.Set(value - delta)
	return nil
}
