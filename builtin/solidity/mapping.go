// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mvp1983/lido-dao/lido"
)

// Key is anything that can address a mapping slot.
type Key interface {
	Bytes() []byte
}

// Mapping is a key/value storage abstraction for built-in contracts,
// similar to the mapping in Solidity. Each value lives in its own slot
// derived by hashing the key together with the mapping position, so no
// free-list or length bookkeeping is needed.
type Mapping[K Key, V any] struct {
	context *Context
	basePos lido.Bytes32
}

func NewMapping[K Key, V any](context *Context, pos lido.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

// Position returns the storage slot holding the value of the given key.
func (m *Mapping[K, V]) Position(key K) lido.Bytes32 {
	return lido.Blake2b(key.Bytes(), m.basePos.Bytes())
}

// Get decodes the value stored for key. A vacant slot yields the zero
// value (pointer types get a freshly allocated zero element).
func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	err = m.context.state.DecodeStorage(m.context.address, m.Position(key), func(raw []byte) error {
		if reflect.ValueOf(&value).Elem().Kind() == reflect.Ptr {
			value = reflect.New(reflect.TypeOf(value).Elem()).Interface().(V)
		}
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Set encodes and stores the value for key.
func (m *Mapping[K, V]) Set(key K, value V) error {
	return m.context.state.EncodeStorage(m.context.address, m.Position(key), func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Unset clears the slot of the given key.
func (m *Mapping[K, V]) Unset(key K) error {
	return m.context.state.EncodeStorage(m.context.address, m.Position(key), func() ([]byte, error) {
		return nil, nil
	})
}
