// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"github.com/pkg/errors"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/solidity"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/state"
)

var (
	slotOperators           = nameToSlot("node-operators")
	slotSigningKeys         = nameToSlot("signing-keys")
	slotOperatorCount       = nameToSlot("operator-count")
	slotActiveOperatorCount = nameToSlot("active-operator-count")
	slotChangeNonce         = nameToSlot("change-nonce")
)

func nameToSlot(name string) lido.Bytes32 {
	return lido.BytesToBytes32([]byte(name))
}

// storage represents the root storage of the registry contract.
// Operator records and key slots live in two hash-addressed mappings;
// the scalar counters occupy fixed named slots.
type storage struct {
	context *solidity.Context

	operators *solidity.Mapping[ID, *Operator]
	keys      *solidity.Mapping[keyRef, *SigningKey]

	operatorCount       *solidity.Uint64
	activeOperatorCount *solidity.Uint64
	changeNonce         *solidity.Uint64
}

func newStorage(addr lido.Address, state *state.State) *storage {
	context := solidity.NewContext(addr, state)
	return &storage{
		context:             context,
		operators:           solidity.NewMapping[ID, *Operator](context, slotOperators),
		keys:                solidity.NewMapping[keyRef, *SigningKey](context, slotSigningKeys),
		operatorCount:       solidity.NewUint64(context, slotOperatorCount),
		activeOperatorCount: solidity.NewUint64(context, slotActiveOperatorCount),
		changeNonce:         solidity.NewUint64(context, slotChangeNonce),
	}
}

// getOperator loads an existing operator record, failing with NotFound
// for ids that were never issued.
func (s *storage) getOperator(id ID) (*Operator, error) {
	count, err := s.operatorCount.Get()
	if err != nil {
		return nil, err
	}
	if uint64(id) >= count {
		return nil, errs.NewNotFound("operator %d does not exist", id)
	}
	op, err := s.operators.Get(id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get operator")
	}
	return op, nil
}

// setOperator stores the record after verifying its counter invariants.
func (s *storage) setOperator(id ID, op *Operator) error {
	if err := op.CheckInvariants(); err != nil {
		return err
	}
	if err := s.operators.Set(id, op); err != nil {
		return errors.Wrap(err, "failed to set operator")
	}
	return nil
}

func (s *storage) getKey(id ID, index uint64) (*SigningKey, error) {
	key, err := s.keys.Get(keyRef{id, index})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get signing key")
	}
	return key, nil
}

func (s *storage) setKey(id ID, index uint64, key *SigningKey) error {
	if err := s.keys.Set(keyRef{id, index}, key); err != nil {
		return errors.Wrap(err, "failed to set signing key")
	}
	return nil
}

func (s *storage) unsetKey(id ID, index uint64) error {
	if err := s.keys.Unset(keyRef{id, index}); err != nil {
		return errors.Wrap(err, "failed to unset signing key")
	}
	return nil
}
