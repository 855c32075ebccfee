// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/lido"
)

// ID is a dense, zero-based node operator identifier. Ids are assigned at
// creation in ascending order and never reused.
type ID uint64

// Bytes returns the big-endian byte form, used as mapping key.
func (id ID) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(id))
}

// Operator is the persistent record of one node operator.
//
// The counters obey, after every mutation:
//
//	0 <= Deposited <= Vetted <= Total
//	Exited <= Deposited
//
// Key slots below Deposited are immutable, [Deposited, Vetted) are
// approved for deposit, [Vetted, Total) exist but are unapproved.
type Operator struct {
	Active        bool
	RewardAddress lido.Address
	Name          string

	Vetted    uint64
	Exited    uint64
	Total     uint64
	Deposited uint64
}

// CheckInvariants verifies the counter ordering of the record.
func (o *Operator) CheckInvariants() error {
	if o.Deposited > o.Vetted || o.Vetted > o.Total {
		return errs.NewInvariantViolation(
			"counter ordering broken: deposited=%d vetted=%d total=%d", o.Deposited, o.Vetted, o.Total)
	}
	if o.Exited > o.Deposited {
		return errs.NewInvariantViolation(
			"exited=%d exceeds deposited=%d", o.Exited, o.Deposited)
	}
	return nil
}

// keyRef addresses one signing key slot: operator id + key index.
type keyRef struct {
	op    ID
	index uint64
}

func (k keyRef) Bytes() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], uint64(k.op))
	binary.BigEndian.PutUint64(buf[8:], k.index)
	return buf
}

// SigningKey is a stored (public key, deposit signature) pair.
type SigningKey struct {
	Pubkey    []byte
	Signature []byte
}

// IsEmpty returns whether the slot can be treated as vacant.
func (k *SigningKey) IsEmpty() bool {
	return len(k.Pubkey) == 0 && len(k.Signature) == 0
}

// KeyInfo is the read-side view of one signing key slot.
type KeyInfo struct {
	Pubkey    hexutil.Bytes `json:"pubkey"`
	Signature hexutil.Bytes `json:"signature"`
	Used      bool          `json:"used"`
}

// OperatorInfo is the read-side view of an operator record.
// Name is populated only when requested in full.
type OperatorInfo struct {
	ID            ID           `json:"id"`
	Active        bool         `json:"active"`
	Name          string       `json:"name,omitempty"`
	RewardAddress lido.Address `json:"rewardAddress"`

	Vetted    uint64 `json:"vetted"`
	Exited    uint64 `json:"exited"`
	Total     uint64 `json:"total"`
	Deposited uint64 `json:"deposited"`
}

// Stats is the allocation-facing summary of validator counts: exited,
// currently active (deposited minus exited) and approved-but-undeposited.
type Stats struct {
	Exited         uint64 `json:"exited"`
	Active         uint64 `json:"active"`
	ReadyToDeposit uint64 `json:"readyToDeposit"`
}

// Event names recorded by registry mutations.
const (
	EvOperatorAdded            = "OperatorAdded"
	EvOperatorActiveSet        = "OperatorActiveSet"
	EvOperatorNameSet          = "OperatorNameSet"
	EvOperatorRewardAddressSet = "OperatorRewardAddressSet"
	EvVettedKeysCountSet       = "VettedKeysCountSet"
	EvExitedValidatorsSet      = "ExitedValidatorsSet"
	EvSigningKeyAdded          = "SigningKeyAdded"
	EvSigningKeyRemoved        = "SigningKeyRemoved"
	EvOperatorKeysTrimmed      = "OperatorKeysTrimmed"
	EvChangeNonceSet           = "ChangeNonceSet"
	EvDepositsAllocated        = "DepositsAllocated"
	EvRewardsDistributed       = "RewardsDistributed"
)

// NoOperator marks events not tied to a single operator.
const NoOperator = ID(^uint64(0))

// Event is one registry occurrence, buffered during a call and recorded
// only if the call succeeds.
type Event struct {
	Name     string            `json:"name"`
	Operator ID                `json:"operator"`
	Data     map[string]string `json:"data,omitempty"`
}

// EventSink receives the events of one successful mutation.
type EventSink interface {
	Record(events []Event) error
}
