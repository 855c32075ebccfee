// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/lido"
)

func keyAt(blob []byte, width, index uint64) []byte {
	return blob[index*width : (index+1)*width]
}

func TestAddKeysRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := addOperator(t, reg, "alpha")

	pubkeys, signatures := makeKeys(4)
	require.NoError(t, reg.AddKeys(governor, id, 4, pubkeys, signatures))

	total, err := reg.TotalKeyCount(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), total)

	unused, err := reg.UnusedKeyCount(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), unused)

	gotPubkeys, gotSignatures, used, err := reg.GetKeysRange(id, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, pubkeys, gotPubkeys)
	assert.Equal(t, signatures, gotSignatures)
	assert.Equal(t, []bool{false, false, false, false}, used)

	key, err := reg.GetKey(id, 2)
	require.NoError(t, err)
	assert.Equal(t, keyAt(pubkeys, lido.PubkeyLength, 2), []byte(key.Pubkey))
	assert.Equal(t, keyAt(signatures, lido.SignatureLength, 2), []byte(key.Signature))
	assert.False(t, key.Used)

	// appending keeps existing slots in place
	morePubkeys, moreSignatures := makeKeys(6)
	require.NoError(t, reg.AddKeys(governor, id, 2, morePubkeys[4*lido.PubkeyLength:], moreSignatures[4*lido.SignatureLength:]))
	gotPubkeys, _, _, err = reg.GetKeysRange(id, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, morePubkeys, gotPubkeys)
}

func TestAddKeysValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := addOperator(t, reg, "alpha")

	pubkeys, signatures := makeKeys(2)

	err := reg.AddKeys(governor, id, 0, nil, nil)
	assert.True(t, errs.IsInvalidArgument(err))

	err = reg.AddKeys(governor, id, 2, pubkeys[1:], signatures)
	assert.True(t, errs.IsInvalidArgument(err))

	err = reg.AddKeys(governor, id, 2, pubkeys, signatures[1:])
	assert.True(t, errs.IsInvalidArgument(err))

	err = reg.AddKeys(stranger, id, 2, pubkeys, signatures)
	assert.True(t, errs.IsUnauthorized(err))
}

// TestAddKeysHugeCount pins the length validation against counts whose
// byte product wraps uint64: one real key pair with count 1<<60+1 must be
// rejected up front, leaving total and nonce untouched.
func TestAddKeysHugeCount(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := addOperator(t, reg, "alpha")

	pubkeys, signatures := makeKeys(1)
	nonce := nonceOf(t, reg)

	err := reg.AddKeys(governor, id, 1<<60+1, pubkeys, signatures)
	assert.True(t, errs.IsInvalidArgument(err))

	err = reg.AddKeys(governor, id, math.MaxUint64, pubkeys, signatures)
	assert.True(t, errs.IsInvalidArgument(err))

	total, err := reg.TotalKeyCount(id)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Equal(t, nonce, nonceOf(t, reg))
}

// TestAddKeysRejectsEmptyKey checks atomicity: a zero public key in the
// middle of the batch reverts the slots already written, the total and
// the nonce bump.
func TestAddKeysRejectsEmptyKey(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := addOperator(t, reg, "alpha")

	pubkeys, signatures := makeKeys(3)
	copy(pubkeys[2*lido.PubkeyLength:], make([]byte, lido.PubkeyLength))

	nonce := nonceOf(t, reg)
	err := reg.AddKeys(governor, id, 3, pubkeys, signatures)
	assert.True(t, errs.IsInvalidArgument(err))

	total, err := reg.TotalKeyCount(id)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Equal(t, nonce, nonceOf(t, reg))

	stats, err := reg.GlobalStats()
	require.NoError(t, err)
	assert.Zero(t, stats.ReadyToDeposit)
}

func TestRemoveKeysSwapsWithLast(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := addOperator(t, reg, "alpha")

	pubkeys, signatures := makeKeys(4)
	require.NoError(t, reg.AddKeys(governor, id, 4, pubkeys, signatures))

	// removing a middle slot relocates the last key into it
	require.NoError(t, reg.RemoveKeys(governor, id, 1, 1))

	total, err := reg.TotalKeyCount(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)

	key, err := reg.GetKey(id, 1)
	require.NoError(t, err)
	assert.Equal(t, keyAt(pubkeys, lido.PubkeyLength, 3), []byte(key.Pubkey))

	_, err = reg.GetKey(id, 3)
	assert.True(t, errs.IsNotFound(err))
}

func TestRemoveKeysWalksDown(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := addOperator(t, reg, "alpha")

	pubkeys, signatures := makeKeys(7)
	require.NoError(t, reg.AddKeys(governor, id, 7, pubkeys, signatures))

	// removing the tail [5, 7) leaves the head untouched, no swaps needed
	require.NoError(t, reg.RemoveKeys(governor, id, 5, 2))

	gotPubkeys, _, _, err := reg.GetKeysRange(id, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, pubkeys[:5*lido.PubkeyLength], gotPubkeys)
}

func TestRemoveKeysClampsVetted(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := addOperator(t, reg, "alpha")

	pubkeys, signatures := makeKeys(5)
	require.NoError(t, reg.AddKeys(governor, id, 5, pubkeys, signatures))
	require.NoError(t, reg.SetVettedCount(governor, id, 4))

	// the swapped-in key was never approved, approvals above the removed
	// index are revoked
	require.NoError(t, reg.RemoveKeys(governor, id, 1, 1))

	info, err := reg.GetOperator(id, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Vetted)
	assert.Equal(t, uint64(4), info.Total)

	stats, err := reg.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.ReadyToDeposit)
}

func TestRemoveKeysGuards(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := addOperator(t, reg, "alpha")

	pubkeys, signatures := makeKeys(3)
	require.NoError(t, reg.AddKeys(governor, id, 3, pubkeys, signatures))
	require.NoError(t, reg.SetVettedCount(governor, id, 2))
	allocated, _, _, err := reg.RequestDeposits(governor, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), allocated)

	// deposited keys are immutable
	err = reg.RemoveKeys(governor, id, 0, 1)
	assert.True(t, errs.IsInvariantViolation(err))

	// out of range
	err = reg.RemoveKeys(governor, id, 3, 1)
	assert.True(t, errs.IsNotFound(err))

	err = reg.RemoveKeys(governor, id, 1, 0)
	assert.True(t, errs.IsInvalidArgument(err))

	// ranges whose end wraps around uint64 must not reach live slots
	err = reg.RemoveKeys(governor, id, math.MaxUint64, 2)
	assert.True(t, errs.IsNotFound(err))
	err = reg.RemoveKeys(governor, id, 1, math.MaxUint64)
	assert.True(t, errs.IsNotFound(err))

	// failed removals leave the key set untouched
	total, err := reg.TotalKeyCount(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
}

func TestTrimUnusedKeys(t *testing.T) {
	reg, _ := newTestRegistry(t)
	a := addOperator(t, reg, "alpha")
	b := addOperator(t, reg, "beta")

	pubkeys, signatures := makeKeys(4)
	require.NoError(t, reg.AddKeys(governor, a, 4, pubkeys, signatures))
	require.NoError(t, reg.AddKeys(governor, b, 4, pubkeys, signatures))
	require.NoError(t, reg.SetVettedCount(governor, a, 2))
	_, _, _, err := reg.RequestDeposits(governor, 2)
	require.NoError(t, err)

	require.NoError(t, reg.TrimUnusedKeys(governor))

	info, err := reg.GetOperator(a, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Total)
	assert.Equal(t, uint64(2), info.Vetted)
	assert.Equal(t, uint64(2), info.Deposited)

	info, err = reg.GetOperator(b, false)
	require.NoError(t, err)
	assert.Zero(t, info.Total)

	stats, err := reg.GlobalStats()
	require.NoError(t, err)
	assert.Zero(t, stats.ReadyToDeposit)
}

// TestTrimStopsAtFullyDepositedOperator pins down the scan cutoff: the
// first operator with nothing to trim ends the whole pass, leaving later
// operators untouched.
func TestTrimStopsAtFullyDepositedOperator(t *testing.T) {
	reg, _ := newTestRegistry(t)
	a := addOperator(t, reg, "alpha")
	b := addOperator(t, reg, "beta")

	// a is fully deposited, b has unused keys
	pubkeys, signatures := makeKeys(2)
	require.NoError(t, reg.AddKeys(governor, a, 2, pubkeys, signatures))
	require.NoError(t, reg.SetVettedCount(governor, a, 2))
	allocated, _, _, err := reg.RequestDeposits(governor, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), allocated)

	require.NoError(t, reg.AddKeys(governor, b, 2, pubkeys, signatures))

	nonce := nonceOf(t, reg)
	require.NoError(t, reg.TrimUnusedKeys(governor))

	info, err := reg.GetOperator(b, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Total, "operators behind the cutoff keep their keys")

	// nothing trimmed, nothing invalidated
	assert.Equal(t, nonce, nonceOf(t, reg))
}

func TestGetKeysRangeValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := addOperator(t, reg, "alpha")

	pubkeys, signatures := makeKeys(3)
	require.NoError(t, reg.AddKeys(governor, id, 3, pubkeys, signatures))

	_, _, _, err := reg.GetKeysRange(id, 2, 2)
	assert.True(t, errs.IsInvalidArgument(err))

	gotPubkeys, _, used, err := reg.GetKeysRange(id, 1, 2)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(pubkeys[lido.PubkeyLength:], gotPubkeys))
	assert.Len(t, used, 2)

	// offset beyond the key count or a limit whose end wraps uint64 are
	// both plain argument errors, never a slice allocation
	_, _, _, err = reg.GetKeysRange(id, 4, math.MaxUint64)
	assert.True(t, errs.IsInvalidArgument(err))
	_, _, _, err = reg.GetKeysRange(id, 0, math.MaxUint64)
	assert.True(t, errs.IsInvalidArgument(err))
	_, _, _, err = reg.GetKeysRange(id, math.MaxUint64, 1)
	assert.True(t, errs.IsInvalidArgument(err))
}
