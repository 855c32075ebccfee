// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package lido

// Protocol-wide constants of the key registry.
const (
	// PubkeyLength length of a validator signing public key in bytes.
	PubkeyLength = 48
	// SignatureLength length of a deposit signature in bytes.
	SignatureLength = 96

	// MaxOperators hard cap on the number of registered node operators.
	MaxOperators = 200
	// MaxOperatorNameLength upper bound on an operator name in bytes.
	MaxOperatorNameLength = 255
)
