// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package shares

import (
	"math/big"

	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/solidity"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/state"
)

var (
	totalSupplyKey = lido.Keccak256([]byte("total-supply"))
	totalMintedKey = lido.Keccak256([]byte("total-minted"))
	totalBurnedKey = lido.Keccak256([]byte("total-burned"))
)

func balanceKey(addr lido.Address) lido.Bytes32 {
	return lido.Keccak256([]byte("balance"), addr.Bytes())
}

// Shares implements the reward shares ledger. The registry computes
// distribution amounts; this ledger holds the balances and performs the
// transfers.
type Shares struct {
	context *solidity.Context

	totalSupply *solidity.Uint256
	totalMinted *solidity.Uint256
	totalBurned *solidity.Uint256
}

// New creates a new instance.
func New(addr lido.Address, st *state.State) *Shares {
	context := solidity.NewContext(addr, st)
	return &Shares{
		context:     context,
		totalSupply: solidity.NewUint256(context, totalSupplyKey),
		totalMinted: solidity.NewUint256(context, totalMintedKey),
		totalBurned: solidity.NewUint256(context, totalBurnedKey),
	}
}

func (s *Shares) balance(addr lido.Address) *solidity.Uint256 {
	return solidity.NewUint256(s.context, balanceKey(addr))
}

// TotalSupply returns the total amount of shares in existence.
func (s *Shares) TotalSupply() (*big.Int, error) {
	return s.totalSupply.Get()
}

// TotalMinted returns the cumulated minted amount.
func (s *Shares) TotalMinted() (*big.Int, error) {
	return s.totalMinted.Get()
}

// TotalBurned returns the cumulated burned amount.
func (s *Shares) TotalBurned() (*big.Int, error) {
	return s.totalBurned.Get()
}

// BalanceOf returns the share balance of an account.
func (s *Shares) BalanceOf(addr lido.Address) (*big.Int, error) {
	return s.balance(addr).Get()
}

// Mint creates shares for the given account.
func (s *Shares) Mint(addr lido.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := s.balance(addr).Add(amount); err != nil {
		return err
	}
	if err := s.totalSupply.Add(amount); err != nil {
		return err
	}
	return s.totalMinted.Add(amount)
}

// Burn destroys shares of the given account.
func (s *Shares) Burn(addr lido.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	bal, err := s.BalanceOf(addr)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return errs.NewInvariantViolation("burn amount exceeds balance of %v", addr)
	}
	if err := s.balance(addr).Sub(amount); err != nil {
		return err
	}
	if err := s.totalSupply.Sub(amount); err != nil {
		return err
	}
	return s.totalBurned.Add(amount)
}

// Transfer moves shares from one account to another.
func (s *Shares) Transfer(from, to lido.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	fromBal, err := s.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return errs.NewInvariantViolation("transfer amount exceeds balance of %v", from)
	}
	if err := s.balance(from).Sub(amount); err != nil {
		return err
	}
	return s.balance(to).Add(amount)
}

// Holder adapts the ledger to the registry's view: a fixed account whose
// balance is distributed by outgoing transfers.
type Holder struct {
	shares  *Shares
	account lido.Address
}

// NewHolder binds the ledger to the given holder account.
func NewHolder(shares *Shares, account lido.Address) *Holder {
	return &Holder{shares: shares, account: account}
}

// SharesOf returns the balance of an account.
func (h *Holder) SharesOf(addr lido.Address) (*big.Int, error) {
	return h.shares.BalanceOf(addr)
}

// TransferShares moves shares from the holder account to the recipient.
func (h *Holder) TransferShares(to lido.Address, amount *big.Int) error {
	return h.shares.Transfer(h.account, to, amount)
}
