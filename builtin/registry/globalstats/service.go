// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package globalstats

import (
	"github.com/mvp1983/lido-dao/builtin/solidity"
	"github.com/mvp1983/lido-dao/lido"
)

var (
	slotTotalKeys     = lido.BytesToBytes32([]byte("total-keys"))
	slotVettedKeys    = lido.BytesToBytes32([]byte("vetted-keys"))
	slotDepositedKeys = lido.BytesToBytes32([]byte("deposited-keys"))
	slotExitedKeys    = lido.BytesToBytes32([]byte("exited-keys"))
)

// Service manages registry-wide key totals. The four counters mirror the
// per-operator counters and are adjusted incrementally alongside every
// operator mutation; they are never recomputed by full scan outside the
// one-time migration pass.
type Service struct {
	totalKeys     *solidity.Uint64
	vettedKeys    *solidity.Uint64
	depositedKeys *solidity.Uint64
	exitedKeys    *solidity.Uint64
}

func New(sctx *solidity.Context) *Service {
	return &Service{
		totalKeys:     solidity.NewUint64(sctx, slotTotalKeys),
		vettedKeys:    solidity.NewUint64(sctx, slotVettedKeys),
		depositedKeys: solidity.NewUint64(sctx, slotDepositedKeys),
		exitedKeys:    solidity.NewUint64(sctx, slotExitedKeys),
	}
}

// Totals holds a snapshot of the global counters.
type Totals struct {
	Total     uint64
	Vetted    uint64
	Deposited uint64
	Exited    uint64
}

// Get returns the current global counters.
func (s *Service) Get() (*Totals, error) {
	total, err := s.totalKeys.Get()
	if err != nil {
		return nil, err
	}
	vetted, err := s.vettedKeys.Get()
	if err != nil {
		return nil, err
	}
	deposited, err := s.depositedKeys.Get()
	if err != nil {
		return nil, err
	}
	exited, err := s.exitedKeys.Get()
	if err != nil {
		return nil, err
	}
	return &Totals{Total: total, Vetted: vetted, Deposited: deposited, Exited: exited}, nil
}

// Set overwrites the counters. Reserved for the migration pass.
func (s *Service) Set(totals *Totals) {
	s.totalKeys.Set(totals.Total)
	s.vettedKeys.Set(totals.Vetted)
	s.depositedKeys.Set(totals.Deposited)
	s.exitedKeys.Set(totals.Exited)
}

// Apply adjusts the counters by the accumulated delta.
// Underflow and overflow of any counter fail the whole application.
func (s *Service) Apply(delta *Delta) error {
	if err := applySigned(s.totalKeys, delta.Total); err != nil {
		return err
	}
	if err := applySigned(s.vettedKeys, delta.Vetted); err != nil {
		return err
	}
	if err := applySigned(s.depositedKeys, delta.Deposited); err != nil {
		return err
	}
	return applySigned(s.exitedKeys, delta.Exited)
}

func applySigned(counter *solidity.Uint64, delta int64) error {
	if delta == 0 {
		return nil
	}
	if delta > 0 {
		return counter.Add(uint64(delta))
	}
	return counter.Sub(uint64(-delta))
}
