// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"math/big"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mvp1983/lido-dao/builtin"
	"github.com/mvp1983/lido-dao/builtin/authorization"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/state"
)

// genesisConfig bootstraps a fresh registry: the governor, the initial
// role grants, bootstrap operators and pre-minted reward shares.
type genesisConfig struct {
	Governor string `yaml:"governor"`

	Grants []struct {
		Role  string  `yaml:"role"`
		Who   string  `yaml:"who"`
		Scope *uint64 `yaml:"scope"`
	} `yaml:"grants"`

	Operators []struct {
		Name          string `yaml:"name"`
		RewardAddress string `yaml:"rewardAddress"`
	} `yaml:"operators"`

	Shares []struct {
		Account string `yaml:"account"`
		Amount  string `yaml:"amount"`
	} `yaml:"shares"`
}

func loadGenesis(path string) (*genesisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis config")
	}
	var gene genesisConfig
	if err := yaml.Unmarshal(data, &gene); err != nil {
		return nil, errors.Wrap(err, "parse genesis config")
	}
	if gene.Governor == "" {
		return nil, errors.New("genesis config: governor is required")
	}
	return &gene, nil
}

func (g *genesisConfig) governor() (lido.Address, error) {
	addr, err := lido.ParseAddress(g.Governor)
	if err != nil {
		return lido.Address{}, errors.Wrap(err, "genesis config: governor")
	}
	return *addr, nil
}

// apply seeds a fresh state with the genesis config. It is idempotent:
// once a governor is set, later runs are a no-op.
func (g *genesisConfig) apply(st *state.State) (bool, error) {
	governor, err := g.governor()
	if err != nil {
		return false, err
	}

	auth := builtin.Authorization.WithState(st)
	applied, err := auth.Init(governor)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	for _, grant := range g.Grants {
		role, ok := authorization.RoleByName(grant.Role)
		if !ok {
			return false, errors.Errorf("genesis config: unknown role %q", grant.Role)
		}
		who, err := lido.ParseAddress(grant.Who)
		if err != nil {
			return false, errors.Wrapf(err, "genesis config: grant %q", grant.Role)
		}
		scope := authorization.GlobalScope
		if grant.Scope != nil {
			scope = *grant.Scope
		}
		if err := auth.Grant(governor, role, *who, scope); err != nil {
			return false, err
		}
	}

	registry := builtin.Registry.WithState(st)
	for _, op := range g.Operators {
		rewardAddr, err := lido.ParseAddress(op.RewardAddress)
		if err != nil {
			return false, errors.Wrapf(err, "genesis config: operator %q", op.Name)
		}
		if _, err := registry.AddOperator(governor, op.Name, *rewardAddr); err != nil {
			return false, errors.Wrapf(err, "genesis config: operator %q", op.Name)
		}
	}

	shares := builtin.Shares.WithState(st)
	for _, grant := range g.Shares {
		account, err := lido.ParseAddress(grant.Account)
		if err != nil {
			return false, errors.Wrap(err, "genesis config: shares account")
		}
		amount, ok := new(big.Int).SetString(grant.Amount, 10)
		if !ok {
			return false, errors.Errorf("genesis config: invalid share amount %q", grant.Amount)
		}
		if err := shares.Mint(*account, amount); err != nil {
			return false, err
		}
	}

	return true, st.Stage().Commit()
}
