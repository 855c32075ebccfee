// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"strconv"

	"github.com/mvp1983/lido-dao/builtin/authorization"
	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/registry/globalstats"
	"github.com/mvp1983/lido-dao/lido"
)

func validateName(name string) error {
	if len(name) == 0 {
		return errs.NewInvalidArgument("name must not be empty")
	}
	if len(name) > lido.MaxOperatorNameLength {
		return errs.NewInvalidArgument("name exceeds %d bytes", lido.MaxOperatorNameLength)
	}
	return nil
}

// AddOperator registers a new node operator. The new operator starts
// active with all counters at zero. Returns the assigned id.
func (r *Registry) AddOperator(caller lido.Address, name string, rewardAddress lido.Address) (ID, error) {
	var id ID
	err := r.mutate("add operator", caller, authorization.RoleAddOperator, authorization.GlobalScope, func() error {
		if err := validateName(name); err != nil {
			return err
		}
		if rewardAddress.IsZero() {
			return errs.NewInvalidArgument("reward address must not be zero")
		}

		count, err := r.storage.operatorCount.Get()
		if err != nil {
			return err
		}
		if count >= lido.MaxOperators {
			return errs.NewCapacityExceeded("operator cap of %d reached", lido.MaxOperators)
		}

		id = ID(count)
		if err := r.storage.setOperator(id, &Operator{
			Active:        true,
			RewardAddress: rewardAddress,
			Name:          name,
		}); err != nil {
			return err
		}
		r.storage.operatorCount.Set(count + 1)
		if err := r.storage.activeOperatorCount.Add(1); err != nil {
			return err
		}

		r.emit(EvOperatorAdded, id, map[string]string{
			"name":          name,
			"rewardAddress": rewardAddress.String(),
		})
		logger.Info("added operator", "id", id, "name", name)
		metricOperators().Add(1)
		return nil
	})
	return id, err
}

// Activate re-enables a deactivated operator.
func (r *Registry) Activate(caller lido.Address, id ID) error {
	return r.setActive(caller, id, true)
}

// Deactivate soft-disables an operator. Approved-but-undeposited keys
// lose their approval: the vetted count is clamped down to the deposited
// count so a later reactivation starts from a clean allocation state.
func (r *Registry) Deactivate(caller lido.Address, id ID) error {
	return r.setActive(caller, id, false)
}

func (r *Registry) setActive(caller lido.Address, id ID, active bool) error {
	opName := "deactivate operator"
	if active {
		opName = "activate operator"
	}
	return r.mutate(opName, caller, authorization.RoleSetOperatorActive, uint64(id), func() error {
		op, err := r.storage.getOperator(id)
		if err != nil {
			return err
		}
		if op.Active == active {
			return errs.NewInvalidArgument("operator %d already has active=%v", id, active)
		}

		op.Active = active
		if active {
			if err := r.storage.activeOperatorCount.Add(1); err != nil {
				return err
			}
		} else {
			if err := r.storage.activeOperatorCount.Sub(1); err != nil {
				return err
			}
			if op.Vetted > op.Deposited {
				delta := &globalstats.Delta{Vetted: -int64(op.Vetted - op.Deposited)}
				if err := r.stats.Apply(delta); err != nil {
					return err
				}
				op.Vetted = op.Deposited
			}
		}
		if err := r.storage.setOperator(id, op); err != nil {
			return err
		}
		if err := r.bumpNonce(); err != nil {
			return err
		}

		r.emit(EvOperatorActiveSet, id, map[string]string{
			"active": strconv.FormatBool(active),
		})
		logger.Info("operator active flag set", "id", id, "active", active)
		return nil
	})
}

// SetName renames an operator. Setting the current name again is refused
// to avoid redundant events.
func (r *Registry) SetName(caller lido.Address, id ID, name string) error {
	return r.mutate("set operator name", caller, authorization.RoleSetOperatorName, uint64(id), func() error {
		if err := validateName(name); err != nil {
			return err
		}
		op, err := r.storage.getOperator(id)
		if err != nil {
			return err
		}
		if op.Name == name {
			return errs.NewInvalidArgument("name of operator %d is unchanged", id)
		}
		op.Name = name
		if err := r.storage.setOperator(id, op); err != nil {
			return err
		}
		r.emit(EvOperatorNameSet, id, map[string]string{"name": name})
		return nil
	})
}

// SetRewardAddress rebinds the reward recipient of an operator.
func (r *Registry) SetRewardAddress(caller lido.Address, id ID, rewardAddress lido.Address) error {
	return r.mutate("set reward address", caller, authorization.RoleSetOperatorAddress, uint64(id), func() error {
		if rewardAddress.IsZero() {
			return errs.NewInvalidArgument("reward address must not be zero")
		}
		op, err := r.storage.getOperator(id)
		if err != nil {
			return err
		}
		if op.RewardAddress == rewardAddress {
			return errs.NewInvalidArgument("reward address of operator %d is unchanged", id)
		}
		op.RewardAddress = rewardAddress
		if err := r.storage.setOperator(id, op); err != nil {
			return err
		}
		r.emit(EvOperatorRewardAddressSet, id, map[string]string{
			"rewardAddress": rewardAddress.String(),
		})
		return nil
	})
}

// SetVettedCount approves keys for deposit up to the requested count.
// Out-of-range requests are silently clamped into
// [deposited, total]; a request that clamps to the current value is a
// no-op.
func (r *Registry) SetVettedCount(caller lido.Address, id ID, requested uint64) error {
	return r.mutate("set vetted count", caller, authorization.RoleSetVettedCount, uint64(id), func() error {
		op, err := r.storage.getOperator(id)
		if err != nil {
			return err
		}
		if !op.Active {
			return errs.NewInvariantViolation("operator %d is not active", id)
		}

		vetted := min(max(requested, op.Deposited), op.Total)
		if vetted == op.Vetted {
			return nil
		}

		delta := &globalstats.Delta{Vetted: int64(vetted) - int64(op.Vetted)}
		if err := r.stats.Apply(delta); err != nil {
			return err
		}
		op.Vetted = vetted
		if err := r.storage.setOperator(id, op); err != nil {
			return err
		}
		if err := r.bumpNonce(); err != nil {
			return err
		}

		r.emit(EvVettedKeysCountSet, id, map[string]string{
			"vetted": strconv.FormatUint(vetted, 10),
		})
		logger.Info("vetted count set", "id", id, "vetted", vetted)
		return nil
	})
}

// UpdateExitedCount reports newly exited validators of an operator.
// The validated path only moves forward: the new count must exceed the
// current one and never the deposited count. The change nonce is not
// bumped, exits do not invalidate allocation plans.
func (r *Registry) UpdateExitedCount(caller lido.Address, id ID, exited uint64) error {
	return r.mutate("update exited count", caller, authorization.RoleReportExited, uint64(id), func() error {
		op, err := r.storage.getOperator(id)
		if err != nil {
			return err
		}
		if exited == op.Exited {
			return nil
		}
		if exited > op.Deposited {
			return errs.NewInvariantViolation(
				"exited=%d exceeds deposited=%d of operator %d", exited, op.Deposited, id)
		}
		if exited < op.Exited {
			return errs.NewInvariantViolation(
				"exited count of operator %d may not decrease: %d < %d", id, exited, op.Exited)
		}
		return r.applyExitedCount(id, op, exited, false)
	})
}

// UnsafeUpdateExitedCount is the privileged escape hatch to correct an
// erroneous prior report; unlike the validated path it allows decreases.
// It is gated by its own role to keep corrections auditable.
func (r *Registry) UnsafeUpdateExitedCount(caller lido.Address, id ID, exited uint64) error {
	return r.mutate("unsafe update exited count", caller, authorization.RoleUnsafeCorrectExited, uint64(id), func() error {
		op, err := r.storage.getOperator(id)
		if err != nil {
			return err
		}
		if exited == op.Exited {
			return nil
		}
		if exited > op.Deposited {
			return errs.NewInvariantViolation(
				"exited=%d exceeds deposited=%d of operator %d", exited, op.Deposited, id)
		}
		return r.applyExitedCount(id, op, exited, true)
	})
}

func (r *Registry) applyExitedCount(id ID, op *Operator, exited uint64, unsafe bool) error {
	delta := &globalstats.Delta{Exited: int64(exited) - int64(op.Exited)}
	if err := r.stats.Apply(delta); err != nil {
		return err
	}
	op.Exited = exited
	if err := r.storage.setOperator(id, op); err != nil {
		return err
	}
	r.emit(EvExitedValidatorsSet, id, map[string]string{
		"exited": strconv.FormatUint(exited, 10),
		"unsafe": strconv.FormatBool(unsafe),
	})
	logger.Info("exited count set", "id", id, "exited", exited, "unsafe", unsafe)
	return nil
}
