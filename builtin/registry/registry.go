// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math/big"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/mvp1983/lido-dao/builtin/authorization"
	"github.com/mvp1983/lido-dao/builtin/errs"
	"github.com/mvp1983/lido-dao/builtin/registry/globalstats"
	"github.com/mvp1983/lido-dao/builtin/solidity"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/log"
	"github.com/mvp1983/lido-dao/metrics"
	"github.com/mvp1983/lido-dao/state"
)

var (
	logger = log.WithContext("pkg", "registry")

	metricOps = metrics.LazyLoad(func() metrics.CountVecMeter {
		return metrics.CounterVec("registry_ops_total", []string{"op", "status"})
	})
	metricOperators = metrics.LazyLoad(func() metrics.GaugeMeter {
		return metrics.Gauge("registry_operators")
	})
)

// Ledger is the external rewards ledger the distributor delegates to.
// The registry computes share amounts; moving them is not its business.
type Ledger interface {
	SharesOf(account lido.Address) (*big.Int, error)
	TransferShares(to lido.Address, amount *big.Int) error
}

// Registry implements the node operator key registry: operator lifecycle,
// signing key storage, deposit allocation and reward share computation.
//
// Every mutating operation is atomic: a checkpoint is taken up front and
// all writes are reverted if any step fails. Calls are serialized by a
// single mutex, reproducing the exclusive execution of the original
// platform.
type Registry struct {
	mu sync.Mutex

	addr    lido.Address
	state   *state.State
	auth    *authorization.Authorization
	ledger  Ledger
	sink    EventSink
	storage *storage
	stats   *globalstats.Service

	pending []Event
}

// Option configures optional collaborators of the registry.
type Option func(*Registry)

// WithEventSink routes events of successful mutations to the sink.
func WithEventSink(sink EventSink) Option {
	return func(r *Registry) { r.sink = sink }
}

// New creates a registry instance bound to the given contract address.
func New(addr lido.Address, st *state.State, auth *authorization.Authorization, ledger Ledger, options ...Option) *Registry {
	registry := &Registry{
		addr:    addr,
		state:   st,
		auth:    auth,
		ledger:  ledger,
		storage: newStorage(addr, st),
		stats:   globalstats.New(solidity.NewContext(addr, st)),
	}
	for _, opt := range options {
		opt(registry)
	}
	return registry
}

// Address returns the registry contract address, which doubles as the
// reward shares holder account.
func (r *Registry) Address() lido.Address {
	return r.addr
}

// mutate runs fn under the call lock with the permission gate and
// checkpoint/revert wrapped around it. Events emitted by fn are flushed
// to the sink only when fn succeeds; a panic inside fn reverts like an
// error so no partial writes survive it.
func (r *Registry) mutate(opName string, caller lido.Address, role lido.Bytes32, scope uint64, fn func() error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok, err := r.auth.Authorized(caller, role, scope)
	if err != nil {
		return err
	}
	if !ok {
		metricOps().AddWithLabel(1, map[string]string{"op": opName, "status": "unauthorized"})
		return errs.NewUnauthorized("caller %v may not %s", caller, opName)
	}

	checkpoint := r.state.NewCheckpoint()
	r.pending = r.pending[:0]

	defer func() {
		if e := recover(); e != nil {
			r.state.RevertTo(checkpoint)
			r.pending = r.pending[:0]
			metricOps().AddWithLabel(1, map[string]string{"op": opName, "status": "failed"})
			logger.Error("mutation panicked", "op", opName, "caller", caller, "panic", e)
			err = errors.Errorf("%s panicked: %v", opName, e)
		}
	}()

	if err := fn(); err != nil {
		r.state.RevertTo(checkpoint)
		r.pending = r.pending[:0]
		metricOps().AddWithLabel(1, map[string]string{"op": opName, "status": "failed"})
		logger.Info("mutation failed", "op", opName, "caller", caller, "error", err)
		return err
	}

	metricOps().AddWithLabel(1, map[string]string{"op": opName, "status": "ok"})
	r.flushEvents()
	return nil
}

func (r *Registry) emit(name string, op ID, data map[string]string) {
	r.pending = append(r.pending, Event{Name: name, Operator: op, Data: data})
}

func (r *Registry) flushEvents() {
	if r.sink == nil || len(r.pending) == 0 {
		r.pending = r.pending[:0]
		return
	}
	events := make([]Event, len(r.pending))
	copy(events, r.pending)
	r.pending = r.pending[:0]
	if err := r.sink.Record(events); err != nil {
		// the event log is an observability aid, not part of the state machine
		logger.Warn("failed to record events", "count", len(events), "error", err)
	}
}

// bumpNonce increments the change nonce that external observers poll to
// detect staleness of cached allocation plans.
func (r *Registry) bumpNonce() error {
	if err := r.storage.changeNonce.Add(1); err != nil {
		return err
	}
	nonce, err := r.storage.changeNonce.Get()
	if err != nil {
		return err
	}
	r.emit(EvChangeNonceSet, NoOperator, map[string]string{
		"nonce": strconv.FormatUint(nonce, 10),
	})
	return nil
}

//
// Getters - no state change
//

// OperatorCount returns the number of operators ever added.
func (r *Registry) OperatorCount() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storage.operatorCount.Get()
}

// ActiveOperatorCount returns the cached count of active operators.
func (r *Registry) ActiveOperatorCount() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storage.activeOperatorCount.Get()
}

// IsActive reports whether the operator is active.
func (r *Registry) IsActive(id ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := r.storage.getOperator(id)
	if err != nil {
		return false, err
	}
	return op.Active, nil
}

// GetOperator returns the operator record. The name is included only
// when full is set.
func (r *Registry) GetOperator(id ID, full bool) (*OperatorInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := r.storage.getOperator(id)
	if err != nil {
		return nil, err
	}
	info := &OperatorInfo{
		ID:            id,
		Active:        op.Active,
		RewardAddress: op.RewardAddress,
		Vetted:        op.Vetted,
		Exited:        op.Exited,
		Total:         op.Total,
		Deposited:     op.Deposited,
	}
	if full {
		info.Name = op.Name
	}
	return info, nil
}

// ChangeNonce returns the monotonic counter signalling that
// allocation-relevant state changed.
func (r *Registry) ChangeNonce() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storage.changeNonce.Get()
}

// GlobalStats returns the validator totals summed over all operators.
func (r *Registry) GlobalStats() (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals, err := r.stats.Get()
	if err != nil {
		return nil, err
	}
	return &Stats{
		Exited:         totals.Exited,
		Active:         totals.Deposited - totals.Exited,
		ReadyToDeposit: totals.Vetted - totals.Deposited,
	}, nil
}

// OperatorStats returns the validator counts of one operator.
func (r *Registry) OperatorStats(id ID) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, err := r.storage.getOperator(id)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Exited:         op.Exited,
		Active:         op.Deposited - op.Exited,
		ReadyToDeposit: op.Vetted - op.Deposited,
	}, nil
}
