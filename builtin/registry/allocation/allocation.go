// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package allocation

import (
	"github.com/mvp1983/lido-dao/builtin/errs"
)

// Distribute spreads up to requested new deposit slots over operators so
// that active validator counts level out (water-filling): each slot goes
// to the operator with the lowest current active count that still has
// spare capacity, ties broken by ascending index.
//
// active and capacity are parallel arrays: active[i] is operator i's
// current active validator count, capacity[i] its ceiling. No operator is
// ever pushed beyond its capacity, and the total never exceeds requested
// nor the aggregate spare capacity.
//
// It is a pure function of its inputs; callers snapshot registry state
// before invoking it and commit the returned deltas afterwards.
func Distribute(active, capacity []uint64, requested uint64) (uint64, []uint64, error) {
	if len(active) != len(capacity) {
		return 0, nil, errs.NewInvalidArgument("parallel arrays differ in length: %d != %d", len(active), len(capacity))
	}

	level := make([]uint64, len(active))
	copy(level, active)
	allocations := make([]uint64, len(active))

	var allocated uint64
	for allocated < requested {
		best := -1
		for i := range level {
			if level[i] >= capacity[i] {
				continue
			}
			if best < 0 || level[i] < level[best] {
				best = i
			}
		}
		if best < 0 {
			// every operator is at its ceiling
			break
		}
		level[best]++
		allocations[best]++
		allocated++
	}
	return allocated, allocations, nil
}
