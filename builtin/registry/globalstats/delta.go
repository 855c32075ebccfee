// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package globalstats

// Delta carries signed adjustments of the four global key counters,
// accumulated during a mutation and applied in one step.
type Delta struct {
	Total     int64
	Vetted    int64
	Deposited int64
	Exited    int64
}

// Add sets d to the sum of itself and other.
func (d *Delta) Add(other *Delta) *Delta {
	if other == nil {
		return d
	}
	d.Total += other.Total
	d.Vetted += other.Vetted
	d.Deposited += other.Deposited
	d.Exited += other.Exited
	return d
}

// IsZero reports whether the delta adjusts nothing.
func (d *Delta) IsZero() bool {
	return d.Total == 0 && d.Vetted == 0 && d.Deposited == 0 && d.Exited == 0
}
