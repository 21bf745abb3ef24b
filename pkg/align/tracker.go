// Package align implements heuristic address alignment between two
// independently compiled PowerPC builds of the same program.
//
// Two engines are provided: a content aligner that compares raw section
// bytes with randomized unique-substring sampling, and a cross-reference
// aligner that compares call graphs exported from a disassembler. Both
// produce a piecewise-constant map of offset deltas between the two
// address spaces, printed as a draft for a hand-maintained address map.
package align

import (
	"fmt"
	"io"
	"sort"
)

// Division marks the address at which the offset delta between the two
// builds changes value. The delta applies from Address up to (but not
// including) the next division's address.
type Division struct {
	Address uint64
	Delta   int64
}

// Tracker accumulates offset deltas reported at addresses within a
// half-open interval. The first and last divisions are fixed at
// construction from the known boundary deltas of the section pair.
//
// Callers must report the SMALLEST address at which a given delta is
// known to hold; reporting at a larger address than necessary loses
// precision in the final map.
type Tracker struct {
	divisions []Division
	lastAddr  uint64
}

// NewTracker creates a tracker for [firstAddr, lastAddr) with the given
// boundary deltas.
func NewTracker(firstAddr uint64, firstDelta int64, lastAddr uint64, lastDelta int64) *Tracker {
	return &Tracker{
		divisions: []Division{
			{Address: firstAddr, Delta: firstDelta},
			{Address: lastAddr, Delta: lastDelta},
		},
		lastAddr: lastAddr,
	}
}

// FirstAddress returns the start of the tracked interval.
func (t *Tracker) FirstAddress() uint64 {
	return t.divisions[0].Address
}

// LastAddress returns the (exclusive) end of the tracked interval.
func (t *Tracker) LastAddress() uint64 {
	return t.lastAddr
}

// Divisions returns a copy of the current division sequence.
func (t *Tracker) Divisions() []Division {
	out := make([]Division, len(t.divisions))
	copy(out, t.divisions)
	return out
}

// ExpectedOffsetAt returns the delta currently implied at addr, i.e. the
// delta of the division with the greatest address <= addr. Addresses at
// or beyond the end of the interval get the final boundary delta.
func (t *Tracker) ExpectedOffsetAt(addr uint64) int64 {
	idx := sort.Search(len(t.divisions), func(i int) bool {
		return t.divisions[i].Address > addr
	})
	if idx == 0 {
		return t.divisions[0].Delta
	}
	return t.divisions[idx-1].Delta
}

// Report records that delta holds at addr. It returns true if this
// created a new division point, signalling the caller that further
// refinement around the boundary is worthwhile.
//
// Redundant reports (delta already implied at addr) are ignored. If the
// delta matches the next division's, that division is pulled back to
// this earlier address instead of creating a duplicate.
func (t *Tracker) Report(addr uint64, delta int64) (bool, error) {
	if addr < t.FirstAddress() || addr >= t.lastAddr {
		return false, fmt.Errorf("%08x is out of bounds (%08x-%08x)", addr, t.FirstAddress(), t.lastAddr)
	}

	idx := sort.Search(len(t.divisions), func(i int) bool {
		return t.divisions[i].Address > addr
	})
	prev := t.divisions[idx-1]

	if prev.Delta == delta {
		return false, nil
	}
	if prev.Address == addr {
		// Conflicting evidence at an existing division; first report wins.
		return false, nil
	}
	if idx < len(t.divisions) && t.divisions[idx].Delta == delta {
		t.divisions[idx].Address = addr
		return false, nil
	}

	t.divisions = append(t.divisions, Division{})
	copy(t.divisions[idx+1:], t.divisions[idx:])
	t.divisions[idx] = Division{Address: addr, Delta: delta}
	return true, nil
}

// WriteReport renders the divisions as inclusive address ranges with
// signed hex deltas, one per line. The final range's upper bound is
// printed as '*'. Consecutive divisions sharing a delta are collapsed
// first.
func (t *Tracker) WriteReport(w io.Writer) {
	collapsed := make([]Division, 0, len(t.divisions))
	for _, d := range t.divisions {
		if len(collapsed) > 0 && collapsed[len(collapsed)-1].Delta == d.Delta {
			continue
		}
		collapsed = append(collapsed, d)
	}

	for i, d := range collapsed {
		next := "*"
		if i+1 < len(collapsed) {
			next = fmt.Sprintf("%08x", collapsed[i+1].Address-1)
		}
		fmt.Fprintf(w, "%08x-%s: %s\n", d.Address, next, FormatDelta(d.Delta))
	}
}

// FormatDelta renders a delta as an explicitly signed hex string, e.g.
// "+0x20" or "-0x1c".
func FormatDelta(delta int64) string {
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return fmt.Sprintf("%s0x%x", sign, delta)
}
