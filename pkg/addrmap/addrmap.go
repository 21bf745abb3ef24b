// Package addrmap models hand-maintained address maps between compiled
// versions of a PowerPC binary: per-version piecewise-constant delta
// mappings, optionally derived from another version via 'extend'.
package addrmap

import (
	"fmt"
	"sort"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// ErrorVolume is how loudly to complain about an unmapped address.
type ErrorVolume int

const (
	Silent ErrorVolume = iota
	Warn
	Error
)

// Behavior is what to do with an address no mapping covers.
type Behavior int

const (
	// Drop discards the address.
	Drop Behavior = iota
	// Passthrough returns the address unchanged.
	Passthrough
	// PrevRange reuses the delta of the nearest preceding range.
	PrevRange
)

// Handling bundles the unmapped-address policy.
type Handling struct {
	Errors   ErrorVolume
	Behavior Behavior
}

// DefaultHandling warns and passes unmapped addresses through.
var DefaultHandling = Handling{Errors: Warn, Behavior: Passthrough}

// Mapping is a single line in an address map: an inclusive address
// range and the delta to add when crossing versions.
type Mapping struct {
	Start uint64
	End   uint64
	Delta int64
}

func (m Mapping) overlaps(other Mapping) bool {
	return m.End >= other.Start && m.Start <= other.End
}

func (m Mapping) String() string {
	sign := "+"
	delta := m.Delta
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return fmt.Sprintf("%08X-%08X: %s0x%X", m.Start, m.End, sign, delta)
}

// Mapper holds the mappings for one version of the binary. A non-nil
// Base means addresses are first mapped through the base version.
type Mapper struct {
	Name string
	Base *Mapper

	mappings      []Mapping
	sorted        []Mapping // by Start; nil when stale
	sortedReverse []Mapping // by Start+Delta; nil when stale
}

// AddMapping registers an inclusive range mapping. Overlapping ranges
// are rejected.
func (m *Mapper) AddMapping(start, end uint64, delta int64) error {
	if start > end {
		return errors.Errorf("cannot map %08X-%08X as start is higher than end", start, end)
	}
	mapping := Mapping{Start: start, End: end, Delta: delta}
	for _, existing := range m.mappings {
		if existing.overlaps(mapping) {
			return errors.Errorf("mapping %q overlaps with earlier mapping %q", mapping, existing)
		}
	}
	m.mappings = append(m.mappings, mapping)
	m.sorted = nil
	m.sortedReverse = nil
	return nil
}

// Mappings returns a copy of the registered mappings.
func (m *Mapper) Mappings() []Mapping {
	out := make([]Mapping, len(m.mappings))
	copy(out, m.mappings)
	return out
}

func (m *Mapper) sortedMappings() []Mapping {
	if m.sorted == nil {
		m.sorted = make([]Mapping, len(m.mappings))
		copy(m.sorted, m.mappings)
		sort.Slice(m.sorted, func(i, j int) bool { return m.sorted[i].Start < m.sorted[j].Start })
	}
	return m.sorted
}

func (m *Mapper) sortedReverseMappings() []Mapping {
	if m.sortedReverse == nil {
		m.sortedReverse = make([]Mapping, len(m.mappings))
		copy(m.sortedReverse, m.mappings)
		sort.Slice(m.sortedReverse, func(i, j int) bool {
			return int64(m.sortedReverse[i].Start)+m.sortedReverse[i].Delta <
				int64(m.sortedReverse[j].Start)+m.sortedReverse[j].Delta
		})
	}
	return m.sortedReverse
}

func mapName(m *Mapper) string {
	if m == nil {
		return "default"
	}
	return m.Name
}

// RemapSingle maps an address from the base version into this one.
// ok is false when the address was dropped by the unmapped policy.
func (m *Mapper) RemapSingle(addr uint64, h Handling) (mapped uint64, ok bool, err error) {
	mappings := m.sortedMappings()
	low, high := 0, len(mappings)-1
	for low <= high {
		mid := (low + high) / 2
		switch {
		case addr < mappings[mid].Start:
			high = mid - 1
		case addr > mappings[mid].End:
			low = mid + 1
		default:
			return uint64(int64(addr) + mappings[mid].Delta), true, nil
		}
	}
	return m.handleUnmapped(addr, h, false)
}

// RemapSingleReverse maps an address from this version back to its base.
func (m *Mapper) RemapSingleReverse(addr uint64, h Handling) (mapped uint64, ok bool, err error) {
	mappings := m.sortedReverseMappings()
	low, high := 0, len(mappings)-1
	for low <= high {
		mid := (low + high) / 2
		switch {
		case int64(addr) < int64(mappings[mid].Start)+mappings[mid].Delta:
			high = mid - 1
		case int64(addr) > int64(mappings[mid].End)+mappings[mid].Delta:
			low = mid + 1
		default:
			return uint64(int64(addr) - mappings[mid].Delta), true, nil
		}
	}
	return m.handleUnmapped(addr, h, true)
}

// Remap maps an address from the default version into this one,
// walking the whole derivation chain.
func (m *Mapper) Remap(addr uint64, h Handling) (uint64, bool, error) {
	if m.Base != nil {
		mapped, ok, err := m.Base.Remap(addr, h)
		if !ok || err != nil {
			return mapped, ok, err
		}
		addr = mapped
	}
	return m.RemapSingle(addr, h)
}

// RemapReverse maps an address from this version back to the default.
func (m *Mapper) RemapReverse(addr uint64, h Handling) (uint64, bool, error) {
	mapped, ok, err := m.RemapSingleReverse(addr, h)
	if !ok || err != nil {
		return mapped, ok, err
	}
	if m.Base != nil {
		return m.Base.RemapReverse(mapped, h)
	}
	return mapped, true, nil
}

func (m *Mapper) handleUnmapped(addr uint64, h Handling, reverse bool) (uint64, bool, error) {
	var before, after *Mapping
	if h.Errors != Silent || h.Behavior == PrevRange {
		if reverse {
			for _, mapping := range m.sortedReverseMappings() {
				mapping := mapping
				if int64(mapping.End)+mapping.Delta < int64(addr) {
					before = &mapping
				} else if int64(mapping.Start)+mapping.Delta > int64(addr) && after == nil {
					after = &mapping
				}
			}
		} else {
			for _, mapping := range m.sortedMappings() {
				mapping := mapping
				if mapping.End < addr {
					before = &mapping
				} else if mapping.Start > addr && after == nil {
					after = &mapping
				}
			}
		}
	}

	if h.Errors != Silent {
		from, to := m.Base, m
		if reverse {
			from, to = to, from
		}

		msg := fmt.Sprintf("[%s -> %s]: %08X ", mapName(from), mapName(to), addr)
		switch {
		case before == nil && after == nil:
			msg += "can't be mapped because there are no address ranges"
		case before == nil:
			msg += "falls before first address range"
		case after == nil:
			msg += "falls after last address range"
		default:
			images := ""
			if reverse {
				images = "images of "
			}
			msg += fmt.Sprintf("falls between %s%q and %q", images, before, after)
		}

		if h.Errors == Error {
			return 0, false, errors.New(msg)
		}
		log.Warn(msg)
	}

	switch h.Behavior {
	case Drop:
		return 0, false, nil
	case Passthrough:
		return addr, true, nil
	default: // PrevRange
		if before == nil {
			// delta is implicitly +0x0 before the first range
			return addr, true, nil
		}
		if reverse {
			return uint64(int64(addr) - before.Delta), true, nil
		}
		return uint64(int64(addr) + before.Delta), true, nil
	}
}

// lowestCommonAncestor finds the closest version both mappers derive
// from, or nil if their chains never meet.
func lowestCommonAncestor(a, b *Mapper) *Mapper {
	onPath := make(map[*Mapper]bool)
	for cur := a; cur != nil; cur = cur.Base {
		onPath[cur] = true
	}
	for cur := b; cur != nil; cur = cur.Base {
		if onPath[cur] {
			return cur
		}
	}
	return nil
}

// MapFromTo maps an address from one version to another as accurately
// as possible: backwards to their lowest common ancestor, then forwards.
func MapFromTo(from, to *Mapper, addr uint64, h Handling) (uint64, bool, error) {
	lca := lowestCommonAncestor(from, to)

	for cur := from; cur != lca; cur = cur.Base {
		mapped, ok, err := cur.RemapSingleReverse(addr, h)
		if !ok || err != nil {
			return mapped, ok, err
		}
		addr = mapped
	}

	var chain []*Mapper
	for cur := to; cur != lca; cur = cur.Base {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		mapped, ok, err := chain[i].RemapSingle(addr, h)
		if !ok || err != nil {
			return mapped, ok, err
		}
		addr = mapped
	}

	return addr, true, nil
}
