package align

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/apex/log"
	"github.com/dominikbraun/graph"

	"github.com/gecko-re/ppcalign/pkg/addrmap"
)

// ErrNoUsableXrefs is returned when not a single destination in the
// target range collected a vote. Reporting this instead of an empty
// range list keeps callers from mistaking "no evidence" for "zero
// delta everywhere".
var ErrNoUsableXrefs = errors.New("no usable xrefs found")

// Deltas that jump by more than this between neighboring destinations
// are treated as measurement errors and dropped.
const outlierTolerance = 0x10000

// Graph maps a destination address to the origin addresses that
// reference it, as exported from a disassembler.
type Graph map[uint64][]uint64

// LoadGraph reads a Ghidra ExportXrefs.py dump: a JSON object of
// {"to": [from, from, ...], ...} with decimal-string keys.
func LoadGraph(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string][]uint64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse xrefs file %s: %v", path, err)
	}

	g := make(Graph, len(raw))
	for key, origins := range raw {
		to, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse xrefs file %s: bad address key %q", path, key)
		}
		g[to] = origins
	}
	return g, nil
}

// ProbablySpurious reports whether addr looks like disassembler noise.
// Ghidra likes to invent xrefs to addresses like 0x803b0000, so any
// destination whose low 16 bits are all zero is ignored.
func ProbablySpurious(addr uint64) bool {
	return addr&0xffff == 0
}

// invertReferences builds the origin -> destination map for a graph.
// An origin that references more than one distinct destination carries
// no reliable alignment signal and is excluded for good.
func invertReferences(g Graph) (map[uint64]uint64, error) {
	dg := graph.New(func(addr uint64) uint64 { return addr }, graph.Directed())

	for to, origins := range g {
		if ProbablySpurious(to) {
			continue
		}
		if err := dg.AddVertex(to); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, err
		}
		for _, from := range origins {
			if err := dg.AddVertex(from); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, err
			}
			if err := dg.AddEdge(from, to); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, err
			}
		}
	}

	adjacency, err := dg.AdjacencyMap()
	if err != nil {
		return nil, err
	}

	reverse := make(map[uint64]uint64, len(adjacency))
	for from, targets := range adjacency {
		if len(targets) != 1 {
			continue // out-degree 0 (not an origin) or ambiguous
		}
		for to := range targets {
			reverse[from] = to
		}
	}
	return reverse, nil
}

// XrefConfig configures one cross-reference alignment pass.
type XrefConfig struct {
	// Graphs for the two versions being compared.
	Graph1, Graph2 Graph

	// Address mappers for the two versions, covering the part of the
	// address space that has already been aligned by hand.
	Mapper1, Mapper2 *addrmap.Mapper

	// Origins are only considered when they fall inside
	// [AlignedStart, AlignedEnd): the region the address map is already
	// trusted for.
	AlignedStart, AlignedEnd uint64

	// Destinations are only considered inside [TargetStart, TargetEnd):
	// the region to newly infer.
	TargetStart, TargetEnd uint64
}

// AlignByXrefs infers delta ranges for the target region by voting.
// For each destination in version 1, every origin referencing it from
// the already-aligned region is translated into version 2's address
// space; if that translated origin unambiguously references something
// in version 2, it votes for that destination. The most-voted
// destination (first seen wins ties) yields the delta.
//
// Results are written to w as inclusive ranges with signed deltas, the
// final one open-ended.
func AlignByXrefs(cfg *XrefConfig, w io.Writer) error {
	reverse, err := invertReferences(cfg.Graph2)
	if err != nil {
		return fmt.Errorf("failed to invert version 2 xrefs: %v", err)
	}

	handling := addrmap.Handling{Errors: addrmap.Silent, Behavior: addrmap.Drop}

	tos := make([]uint64, 0, len(cfg.Graph1))
	for to := range cfg.Graph1 {
		tos = append(tos, to)
	}
	sort.Slice(tos, func(i, j int) bool { return tos[i] < tos[j] })

	var (
		haveRange  bool
		rangeOpen  bool // rangeStart valid (false means "from the beginning")
		rangeStart uint64
		rangeDelta int64
	)

	startString := func() string {
		if !rangeOpen {
			return "*"
		}
		return fmt.Sprintf("%08x", rangeStart)
	}

	for _, to := range tos {
		if to < cfg.TargetStart || to >= cfg.TargetEnd {
			continue
		}

		votes := make(map[uint64]int)
		var order []uint64
		for _, from := range cfg.Graph1[to] {
			if from < cfg.AlignedStart || from >= cfg.AlignedEnd {
				continue
			}
			converted, ok, err := addrmap.MapFromTo(cfg.Mapper1, cfg.Mapper2, from, handling)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			dest, ok := reverse[converted]
			if !ok {
				continue
			}
			if votes[dest] == 0 {
				order = append(order, dest)
			}
			votes[dest]++
		}
		if len(order) == 0 {
			continue
		}

		winner := order[0]
		for _, candidate := range order[1:] {
			if votes[candidate] > votes[winner] {
				winner = candidate
			}
		}
		delta := int64(winner) - int64(to)

		if !haveRange {
			haveRange = true
			rangeDelta = delta
		}
		if delta != rangeDelta {
			if abs64(delta-rangeDelta) > outlierTolerance {
				// Probably a mistake; drop the sample.
				log.Debugf("dropping outlier delta %s at %08x (current %s)", FormatDelta(delta), to, FormatDelta(rangeDelta))
				continue
			}
			fmt.Fprintf(w, "%s-%08x: %s\n", startString(), to-1, FormatDelta(rangeDelta))
			rangeOpen = true
			rangeStart = to
			rangeDelta = delta
		}
	}

	if !haveRange {
		return ErrNoUsableXrefs
	}

	fmt.Fprintf(w, "%s-*: %s\n", startString(), FormatDelta(rangeDelta))
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
