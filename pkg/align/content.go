package align

import (
	"fmt"
	"io"
	"math/rand"
	"sort"

	"github.com/apex/log"

	"github.com/gecko-re/ppcalign/pkg/codefile"
)

// Jump amounts for the right-boundary search, 2^10 down to 2^7 in
// half-power steps. An empirically tuned schedule; the exact values
// only affect search speed, not the resulting map.
var jumpAmounts = []int{1024, 724, 512, 362, 256, 181, 128}

type span struct {
	start, end int
}

// AlignRange finds delta division points between a[start:end] and the
// corresponding bytes of b, recording them in t. addrA and addrB are the
// load addresses of the two buffers. It returns the number of successful
// random matches; zero means the range produced no usable evidence.
//
// Each range is processed in three steps: tighten the right boundary
// toward the last address where the end delta still verifiably holds,
// sample the remainder for unique matches, then requeue any newly
// divided sub-ranges. A work stack stands in for recursion so that
// pathological inputs cannot blow the call stack.
func AlignRange(rnd *rand.Rand, a, b []byte, addrA, addrB uint64, start, end int, t *Tracker) (int, error) {
	baseDelta := int64(addrB) - int64(addrA)

	var matched int
	stack := []span{{start: start, end: end}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		subs, n, err := refineRange(rnd, a, b, addrA, baseDelta, s, t)
		if err != nil {
			return matched, err
		}
		matched += n
		stack = append(stack, subs...)
	}
	return matched, nil
}

func refineRange(rnd *rand.Rand, a, b []byte, addrA uint64, baseDelta int64, s span, t *Tracker) ([]span, int, error) {
	start, end := s.start, s.end
	expected := t.ExpectedOffsetAt(addrA + uint64(end))

	var matched int

	// Push the upper boundary left in decreasing jumps while the delta
	// expected at the end still verifies there.
	moved := true
	for moved {
		moved = false
		for _, jump := range jumpAmounts {
			newEnd := end - jump
			if newEnd <= start {
				continue
			}
			match, ok := MatchAt(a, b, newEnd, jump/4)
			if !ok {
				continue
			}
			matched++
			if int64(match-newEnd)+baseDelta == expected {
				end = newEnd
				moved = true
			}
		}
	}

	// Crawl left byte by byte while equality under the end delta holds,
	// closing the slack the jump search missed.
	fileDelta := expected - baseDelta
	for end > start && end < len(a) {
		bi := int64(end) + fileDelta
		if bi < 0 || bi >= int64(len(b)) || a[end] != b[bi] {
			break
		}
		end--
	}

	if end < s.end {
		// end now sits on the first mismatching byte; the end delta is
		// known to hold from end+1 on. Recording it here lets the
		// tracker pull the following division back to the exact spot.
		boundary := addrA + uint64(end) + 1
		if boundary < t.LastAddress() {
			if _, err := t.Report(boundary, expected); err != nil {
				return nil, 0, err
			}
		}
	}

	points := []int{start, end}
	iterations := (end - start) / 50
	if iterations < 100 {
		iterations = 100
	}
	for i := 0; i < iterations; i++ {
		posA, posB, ok := RandomMatch(rnd, a, b, start, end)
		if !ok {
			continue
		}
		matched++
		addr := addrA + uint64(posA)
		created, err := t.Report(addr, int64(posB-posA)+baseDelta)
		if err != nil {
			return nil, matched, err
		}
		if created {
			points = append(points, posA)
		}
	}

	if len(points) <= 2 {
		return nil, matched, nil
	}
	sort.Ints(points)
	subs := make([]span, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		if points[i+1] > points[i] {
			subs = append(subs, span{start: points[i], end: points[i+1]})
		}
	}
	return subs, matched, nil
}

// AlignFiles runs the content aligner over every initialized section
// pair of two code files, writing one report per section to w.
//
// Sections are paired up in ascending address order; a count or bss
// status mismatch means the two files don't correspond and is fatal.
// bss pairs carry no bytes to compare and are skipped (use the xref
// aligner for those).
func AlignFiles(rnd *rand.Rand, fileA, fileB *codefile.File, w io.Writer) error {
	sectionsA := fileA.SectionsByAddress()
	sectionsB := fileB.SectionsByAddress()

	if len(sectionsA) != len(sectionsB) {
		return fmt.Errorf("section count mismatch: %d != %d", len(sectionsA), len(sectionsB))
	}

	for i := range sectionsA {
		sa, sb := sectionsA[i], sectionsB[i]
		// NOTE: executability is deliberately not compared; it would
		// break diffing a DOL against an ALF.
		if sa.IsBSS() != sb.IsBSS() {
			return fmt.Errorf("section %d bss status mismatch", i)
		}
		if sa.IsBSS() {
			continue
		}
		if uint64(len(sa.Data)) != sa.Size {
			return fmt.Errorf("section %d has %d bytes of data for size %#x", i, len(sa.Data), sa.Size)
		}

		tracker := NewTracker(
			sa.Address,
			int64(sb.Address)-int64(sa.Address),
			sa.Address+sa.Size,
			(int64(sb.Address)+int64(sb.Size))-(int64(sa.Address)+int64(sa.Size)),
		)

		fmt.Fprintf(w, "Section %d\n", i)

		matched, err := AlignRange(rnd, sa.Data, sb.Data, sa.Address, sb.Address, 0, int(sa.Size), tracker)
		if err != nil {
			return fmt.Errorf("failed to align section %d: %v", i, err)
		}
		if matched == 0 {
			log.WithField("section", i).Warn("could not align: no unique matches found")
			fmt.Fprintln(w)
			continue
		}

		tracker.WriteReport(w)
		fmt.Fprintln(w)
	}

	return nil
}
