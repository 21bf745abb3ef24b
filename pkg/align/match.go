package align

import (
	"bytes"
	"math/rand"
)

// Candidate snippet sizes for randomized matching, tried largest first.
var matchSizes = []int{128, 64}

// matchTrials bounds the random probes per candidate size. The input
// buffers can be megabytes long, so exhaustive unique-substring search
// is off the table; bounded sampling with rejection of ambiguous hits
// is the tradeoff.
const matchTrials = 50

// MatchAt extracts a[offset:offset+size] and looks it up in b. It
// returns the snippet's location in b only when the snippet is not all
// zero bytes (zero runs match everywhere) and occurs in b exactly once.
// A wrong-but-confident match is worse than no match, so anything
// ambiguous is rejected outright.
func MatchAt(a, b []byte, offset, size int) (int, bool) {
	if offset < 0 || size <= 0 || offset+size > len(a) {
		return 0, false
	}
	snippet := a[offset : offset+size]

	if allZero(snippet) {
		return 0, false
	}
	if bytes.Count(b, snippet) != 1 {
		return 0, false
	}
	return bytes.Index(b, snippet), true
}

// RandomMatch probes [start, end) for a uniquely matching snippet,
// returning the corresponding offsets in a and b on success.
func RandomMatch(rnd *rand.Rand, a, b []byte, start, end int) (int, int, bool) {
	for _, size := range matchSizes {
		if size > len(a) || size > len(b) || size > end-start {
			continue
		}
		for i := 0; i < matchTrials; i++ {
			offset := start + rnd.Intn(end-size-start+1)
			if match, ok := MatchAt(a, b, offset, size); ok {
				return offset, match, true
			}
		}
	}
	return 0, 0, false
}

func allZero(p []byte) bool {
	for _, c := range p {
		if c != 0 {
			return false
		}
	}
	return true
}
