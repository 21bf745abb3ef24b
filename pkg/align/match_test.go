package align

import (
	"math/rand"
	"testing"
)

func TestMatchAt(t *testing.T) {
	a := make([]byte, 1024)
	b := make([]byte, 1024)
	rand.New(rand.NewSource(3)).Read(a)
	copy(b[256:], a[128:128+512])

	tests := []struct {
		name   string
		a, b   []byte
		offset int
		size   int
		want   int
		wantOK bool
	}{
		{
			name:   "unique match",
			a:      a,
			b:      b,
			offset: 128,
			size:   128,
			want:   256,
			wantOK: true,
		},
		{
			name:   "interior of the copied region",
			a:      a,
			b:      b,
			offset: 300,
			size:   64,
			want:   428,
			wantOK: true,
		},
		{
			name:   "absent snippet",
			a:      a,
			b:      b,
			offset: 700, // past the copied region
			size:   128,
		},
		{
			name:   "all zero snippet rejected",
			a:      make([]byte, 256),
			b:      b,
			offset: 0,
			size:   128,
		},
		{
			name:   "ambiguous snippet rejected",
			a:      []byte{1, 2, 3, 4, 1, 2, 3, 4},
			b:      []byte{9, 1, 2, 3, 4, 9, 1, 2, 3, 4},
			offset: 0,
			size:   4,
		},
		{
			name:   "out of bounds",
			a:      a,
			b:      b,
			offset: 1000,
			size:   128,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchAt(tt.a, tt.b, tt.offset, tt.size)
			if ok != tt.wantOK {
				t.Fatalf("MatchAt(%d, %d) ok = %v, want %v", tt.offset, tt.size, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("MatchAt(%d, %d) = %d, want %d", tt.offset, tt.size, got, tt.want)
			}
		})
	}
}

func TestRandomMatch(t *testing.T) {
	buf := make([]byte, 4096)
	rand.New(rand.NewSource(5)).Read(buf)

	t.Run("identical buffers match at equal offsets", func(t *testing.T) {
		rnd := rand.New(rand.NewSource(1))
		posA, posB, ok := RandomMatch(rnd, buf, buf, 0, len(buf))
		if !ok {
			t.Fatal("expected a match between identical buffers")
		}
		if posA != posB {
			t.Errorf("positions differ: %d != %d", posA, posB)
		}
	})

	t.Run("disjoint buffers never match", func(t *testing.T) {
		other := make([]byte, 4096)
		for i := range other {
			other[i] = buf[i] ^ 0xff
		}
		rnd := rand.New(rand.NewSource(1))
		if _, _, ok := RandomMatch(rnd, buf, other, 0, len(buf)); ok {
			t.Error("expected no match")
		}
	})

	t.Run("range smaller than any snippet size", func(t *testing.T) {
		rnd := rand.New(rand.NewSource(1))
		if _, _, ok := RandomMatch(rnd, buf, buf, 0, 32); ok {
			t.Error("expected no match for a 32 byte range")
		}
	})
}
