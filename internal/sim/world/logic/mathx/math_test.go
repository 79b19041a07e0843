package mathx

import (
	"math"
	"testing"
)

func TestFloorDivAndMod(t *testing.T) {
	cases := []struct{ a, b, q, m int }{
		{7, 4, 1, 3},
		{-1, 4, -1, 3},
		{-4, 4, -1, 0},
		{-5, 4, -2, 3},
		{0, 4, 0, 0},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.q {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, got, c.q)
		}
		if got := Mod(c.a, c.b); got != c.m {
			t.Fatalf("Mod(%d,%d)=%d want %d", c.a, c.b, got, c.m)
		}
	}
}

func TestFloorToCell(t *testing.T) {
	cases := []struct {
		v, size float64
		want    int
	}{
		{0, 96, 0},
		{95.9, 96, 0},
		{96, 96, 1},
		{-0.1, 96, -1},
		{-96, 96, -1},
		{-96.1, 96, -2},
		{math.NaN(), 96, 0},
		{math.Inf(1), 96, 0},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := FloorToCell(c.v, c.size); got != c.want {
			t.Fatalf("FloorToCell(%v,%v)=%d want %d", c.v, c.size, got, c.want)
		}
	}
}

func TestChebyshev(t *testing.T) {
	if got := Chebyshev(-3, 2); got != 3 {
		t.Fatalf("Chebyshev=%d want 3", got)
	}
	if got := Chebyshev(1, -7); got != 7 {
		t.Fatalf("Chebyshev=%d want 7", got)
	}
}

func TestHash2Stable(t *testing.T) {
	if Hash2(1, 2, 3) != Hash2(1, 2, 3) {
		t.Fatalf("Hash2 not deterministic")
	}
	if Hash2(1, 2, 3) == Hash2(2, 2, 3) {
		t.Fatalf("Hash2 ignores seed")
	}
}
