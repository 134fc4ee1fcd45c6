package pq

import (
	"math"
	"testing"
)

func TestNitsToPQEndpoints(t *testing.T) {
	t.Parallel()

	if got := NitsToPQ(0); math.Abs(got) > 1e-6 {
		t.Errorf("NitsToPQ(0): got %v, want ~0", got)
	}
	if got := NitsToPQ(MaxNits); math.Abs(got-1) > 1e-9 {
		t.Errorf("NitsToPQ(10000): got %v, want 1", got)
	}
}

func TestNitsToPQMonotonic(t *testing.T) {
	t.Parallel()

	prev := NitsToPQ(0)
	for n := 0.5; n <= MaxNits; n += 0.5 {
		got := NitsToPQ(n)
		if got < prev {
			t.Fatalf("NitsToPQ(%v) = %v decreased from %v", n, got, prev)
		}
		prev = got
	}
}

func TestNitsToPQClamps(t *testing.T) {
	t.Parallel()

	if got := NitsToPQ(-5); got != NitsToPQ(0) {
		t.Errorf("negative input: got %v, want %v", got, NitsToPQ(0))
	}
	if got := NitsToPQ(20000); got != 1 {
		t.Errorf("above peak: got %v, want 1", got)
	}
}

func TestCodeword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		nits float64
		want uint16
	}{
		{0, 0},
		{0.0001, 7},
		{0.005, 62},
		{1, 614},
		{100, 2081},
		{600, 2851},
		{1000, 3079},
		{4000, 3696},
		{10000, 4095},
	}
	for _, tt := range tests {
		if got := Codeword(tt.nits); got != tt.want {
			t.Errorf("Codeword(%v): got %d, want %d", tt.nits, got, tt.want)
		}
	}
}

func TestFromNormalized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want uint16
	}{
		{-0.1, 0},
		{0, 0},
		{0.5, 2048},
		{1, 4095},
		{1.5, 4095},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := FromNormalized(tt.in); got != tt.want {
			t.Errorf("FromNormalized(%v): got %d, want %d", tt.in, got, tt.want)
		}
	}
}
