package core

import "testing"

func TestRound2(t *testing.T) {
	cases := []struct {
		in  float64
		out float64
	}{
		{1.0, 1.0},
		{1.234, 1.23},
		{1.235, 1.24}, // half rounds up
		{1.236, 1.24},
		{100.005, 100.01},
		{0.004999, 0.0},
		{-1.235, -1.24},
		{0, 0},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.out {
			t.Fatalf("Round2(%v) = %v, want %v", tc.in, got, tc.out)
		}
	}
}

func TestNegligible(t *testing.T) {
	if !Negligible(0) || !Negligible(1e-12) || !Negligible(-1e-12) {
		t.Fatal("expected near-zero values to be negligible")
	}
	if Negligible(0.01) || Negligible(-0.01) {
		t.Fatal("expected cent-scale values to be significant")
	}
}
