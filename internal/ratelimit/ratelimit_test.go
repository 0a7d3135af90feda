package ratelimit

import (
	"testing"
	"time"
)

func TestHourKeyDeterministic(t *testing.T) {
	ts := time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC)
	k1 := hourKey("tenant-a", ts)
	k2 := hourKey("tenant-a", ts)
	if k1 != k2 {
		t.Errorf("hourKey should be deterministic, got %q vs %q", k1, k2)
	}
	if k1 != "ratelimit:tenant-a:hour:2026080114" {
		t.Errorf("hourKey = %q, want ratelimit:tenant-a:hour:2026080114", k1)
	}
}

func TestDayKeyStableAcrossHoursSameDay(t *testing.T) {
	a := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	b := time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC)
	if dayKey("tenant-a", a) != dayKey("tenant-a", b) {
		t.Errorf("dayKey should be stable across hours within the same day")
	}
}

func TestHourKeyDiffersAcrossTenants(t *testing.T) {
	ts := time.Now()
	if hourKey("tenant-a", ts) == hourKey("tenant-b", ts) {
		t.Errorf("hourKey should differ by tenant")
	}
}

func TestMax0(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{5, 5},
		{0, 0},
		{-3, 0},
	}
	for _, c := range cases {
		if got := max0(c.in); got != c.want {
			t.Errorf("max0(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
