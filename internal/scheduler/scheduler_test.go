package scheduler

import "testing"

func TestLockTTLIsPositive(t *testing.T) {
	// The lock must carry a positive TTL so that a crashed holder's lock
	// expires and later ticks can run again.
	if lockTTL <= 0 {
		t.Fatalf("lockTTL must be positive")
	}
}

func TestCursorGraceIsPositive(t *testing.T) {
	if cursorGrace <= 0 {
		t.Fatalf("cursorGrace must be positive so a reset cursor can still see recent history")
	}
}
