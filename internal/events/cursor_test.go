package events

import (
	"testing"

	"github.com/google/uuid"
)

func TestLockIDDeterministic(t *testing.T) {
	tenant := uuid.New()
	a := lockID(tenant, "u1", "d1", "mobile")
	b := lockID(tenant, "u1", "d1", "mobile")
	if a != b {
		t.Errorf("lockID should be deterministic for identical inputs")
	}
}

func TestLockIDDiffersAcrossIdentityComponents(t *testing.T) {
	tenant := uuid.New()
	base := lockID(tenant, "u1", "d1", "mobile")

	if lockID(uuid.New(), "u1", "d1", "mobile") == base {
		t.Errorf("lockID should differ across tenants")
	}
	if lockID(tenant, "u2", "d1", "mobile") == base {
		t.Errorf("lockID should differ across upstream users")
	}
	if lockID(tenant, "u1", "d2", "mobile") == base {
		t.Errorf("lockID should differ across devices")
	}
	if lockID(tenant, "u1", "d1", "desktop") == base {
		t.Errorf("lockID should differ across app types")
	}
}

func TestErrNotAdvancingIsDistinct(t *testing.T) {
	if ErrNotAdvancing == nil {
		t.Fatal("ErrNotAdvancing must be a non-nil sentinel")
	}
}
