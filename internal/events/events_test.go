package events

import "testing"

func TestChangeKindConstants(t *testing.T) {
	for _, k := range []ChangeKind{ChangeCreate, ChangeWrite, ChangeUnlink} {
		if k == "" {
			t.Fatalf("change kind constant must not be empty")
		}
	}
}

func TestEventCarriesOrderingAuthority(t *testing.T) {
	// The upstream event id, not ServerTimestamp, is the sole ordering
	// authority (spec §9(a)) — this just pins the field exists with the
	// right zero value so a future refactor can't silently drop it.
	var e Event
	if e.ID != 0 {
		t.Fatalf("zero-value Event.ID = %d, want 0", e.ID)
	}
}
