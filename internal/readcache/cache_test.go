package readcache

import "testing"

func TestEntryKeyNamespacesByTenantAndModel(t *testing.T) {
	k1 := entryKey("tenant-a", "res.partner", "digest123")
	k2 := entryKey("tenant-b", "res.partner", "digest123")
	if k1 == k2 {
		t.Errorf("entryKey should differ across tenants")
	}

	k3 := entryKey("tenant-a", "sale.order", "digest123")
	if k1 == k3 {
		t.Errorf("entryKey should differ across models")
	}
}

func TestEntryKeyDeterministic(t *testing.T) {
	if entryKey("t", "m", "d") != entryKey("t", "m", "d") {
		t.Errorf("entryKey should be deterministic")
	}
}
