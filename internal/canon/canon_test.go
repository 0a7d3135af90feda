package canon

import "testing"

func TestCanonicalKeyOrderIndependent(t *testing.T) {
	a, err := ParseJSON([]byte(`{"b":1,"a":2}`))
	if err != nil {
		t.Fatalf("parsing a: %v", err)
	}
	b, err := ParseJSON([]byte(`{"a":2,"b":1}`))
	if err != nil {
		t.Fatalf("parsing b: %v", err)
	}
	if string(a.Canonical()) != string(b.Canonical()) {
		t.Fatalf("expected identical canonical form, got %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestCanonicalNumericWidthNormalized(t *testing.T) {
	a, err := ParseJSON([]byte(`{"n":5}`))
	if err != nil {
		t.Fatalf("parsing a: %v", err)
	}
	b, err := ParseJSON([]byte(`{"n":5.0}`))
	if err != nil {
		t.Fatalf("parsing b: %v", err)
	}
	if string(a.Canonical()) != string(b.Canonical()) {
		t.Fatalf("expected 5 and 5.0 to canonicalize identically, got %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestCacheKeyStableAcrossKeyOrder(t *testing.T) {
	a, _ := ParseJSON([]byte(`{"domain":[["is_company","=",true]],"fields":["name","email"],"limit":5}`))
	b, _ := ParseJSON([]byte(`{"limit":5,"fields":["name","email"],"domain":[["is_company","=",true]]}`))

	ka := CacheKey("tenant-1", "search_read", "res.partner", a)
	kb := CacheKey("tenant-1", "search_read", "res.partner", b)
	if ka != kb {
		t.Fatalf("expected stable cache key regardless of JSON key order, got %q vs %q", ka, kb)
	}
}

func TestCacheKeyDiffersByModel(t *testing.T) {
	p, _ := ParseJSON([]byte(`{}`))
	k1 := CacheKey("tenant-1", "search_read", "res.partner", p)
	k2 := CacheKey("tenant-1", "search_read", "sale.order", p)
	if k1 == k2 {
		t.Fatalf("expected cache keys for different models to differ")
	}
}
