package authn

import "testing"

func TestRevocationKeyNamespacesByJTI(t *testing.T) {
	k1 := revocationKey("jti-a")
	k2 := revocationKey("jti-b")
	if k1 == k2 {
		t.Errorf("revocationKey should differ across jtis")
	}
	if k1 != "bridgecore:revoked:jti-a" {
		t.Errorf("revocationKey(%q) = %q, want bridgecore:revoked:jti-a", "jti-a", k1)
	}
}

func TestRevocationKeyDeterministic(t *testing.T) {
	if revocationKey("x") != revocationKey("x") {
		t.Errorf("revocationKey should be deterministic")
	}
}
