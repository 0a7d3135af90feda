package authn

import (
	"testing"
	"time"
)

func key(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := NewTokenManager(key(1), key(2))

	raw, err := m.IssueTenantToken("user-1", "tenant-1", "user", KindAccess)
	if err != nil {
		t.Fatalf("IssueTenantToken: %v", err)
	}

	claims, err := m.VerifyTenantToken(raw, KindAccess)
	if err != nil {
		t.Fatalf("VerifyTenantToken: %v", err)
	}
	if claims.Subject != "user-1" || claims.TenantID != "tenant-1" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshTokenRejectedAtAccessEndpoint(t *testing.T) {
	m := NewTokenManager(key(1), key(2))

	refresh, err := m.IssueTenantToken("user-1", "tenant-1", "user", KindRefresh)
	if err != nil {
		t.Fatalf("IssueTenantToken: %v", err)
	}

	if _, err := m.VerifyTenantToken(refresh, KindAccess); err != ErrWrongTokenKind {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestAccessTokenRejectedAtRefreshEndpoint(t *testing.T) {
	m := NewTokenManager(key(1), key(2))

	access, err := m.IssueTenantToken("user-1", "tenant-1", "user", KindAccess)
	if err != nil {
		t.Fatalf("IssueTenantToken: %v", err)
	}

	if _, err := m.VerifyTenantToken(access, KindRefresh); err != ErrWrongTokenKind {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestTenantTokenRejectedByAdminKey(t *testing.T) {
	m := NewTokenManager(key(1), key(2))

	raw, err := m.IssueTenantToken("user-1", "tenant-1", "user", KindAccess)
	if err != nil {
		t.Fatalf("IssueTenantToken: %v", err)
	}

	if _, err := m.VerifyAdminToken(raw); err == nil {
		t.Fatalf("expected a tenant token to fail admin verification")
	}
}

func TestMissingTokenRejected(t *testing.T) {
	m := NewTokenManager(key(1), key(2))
	if _, err := m.VerifyTenantToken("", KindAccess); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestIssueTenantTokenSetsUniqueJTI(t *testing.T) {
	m := NewTokenManager(key(1), key(2))

	a, err := m.IssueTenantToken("user-1", "tenant-1", "user", KindAccess)
	if err != nil {
		t.Fatalf("IssueTenantToken: %v", err)
	}
	b, err := m.IssueTenantToken("user-1", "tenant-1", "user", KindAccess)
	if err != nil {
		t.Fatalf("IssueTenantToken: %v", err)
	}

	ca, err := m.VerifyTenantToken(a, KindAccess)
	if err != nil {
		t.Fatalf("VerifyTenantToken: %v", err)
	}
	cb, err := m.VerifyTenantToken(b, KindAccess)
	if err != nil {
		t.Fatalf("VerifyTenantToken: %v", err)
	}

	if ca.ID == "" || cb.ID == "" {
		t.Fatal("expected non-empty jti on both tokens")
	}
	if ca.ID == cb.ID {
		t.Fatal("expected distinct jti across separate issuances")
	}
}

func TestAccessTokenExpiryIsThirtyMinutes(t *testing.T) {
	if AccessTTL != 30*time.Minute {
		t.Fatalf("AccessTTL = %v, want 30m", AccessTTL)
	}
	if RefreshTTL != 7*24*time.Hour {
		t.Fatalf("RefreshTTL = %v, want 7d", RefreshTTL)
	}
	if AdminTTL != 24*time.Hour {
		t.Fatalf("AdminTTL = %v, want 24h", AdminTTL)
	}
}
