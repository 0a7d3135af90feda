// Package authn issues and verifies the bearer tokens the admission
// pipeline trusts: tenant access/refresh tokens signed with the tenant
// signing key, and admin tokens signed with a separate key (spec §6.2).
// Claim shape follows the access/refresh-over-jwt.RegisteredClaims pattern
// used elsewhere in the retrieval pack (Jeffreasy-LaventeCareAuthSystems's
// token.go), adapted to HMAC since BridgeCore uses one symmetric key per
// space rather than an RSA keypair.
package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes access from refresh tokens; a token presented at the
// wrong endpoint is rejected (spec §6.2, testable property 7).
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const (
	AccessTTL  = 30 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
	AdminTTL   = 24 * time.Hour
)

// TenantClaims are carried by both access and refresh tenant tokens; Role
// is empty on a refresh token. An access token carries the role, and the
// admission pipeline takes the caller's role from that claim.
type TenantClaims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	Kind     Kind   `json:"kind"`
}

// AdminClaims are carried by admin-plane tokens, authenticated against a
// separate signing key and role space (spec §3's Admin identity).
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

var (
	ErrMissingToken   = errors.New("authn: missing token")
	ErrInvalidToken   = errors.New("authn: invalid token")
	ErrExpiredToken   = errors.New("authn: expired token")
	ErrWrongTokenKind = errors.New("authn: wrong token kind")
)

// TokenManager issues and verifies tenant and admin tokens under their
// respective signing keys.
type TokenManager struct {
	tenantKey []byte
	adminKey  []byte
}

// NewTokenManager builds a TokenManager. Both keys should be at least 32
// bytes of cryptographically random material.
func NewTokenManager(tenantKey, adminKey []byte) *TokenManager {
	return &TokenManager{tenantKey: tenantKey, adminKey: adminKey}
}

// IssueTenantToken signs an access or refresh token for (userID, tenantID).
// role is only meaningful (and only embedded) for access tokens.
func (m *TokenManager) IssueTenantToken(userID, tenantID, role string, kind Kind) (string, error) {
	ttl := AccessTTL
	if kind == KindRefresh {
		ttl = RefreshTTL
		role = ""
	}

	now := time.Now()
	claims := TenantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "bridgecore",
		},
		TenantID: tenantID,
		Role:     role,
		Kind:     kind,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.tenantKey)
}

// VerifyTenantToken parses and verifies a tenant token, requiring it to be
// of the given kind (ErrWrongTokenKind otherwise).
func (m *TokenManager) VerifyTenantToken(raw string, want Kind) (*TenantClaims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &TenantClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.tenantKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != want {
		return nil, ErrWrongTokenKind
	}

	return claims, nil
}

// IssueAdminToken signs a 24h admin token.
func (m *TokenManager) IssueAdminToken(adminID, role string) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AdminTTL)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "bridgecore-admin",
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.adminKey)
}

// VerifyAdminToken parses and verifies an admin token.
func (m *TokenManager) VerifyAdminToken(raw string) (*AdminClaims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &AdminClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.adminKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
