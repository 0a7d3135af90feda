// Package handlers implements BridgeCore's HTTP surface (spec §6.1): tenant
// auth, the RPC gateway, webhook ingest, and the sync engine endpoints.
// Grounded on pkg/incident's handler-wraps-store shape.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/geniustep/bridgecore/internal/admission"
	"github.com/geniustep/bridgecore/internal/authn"
	"github.com/geniustep/bridgecore/internal/httpserver"
	"github.com/geniustep/bridgecore/internal/tenantregistry"
)

// AuthHandler implements /api/v1/auth/tenant/*.
type AuthHandler struct {
	tokens     *authn.TokenManager
	reg        *tenantregistry.Registry
	revocation *authn.RevocationStore
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(tokens *authn.TokenManager, reg *tenantregistry.Registry, revocation *authn.RevocationStore) *AuthHandler {
	return &AuthHandler{tokens: tokens, reg: reg, revocation: revocation}
}

type loginRequest struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	TenantSlug *string `json:"tenant_slug,omitempty"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

type snapshot struct {
	TenantID uuid.UUID `json:"tenant_id"`
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	Slug     string    `json:"tenant_slug"`
	Status   string    `json:"tenant_status"`
}

type loginResponse struct {
	tokenPair
	Tenant snapshot `json:"tenant"`
}

// HandleLogin verifies the presented credentials and issues an
// access+refresh token pair plus a caller snapshot (spec §6.1).
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	user, tenant, err := h.reg.ResolveUser(r.Context(), req.Email, req.TenantSlug, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, tenantregistry.ErrAuthFailed):
			httpserver.RespondError(w, http.StatusUnauthorized, "auth_failed", "invalid email or password")
		case errors.Is(err, tenantregistry.ErrUserInactive):
			httpserver.RespondError(w, http.StatusForbidden, "user_inactive", "this account has been deactivated")
		default:
			httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not resolve user")
		}
		return
	}

	access, err := h.tokens.IssueTenantToken(user.ID.String(), tenant.ID.String(), string(user.Role), authn.KindAccess)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not issue access token")
		return
	}
	refresh, err := h.tokens.IssueTenantToken(user.ID.String(), tenant.ID.String(), "", authn.KindRefresh)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not issue refresh token")
		return
	}

	httpserver.Respond(w, http.StatusOK, loginResponse{
		tokenPair: tokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int(authn.AccessTTL.Seconds())},
		Tenant: snapshot{
			TenantID: tenant.ID,
			UserID:   user.ID,
			Email:    user.Email,
			Role:     string(user.Role),
			Slug:     tenant.Slug,
			Status:   string(tenant.Status),
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefresh verifies a refresh token and rotates a new access token
// for the same (user, tenant) pair. Per spec §6.2 testable property 7, an
// access token presented here is rejected as WrongTokenKind.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	claims, err := h.tokens.VerifyTenantToken(req.RefreshToken, authn.KindRefresh)
	if err != nil {
		status := http.StatusUnauthorized
		httpserver.RespondError(w, status, "invalid_refresh_token", err.Error())
		return
	}

	tenant, err := h.reg.ResolveByID(r.Context(), mustParseUUID(claims.TenantID))
	if err != nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "tenant_unknown", "tenant no longer exists")
		return
	}
	if !tenant.Admittable() {
		httpserver.RespondError(w, http.StatusForbidden, "tenant_suspended", "tenant is not active")
		return
	}

	access, err := h.tokens.IssueTenantToken(claims.Subject, claims.TenantID, "user", authn.KindAccess)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not issue access token")
		return
	}

	httpserver.Respond(w, http.StatusOK, tokenPair{AccessToken: access, ExpiresIn: int(authn.AccessTTL.Seconds())})
}

// HandleLogout best-effort revokes the presented access token by
// denylisting its jti until the token's original expiry (spec §6.1).
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	rc, ok := admission.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "missing_token", "no admitted request context")
		return
	}

	claims, err := h.tokens.VerifyTenantToken(bearerFrom(r), authn.KindAccess)
	if err == nil && claims.ID != "" && h.revocation != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		_ = h.revocation.Revoke(r.Context(), claims.ID, ttl)
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"tenant_id": rc.Tenant.ID.String(), "status": "revoked"})
}

// HandleMe returns the caller's snapshot as resolved by the admission
// pipeline. An optional "probe_upstream=true" query flag is reserved for a
// live upstream field probe; omitted here since it requires an upstream
// round trip this handler doesn't otherwise make.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	rc, ok := admission.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "missing_token", "no admitted request context")
		return
	}

	httpserver.Respond(w, http.StatusOK, snapshot{
		TenantID: rc.Tenant.ID,
		UserID:   mustParseUUID(rc.UserID),
		Role:     rc.Role,
		Slug:     rc.Tenant.Slug,
		Status:   string(rc.Tenant.Status),
	})
}

func mustParseUUID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func bearerFrom(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
