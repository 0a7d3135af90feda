package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/geniustep/bridgecore/internal/authn"
)

func TestRequireAdmin_RejectsMissingToken(t *testing.T) {
	tokens := authn.NewTokenManager(make([]byte, 32), make([]byte, 32))
	h := NewAdminHandler(nil, tokens)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	r := httptest.NewRequest(http.MethodGet, "/admin/plans", nil)
	w := httptest.NewRecorder()
	h.RequireAdmin(next).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("next handler should not run when the admin token is missing")
	}
}

func TestRequireAdmin_AcceptsValidToken(t *testing.T) {
	tokens := authn.NewTokenManager(make([]byte, 32), make([]byte, 32))
	h := NewAdminHandler(nil, tokens)

	token, err := tokens.IssueAdminToken("admin-1", "superadmin")
	if err != nil {
		t.Fatalf("IssueAdminToken: %v", err)
	}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	r := httptest.NewRequest(http.MethodGet, "/admin/plans", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.RequireAdmin(next).ServeHTTP(w, r)

	if !called {
		t.Errorf("next handler should run for a valid admin token; status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandleCreateTenant_InvalidJSON(t *testing.T) {
	h := NewAdminHandler(nil, nil)

	r := httptest.NewRequest(http.MethodPost, "/admin/tenants", strings.NewReader("{bad"))
	w := httptest.NewRecorder()
	h.HandleCreateTenant(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleCreateTenant_InvalidPlanID(t *testing.T) {
	h := NewAdminHandler(nil, nil)

	body := `{"slug":"acme","plan_id":"not-a-uuid"}`
	r := httptest.NewRequest(http.MethodPost, "/admin/tenants", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleCreateTenant(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleSetTenantStatus_InvalidID(t *testing.T) {
	h := NewAdminHandler(nil, nil)

	router := chi.NewRouter()
	router.Post("/tenants/{id}/status", h.HandleSetTenantStatus)

	r := httptest.NewRequest(http.MethodPost, "/tenants/not-a-uuid/status", strings.NewReader(`{"status":"active"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
