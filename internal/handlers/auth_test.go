package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleLogin_InvalidJSON(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil)

	r := httptest.NewRequest(http.MethodPost, "/auth/tenant/login", strings.NewReader("{bad"))
	w := httptest.NewRecorder()
	h.HandleLogin(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleRefresh_InvalidJSON(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil)

	r := httptest.NewRequest(http.MethodPost, "/auth/tenant/refresh", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	h.HandleRefresh(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleLogout_NoAdmissionContext(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil)

	r := httptest.NewRequest(http.MethodPost, "/auth/tenant/logout", nil)
	w := httptest.NewRecorder()
	h.HandleLogout(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleMe_NoAdmissionContext(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil)

	r := httptest.NewRequest(http.MethodGet, "/auth/tenant/me", nil)
	w := httptest.NewRecorder()
	h.HandleMe(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestBearerFrom(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"well formed", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"missing", "", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := bearerFrom(r); got != tt.want {
				t.Errorf("bearerFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMustParseUUID_Invalid(t *testing.T) {
	id := mustParseUUID("not-a-uuid")
	if id.String() != "00000000-0000-0000-0000-000000000000" {
		t.Errorf("expected zero UUID for invalid input, got %v", id)
	}
}
