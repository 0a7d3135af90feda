package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlePull_NoAdmissionContext(t *testing.T) {
	h := NewSyncHandler(nil)

	r := httptest.NewRequest(http.MethodPost, "/sync/pull", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.HandlePull(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleState_NoAdmissionContext(t *testing.T) {
	h := NewSyncHandler(nil)

	r := httptest.NewRequest(http.MethodGet, "/sync/state", nil)
	w := httptest.NewRecorder()
	h.HandleState(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleReset_NoAdmissionContext(t *testing.T) {
	h := NewSyncHandler(nil)

	r := httptest.NewRequest(http.MethodPost, "/sync/reset", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.HandleReset(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
