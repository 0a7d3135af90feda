package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlePush_NoAdmissionContext(t *testing.T) {
	h := NewWebhookHandler(nil)

	r := httptest.NewRequest(http.MethodPost, "/webhooks/push", strings.NewReader(`{"events":[]}`))
	w := httptest.NewRecorder()
	h.HandlePush(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleCheckUpdates_NoAdmissionContext(t *testing.T) {
	h := NewWebhookHandler(nil)

	r := httptest.NewRequest(http.MethodGet, "/webhooks/check-updates", nil)
	w := httptest.NewRecorder()
	h.HandleCheckUpdates(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
