package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleDispatch_NoAdmissionContext(t *testing.T) {
	h := NewOdooHandler(nil, nil)

	r := httptest.NewRequest(http.MethodPost, "/odoo/search_read", nil)
	w := httptest.NewRecorder()
	h.HandleDispatch(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
