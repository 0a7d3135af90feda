package httpserver

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/geniustep/bridgecore/internal/admission"
	"github.com/geniustep/bridgecore/internal/rpcgateway"
	"github.com/geniustep/bridgecore/internal/upstreampool"
)

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return e
}

func TestRespondAdmissionError_StatusMapping(t *testing.T) {
	tests := []struct {
		kind       admission.ErrorKind
		retryAfter int
		wantStatus int
		wantRetry  string
	}{
		{admission.ErrMissingToken, 0, 401, ""},
		{admission.ErrInvalidToken, 0, 401, ""},
		{admission.ErrExpiredToken, 0, 401, ""},
		{admission.ErrWrongTokenKind, 0, 401, ""},
		{admission.ErrTenantUnknown, 0, 401, ""},
		{admission.ErrTenantSuspended, 0, 403, ""},
		{admission.ErrTenantDeleted, 0, 410, ""},
		{admission.ErrRateLimited, 30, 429, "30"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondAdmissionError(w, &admission.StepError{Kind: tt.kind, Message: "boom", RetryAfter: tt.retryAfter})

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}

			body := decodeAPIError(t, w)
			if body.Kind != string(tt.kind) {
				t.Errorf("kind = %q, want %q", body.Kind, tt.kind)
			}
			if body.Detail != "boom" {
				t.Errorf("detail = %q, want %q", body.Detail, "boom")
			}
		})
	}
}

func TestRespondGatewayError_GatewayError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondGatewayError(w, &rpcgateway.GatewayError{Kind: rpcgateway.ErrModelForbidden, Message: "model not allowed"})

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
	body := decodeAPIError(t, w)
	if body.Kind != string(rpcgateway.ErrModelForbidden) {
		t.Errorf("kind = %q, want %q", body.Kind, rpcgateway.ErrModelForbidden)
	}
}

func TestRespondGatewayError_UpstreamError(t *testing.T) {
	tests := []struct {
		kind       upstreampool.Kind
		wantStatus int
	}{
		{upstreampool.KindTimeout, 504},
		{upstreampool.KindUnreachable, 502},
		{upstreampool.KindAuthFailed, 502},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondGatewayError(w, &upstreampool.Error{Kind: tt.kind, Err: errors.New("upstream down")})

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRespondGatewayError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondGatewayError(w, errors.New("something else"))

	if w.Code != 500 {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body := decodeAPIError(t, w)
	if body.Kind != "UpstreamError" {
		t.Errorf("kind = %q, want UpstreamError", body.Kind)
	}
}
