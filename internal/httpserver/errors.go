package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/geniustep/bridgecore/internal/admission"
	"github.com/geniustep/bridgecore/internal/rpcgateway"
	"github.com/geniustep/bridgecore/internal/upstreampool"
)

// apiError is the RPC/admission failure envelope (spec §6.3): every
// gateway and admission failure renders as {"detail", "kind"} rather than
// the generic {"error", "message"} shape used elsewhere in the server.
type apiError struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind"`
}

// RespondAdmissionError maps a *admission.StepError to its §7 status code
// and writes the standard envelope, setting Retry-After when present.
func RespondAdmissionError(w http.ResponseWriter, err *admission.StepError) {
	status := http.StatusInternalServerError
	switch err.Kind {
	case admission.ErrMissingToken, admission.ErrInvalidToken, admission.ErrExpiredToken, admission.ErrWrongTokenKind:
		status = http.StatusUnauthorized
	case admission.ErrTenantUnknown:
		status = http.StatusUnauthorized
	case admission.ErrTenantSuspended:
		status = http.StatusForbidden
	case admission.ErrTenantDeleted:
		status = http.StatusGone
	case admission.ErrRateLimited:
		status = http.StatusTooManyRequests
		if err.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(err.RetryAfter))
		}
	}
	respondAPIError(w, status, err.Message, string(err.Kind))
}

// RespondGatewayError maps a rpcgateway.Dispatch error — either a
// *rpcgateway.GatewayError or an *upstreampool.Error — to its §7 status
// code and writes the standard envelope.
func RespondGatewayError(w http.ResponseWriter, err error) {
	var gwErr *rpcgateway.GatewayError
	if errors.As(err, &gwErr) {
		respondAPIError(w, http.StatusBadRequest, gwErr.Message, string(gwErr.Kind))
		return
	}

	var upErr *upstreampool.Error
	if errors.As(err, &upErr) {
		status := http.StatusInternalServerError
		switch upErr.Kind {
		case upstreampool.KindTimeout:
			status = http.StatusGatewayTimeout
		case upstreampool.KindUnreachable, upstreampool.KindAuthFailed:
			status = http.StatusBadGateway
		}
		respondAPIError(w, status, upErr.Error(), string(upErr.Kind))
		return
	}

	respondAPIError(w, http.StatusInternalServerError, err.Error(), "UpstreamError")
}

func respondAPIError(w http.ResponseWriter, status int, detail, kind string) {
	Respond(w, status, apiError{Detail: detail, Kind: kind})
}
