package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geniustep/bridgecore/internal/admission"
	"github.com/geniustep/bridgecore/internal/httpserver"
	"github.com/geniustep/bridgecore/internal/rpcgateway"
	"github.com/geniustep/bridgecore/internal/tenantregistry"
	"github.com/geniustep/bridgecore/internal/upstreampool"
)

// OdooHandler implements /api/v1/odoo/{op}, the RPC Gateway's HTTP face.
type OdooHandler struct {
	gateway *rpcgateway.Gateway
	reg     *tenantregistry.Registry
}

// NewOdooHandler builds an OdooHandler.
func NewOdooHandler(gateway *rpcgateway.Gateway, reg *tenantregistry.Registry) *OdooHandler {
	return &OdooHandler{gateway: gateway, reg: reg}
}

// HandleDispatch decodes the request body as an rpcgateway.Payload, resolves
// the tenant's upstream credentials, and dispatches through the gateway.
func (h *OdooHandler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	rc, ok := admission.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "missing_token", "no admitted request context")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "could not read request body")
		return
	}

	baseURL, database, username, password, version, err := h.reg.UpstreamConfig(rc.Tenant)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not resolve upstream credentials")
		return
	}

	op := rpcgateway.Operation(chi.URLParam(r, "op"))
	resp, dispatchErr := h.gateway.Dispatch(r.Context(), rpcgateway.DispatchParams{
		Tenant: rc.Tenant,
		UpstreamCfg: upstreampool.Config{
			BaseURL:  baseURL,
			Database: database,
			Username: username,
			Password: password,
		},
		UserID:    rc.UserID,
		RequestID: rc.RequestID,
		Endpoint:  r.URL.Path,
		ClientIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}, op, body)

	_ = version // carried through tenant registry for future version-specific dispatch; unused at the wire level today

	if dispatchErr != nil {
		httpserver.RespondGatewayError(w, dispatchErr)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}
