package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/geniustep/bridgecore/internal/adminplane"
	"github.com/geniustep/bridgecore/internal/authn"
	"github.com/geniustep/bridgecore/internal/httpserver"
	"github.com/geniustep/bridgecore/internal/tenantregistry"
)

// AdminHandler implements the management-plane's tenant/plan/user
// mutation surface (spec §4.13-equivalent), authenticated against admin
// tokens rather than the tenant admission pipeline.
type AdminHandler struct {
	admin  *adminplane.Service
	tokens *authn.TokenManager
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(admin *adminplane.Service, tokens *authn.TokenManager) *AdminHandler {
	return &AdminHandler{admin: admin, tokens: tokens}
}

// RequireAdmin is the admin-token gate mounted in front of every route this
// handler serves.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.tokens.VerifyAdminToken(bearerFrom(r)); err != nil {
			httpserver.RespondError(w, http.StatusUnauthorized, "invalid_admin_token", err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createTenantRequest struct {
	Slug             string   `json:"slug"`
	Email            string   `json:"email"`
	PlanID           string   `json:"plan_id"`
	UpstreamBaseURL  string   `json:"upstream_base_url"`
	UpstreamDatabase string   `json:"upstream_database"`
	UpstreamUsername string   `json:"upstream_username"`
	UpstreamPassword string   `json:"upstream_password"`
	AllowedModels    []string `json:"allowed_models"`
	AllowedOps       []string `json:"allowed_operations"`
	AllowedFeatures  []string `json:"allowed_features"`
}

// HandleCreateTenant onboards a new tenant.
func (h *AdminHandler) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "plan_id must be a UUID")
		return
	}

	tenant, err := h.admin.CreateTenant(r.Context(), adminplane.CreateTenantParams{
		Slug:             req.Slug,
		Email:            req.Email,
		PlanID:           planID,
		UpstreamBaseURL:  req.UpstreamBaseURL,
		UpstreamDatabase: req.UpstreamDatabase,
		UpstreamUsername: req.UpstreamUsername,
		UpstreamPassword: req.UpstreamPassword,
		AllowedModels:    req.AllowedModels,
		AllowedOps:       req.AllowedOps,
		AllowedFeatures:  req.AllowedFeatures,
	})
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not create tenant")
		return
	}

	httpserver.Respond(w, http.StatusCreated, tenant)
}

type tenantStatusRequest struct {
	Status string `json:"status"`
}

// HandleSetTenantStatus transitions a tenant's lifecycle status.
func (h *AdminHandler) HandleSetTenantStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "id must be a UUID")
		return
	}

	var req tenantStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if err := h.admin.UpdateTenantStatus(r.Context(), tenantID, tenantregistry.Status(req.Status)); err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not update tenant status")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandleListPlans returns the available plans.
func (h *AdminHandler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.admin.ListPlans(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not list plans")
		return
	}
	httpserver.Respond(w, http.StatusOK, plans)
}
