package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/geniustep/bridgecore/internal/admission"
	"github.com/geniustep/bridgecore/internal/events"
	"github.com/geniustep/bridgecore/internal/httpserver"
	"github.com/geniustep/bridgecore/internal/syncengine"
)

// SyncHandler implements /api/v2/sync/* (spec §4.10).
type SyncHandler struct {
	engine *syncengine.Engine
}

// NewSyncHandler builds a SyncHandler.
func NewSyncHandler(engine *syncengine.Engine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

type pullRequest struct {
	UpstreamUserID string   `json:"upstream_user_id"`
	DeviceID       string   `json:"device_id"`
	AppType        string   `json:"app_type"`
	Limit          int      `json:"limit,omitempty"`
	ModelFilter    []string `json:"model_filter,omitempty"`
}

type pullResponse struct {
	Events   []events.Event `json:"events"`
	CursorID int64          `json:"next_last_id"`
	HasMore  bool           `json:"has_more"`
	SyncedAt time.Time      `json:"synced_at"`
}

// HandlePull runs the sync engine's Pull algorithm for the caller's device.
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	rc, ok := admission.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "missing_token", "no admitted request context")
		return
	}

	var req pullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	result, err := h.engine.Pull(r.Context(), syncengine.PullRequest{
		TenantID:       rc.Tenant.ID,
		UpstreamUserID: req.UpstreamUserID,
		DeviceID:       req.DeviceID,
		AppType:        req.AppType,
		Limit:          req.Limit,
		ModelFilter:    req.ModelFilter,
	}, timeNow())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not run sync pull")
		return
	}

	httpserver.Respond(w, http.StatusOK, pullResponse{
		Events:   result.Events,
		CursorID: result.CursorID,
		HasMore:  result.HasMore,
		SyncedAt: result.SyncedAt,
	})
}

// HandleState returns the caller's current cursor snapshot.
func (h *SyncHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	rc, ok := admission.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "missing_token", "no admitted request context")
		return
	}

	upstreamUserID := r.URL.Query().Get("upstream_user_id")
	deviceID := r.URL.Query().Get("device_id")
	appType := r.URL.Query().Get("app_type")

	cursor, err := h.engine.State(r.Context(), rc.Tenant.ID, upstreamUserID, deviceID, appType)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not read cursor state")
		return
	}

	httpserver.Respond(w, http.StatusOK, cursor)
}

type resetRequest struct {
	UpstreamUserID string `json:"upstream_user_id"`
	DeviceID       string `json:"device_id"`
	AppType        string `json:"app_type"`
}

// HandleReset rewinds the caller's cursor to replay the full retained
// event history.
func (h *SyncHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	rc, ok := admission.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "missing_token", "no admitted request context")
		return
	}

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if err := h.engine.Reset(r.Context(), rc.Tenant.ID, req.UpstreamUserID, req.DeviceID, req.AppType); err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not reset cursor")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "reset"})
}

func timeNow() time.Time { return time.Now() }
