package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/geniustep/bridgecore/internal/admission"
	"github.com/geniustep/bridgecore/internal/events"
	"github.com/geniustep/bridgecore/internal/httpserver"
)

// WebhookHandler implements /api/v1/webhooks/* (spec §4.9 push variant).
type WebhookHandler struct {
	store *events.Store
}

// NewWebhookHandler builds a WebhookHandler.
func NewWebhookHandler(store *events.Store) *WebhookHandler {
	return &WebhookHandler{store: store}
}

type pushEvent struct {
	ID              int64           `json:"id"`
	Model           string          `json:"model"`
	RecordID        int64           `json:"record_id"`
	ChangeKind      string          `json:"change_kind"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
	Payload         json.RawMessage `json:"payload"`
	Priority        *string         `json:"priority,omitempty"`
}

type pushRequest struct {
	Events []pushEvent `json:"events"`
}

type pushResult struct {
	Accepted  int `json:"accepted"`
	Duplicate int `json:"duplicate"`
}

// HandlePush ingests a batch of upstream-pushed events, idempotently
// deduplicating on (tenant_id, upstream_event_id).
func (h *WebhookHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	rc, ok := admission.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "missing_token", "no admitted request context")
		return
	}

	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	result := pushResult{}
	for _, pe := range req.Events {
		inserted, err := h.store.Insert(r.Context(), events.Event{
			TenantID:        rc.Tenant.ID,
			ID:              pe.ID,
			Model:           pe.Model,
			RecordID:        pe.RecordID,
			ChangeKind:      events.ChangeKind(pe.ChangeKind),
			ServerTimestamp: pe.ServerTimestamp,
			Payload:         pe.Payload,
			Priority:        pe.Priority,
		})
		if err != nil {
			httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not persist event")
			return
		}
		if inserted {
			result.Accepted++
		} else {
			result.Duplicate++
		}
	}

	httpserver.Respond(w, http.StatusOK, result)
}

type checkUpdatesResponse struct {
	MaxEventID int64 `json:"max_event_id"`
}

// HandleCheckUpdates answers "is there anything new?" with the tenant's
// current max stored event id, cheap enough for frequent polling.
func (h *WebhookHandler) HandleCheckUpdates(w http.ResponseWriter, r *http.Request) {
	rc, ok := admission.FromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "missing_token", "no admitted request context")
		return
	}

	maxID, err := h.store.MaxID(r.Context(), rc.Tenant.ID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "could not read event high-water mark")
		return
	}

	httpserver.Respond(w, http.StatusOK, checkUpdatesResponse{MaxEventID: maxID})
}
