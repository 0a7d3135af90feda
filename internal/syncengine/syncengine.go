// Package syncengine implements the Sync Engine (spec §4.10): the single
// Pull algorithm mobile/offline-first clients use to catch up on events
// since their last acknowledged cursor position. Grounded on
// pkg/escalation/engine.go's bounded-scan-then-advance shape.
package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/geniustep/bridgecore/internal/events"
	"github.com/geniustep/bridgecore/internal/rpcgateway"
)

// DefaultLimit and MaxLimit bound an unqualified or over-large pull
// request (spec §6.4's sync.default_limit / sync.max_limit).
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// PullRequest identifies the caller and what slice of events they want.
type PullRequest struct {
	TenantID       uuid.UUID
	UpstreamUserID string
	DeviceID       string
	AppType        string
	Limit          int
	ModelFilter    []string
}

// PullResult is the sync envelope returned to the client (spec §6.3/§6.1
// "/api/v2/sync/pull").
type PullResult struct {
	Events   []events.Event
	CursorID int64
	HasMore  bool
	SyncedAt time.Time
}

// Engine wires the event store and cursor store behind Pull/State/Reset.
type Engine struct {
	store   *events.Store
	cursors *events.CursorStore
}

// New builds a sync Engine.
func New(store *events.Store, cursors *events.CursorStore) *Engine {
	return &Engine{store: store, cursors: cursors}
}

// Pull resolves (or creates) the caller's cursor, scans events strictly
// after it, restricts to the app's model profile unioned with any
// caller-supplied ModelFilter, and atomically advances the cursor to the
// maximum event id actually returned (spec §4.10 steps 1-5). An empty
// result set leaves the cursor untouched.
func (e *Engine) Pull(ctx context.Context, req PullRequest, now time.Time) (PullResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	cursor, err := e.cursors.GetOrCreate(ctx, req.TenantID, req.UpstreamUserID, req.DeviceID, req.AppType)
	if err != nil {
		return PullResult{}, fmt.Errorf("syncengine: resolving cursor: %w", err)
	}

	models := mergeModelFilter(rpcgateway.ResolveAppProfile(req.AppType), req.ModelFilter)

	// Fetch one extra row to detect whether more events remain beyond this
	// page without a second round trip.
	page, err := e.store.ListSince(ctx, req.TenantID, cursor.LastSeenID, limit+1, models)
	if err != nil {
		return PullResult{}, fmt.Errorf("syncengine: listing events: %w", err)
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}

	if len(page) == 0 {
		return PullResult{Events: page, CursorID: cursor.LastSeenID, HasMore: false, SyncedAt: now}, nil
	}

	maxID := page[len(page)-1].ID
	if err := e.cursors.Advance(ctx, req.TenantID, req.UpstreamUserID, req.DeviceID, req.AppType, maxID, int64(len(page)), now); err != nil {
		return PullResult{}, fmt.Errorf("syncengine: advancing cursor: %w", err)
	}

	return PullResult{Events: page, CursorID: maxID, HasMore: hasMore, SyncedAt: now}, nil
}

// State returns the caller's current cursor snapshot without consuming any
// events (spec §6.1 "/api/v2/sync/state").
func (e *Engine) State(ctx context.Context, tenantID uuid.UUID, upstreamUserID, deviceID, appType string) (events.Cursor, error) {
	return e.cursors.GetOrCreate(ctx, tenantID, upstreamUserID, deviceID, appType)
}

// Reset rewinds the caller's cursor to replay the full retained history
// (spec §6.1 "/api/v2/sync/reset").
func (e *Engine) Reset(ctx context.Context, tenantID uuid.UUID, upstreamUserID, deviceID, appType string) error {
	return e.cursors.Reset(ctx, tenantID, upstreamUserID, deviceID, appType)
}

// mergeModelFilter unions an app's model profile with an optional
// caller-supplied filter (spec §4.10 step 3: "union of (explicit
// model_filter) and (the app-type's model profile)"). An empty profile
// means "all models" (manager_app, mobile_app), which stays "all" no
// matter what the caller additionally asks for; an empty caller filter
// contributes nothing beyond the profile itself.
func mergeModelFilter(profile map[string]bool, callerFilter []string) []string {
	if len(profile) == 0 {
		return nil
	}
	if len(callerFilter) == 0 {
		out := make([]string, 0, len(profile))
		for m := range profile {
			out = append(out, m)
		}
		return out
	}

	set := make(map[string]bool, len(profile)+len(callerFilter))
	for m := range profile {
		set[m] = true
	}
	for _, m := range callerFilter {
		set[m] = true
	}

	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out
}
