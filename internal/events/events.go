// Package events implements the Event Ingestor (spec §4.9): storage for
// upstream-emitted change events, reachable via both a pull-from-upstream
// poller and a push-from-upstream webhook handler, with idempotent
// deduplication on (tenant_id, upstream_event_id).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geniustep/bridgecore/internal/telemetry"
)

// ChangeKind is the kind of mutation an Event records.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeWrite  ChangeKind = "write"
	ChangeUnlink ChangeKind = "unlink"
)

// Event is one upstream change notification (spec §3). ID is the
// upstream's own monotonic id within the tenant — the sole ordering
// authority (spec §9(a)).
type Event struct {
	TenantID        uuid.UUID       `json:"tenant_id"`
	ID              int64           `json:"id"`
	Model           string          `json:"model"`
	RecordID        int64           `json:"record_id"`
	ChangeKind      ChangeKind      `json:"change_kind"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
	Payload         json.RawMessage `json:"payload"`
	Priority        *string         `json:"priority,omitempty"`
}

// Store persists events and answers range queries for the Sync Engine.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an event Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert idempotently appends an event. Returns inserted=false when the
// (tenant_id, id) pair already exists — spec §8's "event id duplicate on
// ingest: silently deduplicated" boundary behavior.
func (s *Store) Insert(ctx context.Context, e Event) (inserted bool, err error) {
	tag, err := s.pool.Exec(ctx, `INSERT INTO events
		(tenant_id, upstream_event_id, model, record_id, change_kind, server_ts, payload, priority)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (tenant_id, upstream_event_id) DO NOTHING`,
		e.TenantID, e.ID, e.Model, e.RecordID, e.ChangeKind, e.ServerTimestamp, e.Payload, e.Priority,
	)
	if err != nil {
		return false, fmt.Errorf("events: inserting event: %w", err)
	}
	inserted = tag.RowsAffected() == 1
	if inserted {
		telemetry.EventsIngestedTotal.WithLabelValues(e.TenantID.String()).Inc()
	}
	return inserted, nil
}

// MaxID returns the highest stored event id for tenantID, used by the
// pull-from-upstream poller to ask for "events with id greater than the
// maximum id it has stored" (spec §4.9). Returns 0 if none stored yet.
func (s *Store) MaxID(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var max int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(upstream_event_id), 0) FROM events WHERE tenant_id = $1`, tenantID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("events: reading max id: %w", err)
	}
	return max, nil
}

// ListSince returns events for tenantID with id > sinceID, ordered
// ascending, capped at limit. Optional models restricts to that set
// (nil/empty means all models).
func (s *Store) ListSince(ctx context.Context, tenantID uuid.UUID, sinceID int64, limit int, models []string) ([]Event, error) {
	var rows rowsScanner
	var err error

	if len(models) > 0 {
		rows, err = s.pool.Query(ctx, `SELECT tenant_id, upstream_event_id, model, record_id, change_kind, server_ts, payload, priority
			FROM events WHERE tenant_id = $1 AND upstream_event_id > $2 AND model = ANY($3)
			ORDER BY upstream_event_id ASC LIMIT $4`, tenantID, sinceID, models, limit)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT tenant_id, upstream_event_id, model, record_id, change_kind, server_ts, payload, priority
			FROM events WHERE tenant_id = $1 AND upstream_event_id > $2
			ORDER BY upstream_event_id ASC LIMIT $3`, tenantID, sinceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("events: listing since %d: %w", sinceID, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var changeKind string
		if err := rows.Scan(&e.TenantID, &e.ID, &e.Model, &e.RecordID, &changeKind, &e.ServerTimestamp, &e.Payload, &e.Priority); err != nil {
			return nil, fmt.Errorf("events: scanning row: %w", err)
		}
		e.ChangeKind = ChangeKind(changeKind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// rowsScanner is the subset of pgx.Rows this package depends on, so
// ListSince's two query shapes can share one scan loop.
type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// TrimBelow deletes events for tenantID with id <= floor. Called by the
// Scheduler's retention sweep once the tenant's minimum cursor has moved
// past floor plus a grace window (spec §4.9, §4.11).
func (s *Store) TrimBelow(ctx context.Context, tenantID uuid.UUID, floor int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE tenant_id = $1 AND upstream_event_id <= $2`, tenantID, floor)
	if err != nil {
		return 0, fmt.Errorf("events: trimming below %d: %w", floor, err)
	}
	return tag.RowsAffected(), nil
}

// MinCursorLastSeen returns the minimum last_seen_id across all active
// cursors for tenantID, the retention floor events must not be trimmed
// past (spec §3's "retained while any cursor might still reference them").
func (s *Store) MinCursorLastSeen(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var min int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MIN(last_seen_id), 0) FROM sync_cursors WHERE tenant_id = $1 AND active`, tenantID).Scan(&min)
	if err != nil {
		return 0, fmt.Errorf("events: reading min cursor: %w", err)
	}
	return min, nil
}
