package events

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotAdvancing is returned by Advance when the caller supplies a
// last-seen id that does not move the cursor forward (spec §4.9: cursors
// never move backward).
var ErrNotAdvancing = errors.New("events: cursor advance rejected: new id does not exceed current")

// Cursor tracks one (tenant, upstream user, device, app) sync position
// (spec §3's SyncCursor).
type Cursor struct {
	TenantID         uuid.UUID `json:"tenant_id"`
	UpstreamUserID   string    `json:"upstream_user_id"`
	DeviceID         string    `json:"device_id"`
	AppType          string    `json:"app_type"`
	LastSeenID       int64     `json:"last_seen_id"`
	LastSyncAt       time.Time `json:"last_sync_at"`
	CumulativeSyncs  int64     `json:"cumulative_syncs"`
	CumulativeEvents int64     `json:"cumulative_events"`
	Active           bool      `json:"active"`
}

// CursorStore persists SyncCursors with per-cursor serialization so two
// concurrent pulls for the same device can't race the advance.
type CursorStore struct {
	pool *pgxpool.Pool
}

// NewCursorStore builds a CursorStore.
func NewCursorStore(pool *pgxpool.Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

// lockID derives a stable advisory-lock key from the cursor's identity
// tuple. Grounded on pkg/escalation/engine.go's per-incident serialization,
// generalized from a single mutex to a Postgres advisory lock so it holds
// across process replicas.
func lockID(tenantID uuid.UUID, upstreamUserID, deviceID, appType string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tenantID.String()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(upstreamUserID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(deviceID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(appType))
	return int64(h.Sum64())
}

// GetOrCreate returns the cursor for the given identity tuple, creating one
// at last_seen_id=0 if it doesn't exist yet.
func (s *CursorStore) GetOrCreate(ctx context.Context, tenantID uuid.UUID, upstreamUserID, deviceID, appType string) (Cursor, error) {
	c, err := s.get(ctx, s.pool, tenantID, upstreamUserID, deviceID, appType)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Cursor{}, err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO sync_cursors
		(tenant_id, upstream_user_id, device_id, app_type, last_seen_id, active)
		VALUES ($1,$2,$3,$4,0,true)
		ON CONFLICT (tenant_id, upstream_user_id, device_id, app_type) DO NOTHING`,
		tenantID, upstreamUserID, deviceID, appType)
	if err != nil {
		return Cursor{}, fmt.Errorf("events: creating cursor: %w", err)
	}
	return s.get(ctx, s.pool, tenantID, upstreamUserID, deviceID, appType)
}

func (s *CursorStore) get(ctx context.Context, q queryer, tenantID uuid.UUID, upstreamUserID, deviceID, appType string) (Cursor, error) {
	c := Cursor{TenantID: tenantID, UpstreamUserID: upstreamUserID, DeviceID: deviceID, AppType: appType}
	err := q.QueryRow(ctx, `SELECT last_seen_id, last_sync_at, cumulative_syncs, cumulative_events, active
		FROM sync_cursors WHERE tenant_id = $1 AND upstream_user_id = $2 AND device_id = $3 AND app_type = $4`,
		tenantID, upstreamUserID, deviceID, appType,
	).Scan(&c.LastSeenID, &c.LastSyncAt, &c.CumulativeSyncs, &c.CumulativeEvents, &c.Active)
	if err != nil {
		return Cursor{}, err
	}
	return c, nil
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Advance moves the cursor's last_seen_id forward to newLastID and bumps
// the sync counters, serialized per cursor via a Postgres transaction-scoped
// advisory lock so concurrent pulls for the same device can't interleave.
// Rejects any newLastID that does not exceed the stored value.
func (s *CursorStore) Advance(ctx context.Context, tenantID uuid.UUID, upstreamUserID, deviceID, appType string, newLastID int64, eventsDelta int64, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("events: beginning advance tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockID(tenantID, upstreamUserID, deviceID, appType)); err != nil {
		return fmt.Errorf("events: acquiring cursor lock: %w", err)
	}

	var current int64
	err = tx.QueryRow(ctx, `SELECT last_seen_id FROM sync_cursors
		WHERE tenant_id = $1 AND upstream_user_id = $2 AND device_id = $3 AND app_type = $4 FOR UPDATE`,
		tenantID, upstreamUserID, deviceID, appType,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("events: reading cursor for advance: %w", err)
	}

	if newLastID <= current {
		return ErrNotAdvancing
	}

	_, err = tx.Exec(ctx, `UPDATE sync_cursors SET last_seen_id = $1, last_sync_at = $2,
		cumulative_syncs = cumulative_syncs + 1, cumulative_events = cumulative_events + $3
		WHERE tenant_id = $4 AND upstream_user_id = $5 AND device_id = $6 AND app_type = $7`,
		newLastID, now, eventsDelta, tenantID, upstreamUserID, deviceID, appType)
	if err != nil {
		return fmt.Errorf("events: updating cursor: %w", err)
	}

	return tx.Commit(ctx)
}

// Reset rewinds the cursor to last_seen_id=0, causing the next Pull to
// replay the tenant's full retained event history (spec §4.10's reset op).
func (s *CursorStore) Reset(ctx context.Context, tenantID uuid.UUID, upstreamUserID, deviceID, appType string) error {
	_, err := s.pool.Exec(ctx, `UPDATE sync_cursors SET last_seen_id = 0
		WHERE tenant_id = $1 AND upstream_user_id = $2 AND device_id = $3 AND app_type = $4`,
		tenantID, upstreamUserID, deviceID, appType)
	if err != nil {
		return fmt.Errorf("events: resetting cursor: %w", err)
	}
	return nil
}
