package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/geniustep/bridgecore/internal/tenantregistry"
	"github.com/geniustep/bridgecore/internal/upstreampool"
)

// UpstreamEventModel is the model the pull-from-upstream poller reads,
// expected to expose a search_read-able (id, model, record_id,
// change_kind, server_timestamp, payload, priority) row shape (spec
// §4.9's pull variant).
const UpstreamEventModel = "bridgecore.sync.event"

type upstreamEventRow struct {
	ID              int64           `json:"id"`
	Model           string          `json:"model"`
	RecordID        int64           `json:"record_id"`
	ChangeKind      string          `json:"change_kind"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
	Payload         json.RawMessage `json:"payload"`
	Priority        *string         `json:"priority,omitempty"`
}

// PollTenant asks tenant's upstream for events with id greater than the
// highest id already stored for it, up to batchSize, and idempotently
// inserts whatever comes back. Returns the count of newly inserted
// (non-duplicate) events.
func (s *Store) PollTenant(ctx context.Context, pool *upstreampool.Pool, tenant tenantregistry.Tenant, cfg upstreampool.Config, batchSize int) (int, error) {
	maxID, err := s.MaxID(ctx, tenant.ID)
	if err != nil {
		return 0, err
	}

	domain := []any{[]any{"id", ">", maxID}}
	kwargs := map[string]any{"order": "id asc", "limit": batchSize}

	raw, err := pool.Call(ctx, tenant.ID, cfg, UpstreamEventModel, "search_read", []any{domain}, kwargs)
	if err != nil {
		return 0, fmt.Errorf("events: polling tenant %s: %w", tenant.ID, err)
	}

	var rows []upstreamEventRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("events: decoding poll response for tenant %s: %w", tenant.ID, err)
	}

	inserted := 0
	for _, row := range rows {
		ok, err := s.Insert(ctx, Event{
			TenantID:        tenant.ID,
			ID:              row.ID,
			Model:           row.Model,
			RecordID:        row.RecordID,
			ChangeKind:      ChangeKind(row.ChangeKind),
			ServerTimestamp: row.ServerTimestamp,
			Payload:         row.Payload,
			Priority:        row.Priority,
		})
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}
