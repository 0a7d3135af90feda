package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geniustep/bridgecore/internal/events"
	"github.com/geniustep/bridgecore/internal/ledger"
	"github.com/geniustep/bridgecore/internal/telemetry"
	"github.com/geniustep/bridgecore/internal/tenantregistry"
	"github.com/geniustep/bridgecore/internal/upstreampool"
)

// cursorGrace is how far past a tenant's minimum cursor position events
// are still retained, so a client that resets its cursor to replay recent
// history doesn't immediately find its events trimmed (spec §4.11).
const cursorGrace = 1000

// NewHourlyAggregationJob rolls usage_records up into usage_hourly_agg for
// the last completed clock hour. The scheduler's ticker fires it once per
// hour counted from worker start; the tick is not aligned to a fixed
// minute of the hour. The job computes the window itself so a missed or
// delayed tick still aggregates the correct prior hour.
func NewHourlyAggregationJob(pool *pgxpool.Pool) Job {
	return Job{
		Name:     "usage_hourly_aggregation",
		Interval: time.Hour,
		Run: func(ctx context.Context, now time.Time) error {
			windowEnd := now.Truncate(time.Hour)
			windowStart := windowEnd.Add(-time.Hour)
			return aggregateUsageWindow(ctx, pool, "usage_hourly_agg", windowStart, windowEnd)
		},
	}
}

// NewDailyAggregationJob rolls the completed day's usage into
// usage_daily_agg, additionally recording the peak hour by request volume.
// It runs every 24 hours counted from worker start, not at a fixed time of
// day.
func NewDailyAggregationJob(pool *pgxpool.Pool) Job {
	return Job{
		Name:     "usage_daily_aggregation",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context, now time.Time) error {
			dayEnd := now.Truncate(24 * time.Hour)
			dayStart := dayEnd.Add(-24 * time.Hour)

			if err := aggregateUsageWindow(ctx, pool, "usage_daily_agg", dayStart, dayEnd); err != nil {
				return err
			}
			return recordPeakHour(ctx, pool, dayStart, dayEnd)
		},
	}
}

// NewRetentionSweepJob deletes UsageRecords older than retentionDays and
// trims events below each tenant's minimum cursor position minus
// cursorGrace. It runs every 24 hours counted from worker start, not at a
// fixed time of day. Idempotent: re-running it
// against an already-swept window deletes zero additional rows.
func NewRetentionSweepJob(pool *pgxpool.Pool, store *events.Store, retentionDays int) Job {
	return Job{
		Name:     "retention_sweep",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context, now time.Time) error {
			cutoff := now.AddDate(0, 0, -retentionDays)
			if _, err := pool.Exec(ctx, `DELETE FROM usage_records WHERE created_at < $1`, cutoff); err != nil {
				return fmt.Errorf("scheduler: sweeping usage records: %w", err)
			}
			if _, err := pool.Exec(ctx, `DELETE FROM error_records WHERE created_at < $1`, cutoff); err != nil {
				return fmt.Errorf("scheduler: sweeping error records: %w", err)
			}
			return sweepEventsPerTenant(ctx, pool, store)
		},
	}
}

func aggregateUsageWindow(ctx context.Context, pool *pgxpool.Pool, table string, start, end time.Time) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s
		(tenant_id, window_start, window_end, request_count, error_count, avg_latency_ms)
		SELECT tenant_id, $1, $2, COUNT(*),
			COUNT(*) FILTER (WHERE status_code >= 400),
			COALESCE(AVG(latency_ms), 0)
		FROM usage_records
		WHERE ts >= $1 AND ts < $2
		GROUP BY tenant_id
		ON CONFLICT (tenant_id, window_start) DO UPDATE SET
			request_count = EXCLUDED.request_count,
			error_count = EXCLUDED.error_count,
			avg_latency_ms = EXCLUDED.avg_latency_ms`, table), start, end)
	if err != nil {
		return fmt.Errorf("scheduler: aggregating %s: %w", table, err)
	}
	return nil
}

func recordPeakHour(ctx context.Context, pool *pgxpool.Pool, dayStart, dayEnd time.Time) error {
	_, err := pool.Exec(ctx, `UPDATE usage_daily_agg d SET peak_hour = sub.hour
		FROM (
			SELECT DISTINCT ON (tenant_id) tenant_id, EXTRACT(HOUR FROM window_start)::int AS hour
			FROM usage_hourly_agg
			WHERE window_start >= $1 AND window_start < $2
			ORDER BY tenant_id, request_count DESC
		) sub
		WHERE d.tenant_id = sub.tenant_id AND d.window_start = $1`, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("scheduler: recording peak hour: %w", err)
	}
	return nil
}

func sweepEventsPerTenant(ctx context.Context, pool *pgxpool.Pool, store *events.Store) error {
	rows, err := pool.Query(ctx, `SELECT id FROM tenants WHERE status != 'deleted'`)
	if err != nil {
		return fmt.Errorf("scheduler: listing tenants for event sweep: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scheduler: scanning tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, tenantID := range ids {
		minCursor, err := store.MinCursorLastSeen(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("scheduler: reading min cursor for %s: %w", tenantID, err)
		}
		floor := minCursor - cursorGrace
		if floor <= 0 {
			continue
		}
		if _, err := store.TrimBelow(ctx, tenantID, floor); err != nil {
			return fmt.Errorf("scheduler: trimming events for %s: %w", tenantID, err)
		}
	}
	return nil
}

// NewEventPollJob asks each active tenant's upstream for events newer
// than the highest id already stored for it (spec §4.9's pull-from-
// upstream path), idempotently inserting whatever comes back. A single
// tenant's upstream failing does not stop the others from being polled.
func NewEventPollJob(registry *tenantregistry.Registry, pool *upstreampool.Pool, store *events.Store, pollInterval time.Duration, batchSize int) Job {
	return Job{
		Name:     "event_poll",
		Interval: pollInterval,
		Run: func(ctx context.Context, now time.Time) error {
			tenants, err := registry.ActiveTenants(ctx)
			if err != nil {
				return fmt.Errorf("scheduler: listing tenants for event poll: %w", err)
			}

			var lastErr error
			for _, t := range tenants {
				baseURL, database, username, password, _, err := registry.UpstreamConfig(t)
				if err != nil {
					lastErr = fmt.Errorf("scheduler: resolving upstream config for %s: %w", t.ID, err)
					continue
				}
				cfg := upstreampool.Config{BaseURL: baseURL, Database: database, Username: username, Password: password}
				if _, err := store.PollTenant(ctx, pool, t, cfg, batchSize); err != nil {
					lastErr = fmt.Errorf("scheduler: polling tenant %s: %w", t.ID, err)
				}
			}
			return lastErr
		},
	}
}

// NewMetricsSampleJob periodically sets the point-in-time gauges that
// have no natural call site to increment on: ledger queue depth and
// each tenant's cursor lag (spec §4.12).
func NewMetricsSampleJob(ledgerWriter *ledger.Writer, store *events.Store, registry *tenantregistry.Registry) Job {
	return Job{
		Name:     "metrics_sample",
		Interval: 15 * time.Second,
		Run: func(ctx context.Context, now time.Time) error {
			telemetry.QueueDepth.WithLabelValues("usage").Set(float64(ledgerWriter.QueueDepth()))

			tenants, err := registry.ActiveTenants(ctx)
			if err != nil {
				return fmt.Errorf("scheduler: listing tenants for metrics sample: %w", err)
			}

			for _, t := range tenants {
				maxID, err := store.MaxID(ctx, t.ID)
				if err != nil {
					return fmt.Errorf("scheduler: reading max id for %s: %w", t.ID, err)
				}
				minCursor, err := store.MinCursorLastSeen(ctx, t.ID)
				if err != nil {
					return fmt.Errorf("scheduler: reading min cursor for %s: %w", t.ID, err)
				}
				lag := maxID - minCursor
				if lag < 0 {
					lag = 0
				}
				telemetry.CursorLag.WithLabelValues(t.ID.String()).Set(float64(lag))
			}
			return nil
		},
	}
}
