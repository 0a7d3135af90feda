// Package ledger implements the Usage/Error Ledger (spec §4.8): a
// non-blocking, bounded, drop-oldest queue drained by a fixed pool of
// writers that flush buffered batches into Postgres one row at a time.
// Grounded on the teacher's
// internal/audit.Writer (bounded channel, batched flush, drop-on-full), but
// the queue is drop-oldest rather than drop-newest per spec §4.8's explicit
// backpressure policy.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRecord is one append-only usage row (spec §3).
type UsageRecord struct {
	TenantID      uuid.UUID
	UserID        uuid.UUID
	Timestamp     time.Time
	Endpoint      string
	Method        string
	Model         string
	RequestBytes  int
	ResponseBytes int
	LatencyMS     int64
	StatusCode    int
	ClientIP      string
	UserAgent     string
}

// Severity is the ErrorRecord severity (spec §3).
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorRecord is one append-only error row (spec §3). Rate-limited
// responses are never recorded here per spec §7's severity table — they
// are expected back-pressure, tracked only by metrics.
type ErrorRecord struct {
	TenantID     uuid.UUID
	UserID       uuid.UUID
	Timestamp    time.Time
	ErrorKind    string
	Message      string
	StackDigest  string
	Endpoint     string
	RequestID    uuid.UUID
	Severity     Severity
}

const (
	queueDepthDefault = 16384
	workerCount       = 4
	flushInterval     = 2 * time.Second
	flushBatch        = 64
)

type record struct {
	usage *UsageRecord
	error *ErrorRecord
}

// Writer is the async ledger writer.
type Writer struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	queue chan record
	wg    sync.WaitGroup

	mu      sync.Mutex
	dropped int64
}

// New creates a Writer with the given bounded queue depth
// (usage.queue_depth, §6.4; defaults to 16384 if depth <= 0).
func New(pool *pgxpool.Pool, logger *slog.Logger, depth int) *Writer {
	if depth <= 0 {
		depth = queueDepthDefault
	}
	return &Writer{
		pool:   pool,
		logger: logger,
		queue:  make(chan record, depth),
	}
}

// Start launches the worker pool and returns at once. The workers drain
// their in-flight batches and exit when ctx is cancelled; Close waits for
// them.
func (w *Writer) Start(ctx context.Context) {
	for i := 0; i < workerCount; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.run(ctx)
		}()
	}
}

// Close waits for all workers to finish after the context passed to Start
// is cancelled.
func (w *Writer) Close() {
	w.wg.Wait()
}

// LogUsage enqueues a UsageRecord, never blocking the request path. On
// queue overflow the oldest pending record is dropped (not this one) and
// dropped_records is incremented, per spec §4.8's explicit policy.
func (w *Writer) LogUsage(u UsageRecord) {
	w.enqueue(record{usage: &u})
}

// LogError enqueues an ErrorRecord under the same drop-oldest policy.
func (w *Writer) LogError(e ErrorRecord) {
	w.enqueue(record{error: &e})
}

func (w *Writer) enqueue(r record) {
	select {
	case w.queue <- r:
		return
	default:
	}

	// Queue full: drop the oldest pending record to make room, per spec's
	// drop-oldest backpressure policy (not drop-newest).
	select {
	case <-w.queue:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
	default:
	}

	select {
	case w.queue <- r:
	default:
		// Another producer won the race for the freed slot; count this one
		// as dropped too rather than blocking the request path.
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
	}
}

// Dropped returns the cumulative count of records dropped for queue
// overflow. The count is kept in process only; it is not exported as a
// metric.
func (w *Writer) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// QueueDepth returns the current number of queued, unflushed records, for
// the queue_depth{queue="usage"} gauge (spec §4.12).
func (w *Writer) QueueDepth() int {
	return len(w.queue)
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	usageBatch := make([]UsageRecord, 0, flushBatch)
	errorBatch := make([]ErrorRecord, 0, flushBatch)

	flush := func() {
		if len(usageBatch) > 0 {
			w.flushUsage(usageBatch)
			usageBatch = usageBatch[:0]
		}
		if len(errorBatch) > 0 {
			w.flushErrors(errorBatch)
			errorBatch = errorBatch[:0]
		}
	}

	for {
		select {
		case r := <-w.queue:
			if r.usage != nil {
				usageBatch = append(usageBatch, *r.usage)
			}
			if r.error != nil {
				errorBatch = append(errorBatch, *r.error)
			}
			if len(usageBatch) >= flushBatch || len(errorBatch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case r := <-w.queue:
					if r.usage != nil {
						usageBatch = append(usageBatch, *r.usage)
					}
					if r.error != nil {
						errorBatch = append(errorBatch, *r.error)
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// flushUsage inserts a batch of usage records one row at a time. Every
// flush with failed inserts logs one error line with the failure count;
// these logs are not limited to once per minute. The request path never
// observes the failures, since this runs entirely off the request goroutine.
func (w *Writer) flushUsage(batch []UsageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := 0
	for _, u := range batch {
		_, err := w.pool.Exec(ctx, `INSERT INTO usage_records
			(tenant_id, user_id, ts, endpoint, method, model, request_bytes, response_bytes, latency_ms, status_code, client_ip, user_agent)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			u.TenantID, u.UserID, u.Timestamp, u.Endpoint, u.Method, u.Model,
			u.RequestBytes, u.ResponseBytes, u.LatencyMS, u.StatusCode, u.ClientIP, u.UserAgent,
		)
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		w.logger.Error("ledger: usage flush had failures", "failed", failed, "batch", len(batch))
	}
}

func (w *Writer) flushErrors(batch []ErrorRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := 0
	for _, e := range batch {
		_, err := w.pool.Exec(ctx, `INSERT INTO error_records
			(tenant_id, user_id, ts, error_kind, message, stack_digest, endpoint, request_id, severity)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			e.TenantID, e.UserID, e.Timestamp, e.ErrorKind, e.Message, e.StackDigest, e.Endpoint, e.RequestID, e.Severity,
		)
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		w.logger.Error("ledger: error flush had failures", "failed", failed, "batch", len(batch))
	}
}
