package ledger

import (
	"testing"

	"github.com/google/uuid"
)

func TestEnqueueDropsOldestOnOverflow(t *testing.T) {
	w := &Writer{queue: make(chan record, 2)}

	w.LogUsage(UsageRecord{TenantID: uuid.New(), Endpoint: "first"})
	w.LogUsage(UsageRecord{TenantID: uuid.New(), Endpoint: "second"})
	w.LogUsage(UsageRecord{TenantID: uuid.New(), Endpoint: "third"})

	if w.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", w.Dropped())
	}

	first := <-w.queue
	if first.usage.Endpoint != "second" {
		t.Fatalf("expected the oldest record to have been dropped, got %q at head", first.usage.Endpoint)
	}
}

func TestQueueDepthReflectsPendingRecords(t *testing.T) {
	w := &Writer{queue: make(chan record, 4)}
	w.LogUsage(UsageRecord{TenantID: uuid.New()})
	w.LogError(ErrorRecord{TenantID: uuid.New()})

	if got := w.QueueDepth(); got != 2 {
		t.Fatalf("QueueDepth() = %d, want 2", got)
	}
}
