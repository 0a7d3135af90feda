package upstreampool

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIsSessionExpired(t *testing.T) {
	if isSessionExpired(errors.New("plain error")) {
		t.Error("a plain error should not be treated as session-expired")
	}
	if !isSessionExpired(&Error{Kind: KindAuthFailed, Err: errors.New("session_expired")}) {
		t.Error("expected session_expired auth failure to be recognized")
	}
	if isSessionExpired(&Error{Kind: KindTimeout, Err: errors.New("session_expired")}) {
		t.Error("a timeout should never be treated as session-expired")
	}
}

func TestIsSessionExpiredName(t *testing.T) {
	if !isSessionExpiredName("odoo.http.SessionExpiredException") {
		t.Error("expected Odoo's exception name to be recognized")
	}
	if !isSessionExpiredName("session_expired") {
		t.Error("expected the bare session_expired name to be recognized")
	}
	if isSessionExpiredName("some.other.Exception") {
		t.Error("unrelated exception names should not match")
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	e := &Error{Kind: KindUnreachable, Err: inner}
	if errors.Unwrap(e) != inner {
		t.Error("Unwrap should return the wrapped error")
	}
}

func TestSweepEvictsOnlyIdleHandles(t *testing.T) {
	p := New(time.Second, time.Minute)

	fresh := uuid.New()
	stale := uuid.New()
	now := time.Now()

	p.handles[fresh] = &handle{lastUsed: now}
	p.handles[stale] = &handle{lastUsed: now.Add(-2 * time.Minute)}

	evicted := p.Sweep(now)

	if evicted != 1 {
		t.Fatalf("Sweep evicted = %d, want 1", evicted)
	}
	if _, ok := p.handles[stale]; ok {
		t.Error("stale handle should have been evicted")
	}
	if _, ok := p.handles[fresh]; !ok {
		t.Error("fresh handle should not have been evicted")
	}
}

func TestTenantLockReturnsSameMutexForSameTenant(t *testing.T) {
	p := New(time.Second, time.Minute)
	id := uuid.New()

	a := p.tenantLock(id)
	b := p.tenantLock(id)

	if a != b {
		t.Error("tenantLock should return the same mutex instance for a repeated tenant id")
	}
}
