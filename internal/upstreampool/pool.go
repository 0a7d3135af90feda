// Package upstreampool maintains one logical authenticated session handle
// per tenant against its upstream JSON-RPC ERP instance, reauthenticating
// on expiry and serializing the authenticate step per tenant to avoid a
// thundering-herd reauth (spec §4.3). Every pack repo that calls out over
// HTTP does so with stdlib net/http directly (no third-party HTTP client
// appears anywhere in the retrieval pack), so this package does the same.
package upstreampool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the upstream failure modes the pool maps onto spec §7's
// error table.
type Kind string

const (
	KindTimeout     Kind = "UpstreamTimeout"
	KindUnreachable Kind = "UpstreamUnreachable"
	KindError       Kind = "UpstreamError"
	KindAuthFailed  Kind = "UpstreamAuthFailed"
)

// Error wraps an upstream failure with its classified Kind and, where
// available, the raw upstream HTTP status.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config identifies how to reach and authenticate against one tenant's
// upstream, as resolved from tenantregistry.Registry.UpstreamConfig.
type Config struct {
	BaseURL  string
	Database string
	Username string
	Password string
}

// handle is an ephemeral, in-memory-only session handle (spec §3: "Not
// persisted; reconstructed on demand").
type handle struct {
	sessionID string
	createdAt time.Time
	lastUsed  time.Time
	expired   bool
}

// Pool is the Upstream Session Pool.
type Pool struct {
	client  *http.Client
	idleTTL time.Duration

	mu      sync.RWMutex
	handles map[uuid.UUID]*handle

	authMu   sync.Mutex
	tenantMu map[uuid.UUID]*sync.Mutex
}

// New creates a Pool. timeout is the per-call deadline default
// (upstream.default_timeout_s, §6.4); idleTTL matches session.idle_ttl_s.
func New(timeout, idleTTL time.Duration) *Pool {
	return &Pool{
		client:   &http.Client{Timeout: timeout},
		idleTTL:  idleTTL,
		handles:  make(map[uuid.UUID]*handle),
		tenantMu: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (p *Pool) tenantLock(tenantID uuid.UUID) *sync.Mutex {
	p.authMu.Lock()
	defer p.authMu.Unlock()
	m, ok := p.tenantMu[tenantID]
	if !ok {
		m = &sync.Mutex{}
		p.tenantMu[tenantID] = m
	}
	return m
}

// rpcRequest is the Odoo-style JSON-RPC 2.0 envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name string `json:"name"`
	} `json:"data"`
}

// Call dispatches operation against tenant's upstream, reauthenticating on
// first use or on a detected session-expired signal, retrying exactly once.
func (p *Pool) Call(ctx context.Context, tenantID uuid.UUID, cfg Config, model, operation string, args, kwargs any) (json.RawMessage, error) {
	h := p.getHandle(tenantID)
	if h == nil {
		var err error
		h, err = p.authenticate(ctx, tenantID, cfg)
		if err != nil {
			return nil, err
		}
	}

	result, err := p.callWith(ctx, cfg, h, model, operation, args, kwargs)
	if isSessionExpired(err) {
		p.dropHandle(tenantID)
		h, authErr := p.authenticate(ctx, tenantID, cfg)
		if authErr != nil {
			return nil, authErr
		}
		return p.callWith(ctx, cfg, h, model, operation, args, kwargs)
	}
	return result, err
}

func (p *Pool) getHandle(tenantID uuid.UUID) *handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handles[tenantID]
	if !ok || h.expired {
		return nil
	}
	return h
}

func (p *Pool) dropHandle(tenantID uuid.UUID) {
	p.mu.Lock()
	delete(p.handles, tenantID)
	p.mu.Unlock()
}

// authenticate performs the upstream login, serialized per tenant so
// concurrent callers racing on a cold cache don't all reauthenticate at
// once (spec §4.3).
func (p *Pool) authenticate(ctx context.Context, tenantID uuid.UUID, cfg Config) (*handle, error) {
	lock := p.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	// Another goroutine may have already reauthenticated while we waited.
	if h := p.getHandle(tenantID); h != nil {
		return h, nil
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]any{
			"service": "common",
			"method":  "authenticate",
			"args":    []any{cfg.Database, cfg.Username, cfg.Password, map[string]any{}},
		},
		ID: 1,
	}

	body, err := p.post(ctx, cfg.BaseURL+"/jsonrpc", req)
	if err != nil {
		return nil, err
	}
	if body.Error != nil {
		return nil, &Error{Kind: KindAuthFailed, Err: errors.New(body.Error.Message)}
	}

	var sessionID string
	if err := json.Unmarshal(body.Result, &sessionID); err != nil || sessionID == "" {
		return nil, &Error{Kind: KindAuthFailed, Err: errors.New("upstream returned no session identity")}
	}

	now := time.Now()
	h := &handle{sessionID: sessionID, createdAt: now, lastUsed: now}

	p.mu.Lock()
	p.handles[tenantID] = h
	p.mu.Unlock()

	return h, nil
}

func (p *Pool) callWith(ctx context.Context, cfg Config, h *handle, model, operation string, args, kwargs any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]any{
			"service": "object",
			"method":  "execute_kw",
			"args":    []any{cfg.Database, h.sessionID, operation, model, args, kwargs},
		},
		ID: 2,
	}

	body, err := p.post(ctx, cfg.BaseURL+"/jsonrpc", req)
	if err != nil {
		return nil, err
	}
	if body.Error != nil {
		if isSessionExpiredName(body.Error.Data.Name) {
			return nil, &Error{Kind: KindAuthFailed, Err: errors.New("session_expired")}
		}
		return nil, &Error{Kind: KindError, Err: errors.New(body.Error.Message)}
	}

	h.lastUsed = time.Now()
	return body.Result, nil
}

func (p *Pool) post(ctx context.Context, url string, payload rpcRequest) (*rpcResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Kind: KindError, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, &Error{Kind: KindError, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		return nil, &Error{Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &Error{Kind: KindUnreachable, StatusCode: resp.StatusCode, Err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Kind: KindError, StatusCode: resp.StatusCode, Err: err}
	}
	return &out, nil
}

func isSessionExpired(err error) bool {
	var upErr *Error
	return errors.As(err, &upErr) && upErr.Kind == KindAuthFailed && upErr.Err != nil && upErr.Err.Error() == "session_expired"
}

func isSessionExpiredName(name string) bool {
	return name == "odoo.http.SessionExpiredException" || name == "session_expired"
}

// Sweep evicts handles idle beyond idleTTL. It is invoked periodically by
// a ticker goroutine that the api process mode starts (internal/app).
func (p *Pool) Sweep(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	evicted := 0
	for id, h := range p.handles {
		if now.Sub(h.lastUsed) > p.idleTTL {
			delete(p.handles, id)
			evicted++
		}
	}
	return evicted
}
