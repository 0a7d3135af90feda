// Package rpcgateway implements the RPC Gateway (spec §4.7): validates an
// enumerated operation and its payload, enforces per-tenant allowed
// models, dispatches through the read-through cache or the upstream
// session pool, and records usage/error ledger entries regardless of
// outcome. Grounded on the teacher's pkg/incident handler/store split.
package rpcgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/geniustep/bridgecore/internal/canon"
	"github.com/geniustep/bridgecore/internal/ledger"
	"github.com/geniustep/bridgecore/internal/readcache"
	"github.com/geniustep/bridgecore/internal/telemetry"
	"github.com/geniustep/bridgecore/internal/tenantregistry"
	"github.com/geniustep/bridgecore/internal/upstreampool"
)

// ErrorKind enumerates the §7 failures raised at this layer.
type ErrorKind string

const (
	ErrUnknownOperation ErrorKind = "UnknownOperation"
	ErrInvalidPayload   ErrorKind = "InvalidPayload"
	ErrModelForbidden   ErrorKind = "ModelForbidden"
)

// GatewayError is the typed failure returned by Dispatch before any
// upstream call is attempted.
type GatewayError struct {
	Kind    ErrorKind
	Message string
}

func (e *GatewayError) Error() string { return fmt.Sprintf("rpcgateway: %s: %s", e.Kind, e.Message) }

// Payload is the decoded RPC request body (spec §4.7 step 2).
type Payload struct {
	Model  string          `json:"model"`
	Domain json.RawMessage `json:"domain,omitempty"`
	Fields []string        `json:"fields,omitempty"`
	Ids    []int           `json:"ids,omitempty"`
	Method string          `json:"method,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Kwargs json.RawMessage `json:"kwargs,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Response is the success envelope (spec §6.3).
type Response struct {
	Result   json.RawMessage `json:"result"`
	Cached   bool            `json:"cached"`
	TenantID string          `json:"tenant_id"`
}

// Gateway wires the cache and upstream pool behind a single Dispatch entry
// point.
type Gateway struct {
	cache  *readcache.Cache
	pool   *upstreampool.Pool
	ledger *ledger.Writer
}

// New builds a Gateway.
func New(cache *readcache.Cache, pool *upstreampool.Pool, led *ledger.Writer) *Gateway {
	return &Gateway{cache: cache, pool: pool, ledger: led}
}

// DispatchParams carries everything Dispatch needs from the already-admitted
// request context.
type DispatchParams struct {
	Tenant      tenantregistry.Tenant
	UpstreamCfg upstreampool.Config
	UserID      string
	RequestID   uuid.UUID
	Endpoint    string
	ClientIP    string
	UserAgent   string
}

// Dispatch validates, routes, and records a single RPC call. The returned
// error is either a *GatewayError (400-class, raised before any upstream
// call) or an *upstreampool.Error (502/504/500-class); the HTTP layer type
// switches on it to pick the status code per spec §7.
func (g *Gateway) Dispatch(ctx context.Context, p DispatchParams, op Operation, rawPayload []byte) (Response, error) {
	start := time.Now()

	if !IsKnown(op) {
		gwErr := &GatewayError{Kind: ErrUnknownOperation, Message: string(op)}
		g.record(p, op, "", start, gwErr)
		return Response{}, gwErr
	}

	var payload Payload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		gwErr := &GatewayError{Kind: ErrInvalidPayload, Message: err.Error()}
		g.record(p, op, "", start, gwErr)
		return Response{}, gwErr
	}
	if gwErr := validatePayload(op, payload); gwErr != nil {
		g.record(p, op, payload.Model, start, gwErr)
		return Response{}, gwErr
	}
	if len(p.Tenant.AllowedModels) > 0 && !contains(p.Tenant.AllowedModels, payload.Model) {
		gwErr := &GatewayError{Kind: ErrModelForbidden, Message: payload.Model}
		g.record(p, op, payload.Model, start, gwErr)
		return Response{}, gwErr
	}

	canonPayload, err := canon.ParseJSON(rawPayload)
	if err != nil {
		gwErr := &GatewayError{Kind: ErrInvalidPayload, Message: err.Error()}
		g.record(p, op, payload.Model, start, gwErr)
		return Response{}, gwErr
	}

	var result json.RawMessage
	var cached bool
	var upErr error

	if IsReadShaped(op) {
		result, cached, upErr = g.dispatchRead(ctx, p, op, payload, canonPayload)
	} else {
		result, upErr = g.dispatchWrite(ctx, p, op, payload)
	}

	g.record(p, op, payload.Model, start, upErr)

	if upErr != nil {
		return Response{}, upErr
	}

	return Response{Result: result, Cached: cached, TenantID: p.Tenant.ID.String()}, nil
}

func (g *Gateway) dispatchRead(ctx context.Context, p DispatchParams, op Operation, payload Payload, canonPayload canon.Value) (json.RawMessage, bool, error) {
	tenantID := p.Tenant.ID.String()

	if hit, ok := g.cache.Get(ctx, tenantID, string(op), payload.Model, canonPayload); ok {
		telemetry.CacheHitsTotal.Inc()
		return hit, true, nil
	}
	telemetry.CacheMissesTotal.Inc()

	result, err := g.pool.Call(ctx, p.Tenant.ID, p.UpstreamCfg, payload.Model, string(op), payload.asArgs(), payload.asKwargs())
	if err != nil {
		// A cache-miss that results in an upstream error never populates
		// the cache and never invalidates (spec §4.7).
		return nil, false, err
	}

	g.cache.Set(ctx, tenantID, string(op), payload.Model, canonPayload, result)
	return result, false, nil
}

func (g *Gateway) dispatchWrite(ctx context.Context, p DispatchParams, op Operation, payload Payload) (json.RawMessage, error) {
	result, err := g.pool.Call(ctx, p.Tenant.ID, p.UpstreamCfg, payload.Model, string(op), payload.asArgs(), payload.asKwargs())
	if err != nil {
		return nil, err
	}

	if invErr := g.cache.Invalidate(ctx, p.Tenant.ID.String(), payload.Model); invErr != nil {
		// Invalidation failure must not be swallowed silently, but it also
		// must not fail an otherwise-successful write; log via the ledger
		// error channel instead of returning it to the caller.
		g.ledger.LogError(ledger.ErrorRecord{
			TenantID:  p.Tenant.ID,
			Timestamp: time.Now(),
			ErrorKind: "CacheInvalidationFailed",
			Message:   invErr.Error(),
			Endpoint:  p.Endpoint,
			RequestID: p.RequestID,
			Severity:  ledger.SeverityMedium,
		})
	}

	return result, nil
}

// record emits the UsageRecord unconditionally — including for the
// 400-class failures raised before any upstream call (spec §4.7 step 6)
// — and an ErrorRecord on failure, with severity mapped per spec §7.
func (g *Gateway) record(p DispatchParams, op Operation, model string, start time.Time, upErr error) {
	status := 200
	var upstreamErr *upstreampool.Error
	var gwErr *GatewayError
	switch {
	case errors.As(upErr, &upstreamErr):
		switch upstreamErr.Kind {
		case upstreampool.KindTimeout:
			status = 504
		case upstreampool.KindUnreachable:
			status = 502
		case upstreampool.KindAuthFailed:
			status = 502
		default:
			status = 500
		}
	case errors.As(upErr, &gwErr):
		status = 400
	}

	latency := time.Since(start)
	tenantID := p.Tenant.ID.String()
	userUUID, _ := uuid.Parse(p.UserID)
	g.ledger.LogUsage(ledger.UsageRecord{
		TenantID:   p.Tenant.ID,
		UserID:     userUUID,
		Timestamp:  start,
		Endpoint:   p.Endpoint,
		Method:     string(op),
		Model:      model,
		LatencyMS:  latency.Milliseconds(),
		StatusCode: status,
		ClientIP:   p.ClientIP,
		UserAgent:  p.UserAgent,
	})

	telemetry.RequestsTotal.WithLabelValues(tenantID, string(op), strconv.Itoa(status)).Inc()
	telemetry.RequestDuration.WithLabelValues(string(op)).Observe(latency.Seconds())

	if upErr == nil {
		return
	}

	kind := classify(upErr)
	if upstreamErr != nil {
		telemetry.UpstreamErrorsTotal.WithLabelValues(tenantID, kind).Inc()
	}

	severity := ledger.SeverityHigh
	switch {
	case status >= 400 && status < 500:
		severity = ledger.SeverityLow
	case status >= 500 && status != 502 && status != 504:
		severity = ledger.SeverityCritical
	}

	g.ledger.LogError(ledger.ErrorRecord{
		TenantID:  p.Tenant.ID,
		UserID:    userUUID,
		Timestamp: start,
		ErrorKind: kind,
		Message:   upErr.Error(),
		Endpoint:  p.Endpoint,
		RequestID: p.RequestID,
		Severity:  severity,
	})
}

// classify returns the error-kind label used for both the ledger's
// ErrorRecord and the upstream_errors_total metric.
func classify(err error) string {
	var upstreamErr *upstreampool.Error
	if errors.As(err, &upstreamErr) {
		return string(upstreamErr.Kind)
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return string(gwErr.Kind)
	}
	return string(upstreampool.KindError)
}

func validatePayload(op Operation, p Payload) *GatewayError {
	if p.Model == "" {
		return &GatewayError{Kind: ErrInvalidPayload, Message: "model is required"}
	}
	if (op == OpWrite || op == OpUnlink) && len(p.Ids) == 0 {
		return &GatewayError{Kind: ErrInvalidPayload, Message: "ids must be non-empty for write/unlink"}
	}
	if op == OpCallKw && p.Method == "" {
		return &GatewayError{Kind: ErrInvalidPayload, Message: "method is required for call_kw"}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (p Payload) asArgs() any {
	if len(p.Args) > 0 {
		var v any
		_ = json.Unmarshal(p.Args, &v)
		return v
	}
	if len(p.Ids) > 0 {
		return []any{p.Ids}
	}
	return []any{}
}

func (p Payload) asKwargs() any {
	if len(p.Kwargs) > 0 {
		var v any
		_ = json.Unmarshal(p.Kwargs, &v)
		return v
	}
	kw := map[string]any{}
	if len(p.Fields) > 0 {
		kw["fields"] = p.Fields
	}
	if p.Limit > 0 {
		kw["limit"] = p.Limit
	}
	if p.Offset > 0 {
		kw["offset"] = p.Offset
	}
	if len(p.Domain) > 0 {
		var domain any
		_ = json.Unmarshal(p.Domain, &domain)
		kw["domain"] = domain
	}
	return kw
}
