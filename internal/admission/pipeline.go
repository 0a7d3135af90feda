// Package admission implements the request-plane admission pipeline (spec
// §4.6): an ordered, short-circuiting sequence of typed steps applied to
// every client-plane request. Per spec §9's "exceptions as control flow"
// note, each step returns either a derived RequestContext or a typed
// *StepError — never a panic or a sentinel exception.
package admission

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/geniustep/bridgecore/internal/authn"
	"github.com/geniustep/bridgecore/internal/ratelimit"
	"github.com/geniustep/bridgecore/internal/telemetry"
	"github.com/geniustep/bridgecore/internal/tenantregistry"
)

// RequestContext is the explicit, immutable-by-convention context record
// threaded through the pipeline (spec §9's "ambient request context" note).
// Each step returns a new value rather than mutating the caller's copy.
type RequestContext struct {
	RequestID uuid.UUID
	UserID    string
	Role      string
	Tenant    tenantregistry.Tenant

	RemainingHour int
	RemainingDay  int
}

// Pipeline runs the five admission steps in the contractual order: auth
// failures surface before tenant status, which surfaces before rate
// decisions (spec §4.6).
type Pipeline struct {
	tokens     *authn.TokenManager
	reg        *tenantregistry.Registry
	limiter    *ratelimit.Limiter
	revocation *authn.RevocationStore
}

// New builds the standard admission Pipeline. revocation may be nil, in
// which case logout's best-effort token revocation is not enforced here.
func New(tokens *authn.TokenManager, reg *tenantregistry.Registry, limiter *ratelimit.Limiter, revocation *authn.RevocationStore) *Pipeline {
	return &Pipeline{tokens: tokens, reg: reg, limiter: limiter, revocation: revocation}
}

// Run executes the pipeline for a request presenting bearerToken.
// skipRateLimit bypasses the rate-limit step; the HTTP layer sets it only
// for the tenant logout and me routes. Admin-plane and health endpoints do
// not go through this pipeline.
func (p *Pipeline) Run(ctx context.Context, bearerToken string, skipRateLimit bool) (RequestContext, *StepError) {
	rc := RequestContext{RequestID: uuid.New()}

	rc, stepErr := p.stepAuth(ctx, rc, bearerToken)
	if stepErr != nil {
		return RequestContext{}, stepErr
	}

	rc, stepErr = p.stepTenantResolve(ctx, rc)
	if stepErr != nil {
		return RequestContext{}, stepErr
	}

	rc, stepErr = p.stepStatusGate(rc)
	if stepErr != nil {
		return RequestContext{}, stepErr
	}

	if !skipRateLimit {
		rc, stepErr = p.stepRateCheck(ctx, rc)
		if stepErr != nil {
			return RequestContext{}, stepErr
		}
	}

	return rc, nil
}

// stepAuth decodes the bearer token and verifies it with the tenant
// signing key, rejecting anything but an access token.
func (p *Pipeline) stepAuth(ctx context.Context, rc RequestContext, bearerToken string) (RequestContext, *StepError) {
	if bearerToken == "" {
		return rc, newStepError(ErrMissingToken, "no bearer token presented")
	}

	claims, err := p.tokens.VerifyTenantToken(bearerToken, authn.KindAccess)
	switch err {
	case nil:
	case authn.ErrMissingToken:
		return rc, newStepError(ErrMissingToken, "no bearer token presented")
	case authn.ErrExpiredToken:
		return rc, newStepError(ErrExpiredToken, "access token expired")
	case authn.ErrWrongTokenKind:
		return rc, newStepError(ErrWrongTokenKind, "refresh token presented where access token required")
	default:
		return rc, newStepError(ErrInvalidToken, "%v", err)
	}

	if p.revocation != nil && claims.ID != "" && p.revocation.IsRevoked(ctx, claims.ID) {
		return rc, newStepError(ErrInvalidToken, "token has been revoked")
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return rc, newStepError(ErrInvalidToken, "malformed tenant_id claim: %v", err)
	}

	rc.UserID = claims.Subject
	rc.Role = claims.Role
	rc.Tenant.ID = tenantID
	return rc, nil
}

// stepTenantResolve looks the tenant up in the registry.
func (p *Pipeline) stepTenantResolve(ctx context.Context, rc RequestContext) (RequestContext, *StepError) {
	t, err := p.reg.ResolveByID(ctx, rc.Tenant.ID)
	if err != nil {
		return rc, newStepError(ErrTenantUnknown, "tenant %s: %v", rc.Tenant.ID, err)
	}
	rc.Tenant = t
	return rc, nil
}

// stepStatusGate denies suspended/deleted tenants and asynchronously
// touches last_activity on success, never blocking the request.
func (p *Pipeline) stepStatusGate(rc RequestContext) (RequestContext, *StepError) {
	switch rc.Tenant.Status {
	case tenantregistry.StatusSuspended:
		return rc, newStepError(ErrTenantSuspended, "tenant %s is suspended", rc.Tenant.Slug)
	case tenantregistry.StatusDeleted:
		return rc, newStepError(ErrTenantDeleted, "tenant %s is deleted", rc.Tenant.Slug)
	}

	p.reg.TouchLastActivity(rc.Tenant.ID)
	return rc, nil
}

// stepRateCheck enforces the tenant's effective hourly/daily quota. A
// suspended tenant never reaches this step (spec §8 property 4), so it is
// never charged against rate.
func (p *Pipeline) stepRateCheck(ctx context.Context, rc RequestContext) (RequestContext, *StepError) {
	hourly, daily, err := p.reg.EffectiveLimits(ctx, rc.Tenant)
	if err != nil {
		return rc, newStepError(ErrTenantUnknown, "loading plan limits: %v", err)
	}

	res, err := p.limiter.Check(ctx, rc.Tenant.ID.String(), time.Now(), hourly, daily)
	if err != nil {
		return rc, newStepError(ErrTenantUnknown, "rate limiter: %v", err)
	}
	if !res.Allowed {
		telemetry.RateLimitDeniedTotal.WithLabelValues(rc.Tenant.ID.String(), string(res.DeniedScope)).Inc()
		se := newStepError(ErrRateLimited, "tenant %s exceeded %s quota", rc.Tenant.Slug, res.DeniedScope)
		se.RetryAfter = int(res.RetryAfter.Seconds())
		return rc, se
	}

	rc.RemainingHour = res.RemainingHour
	rc.RemainingDay = res.RemainingDay
	return rc, nil
}
