// Package tenantregistry is the authoritative, hot-cached record of
// tenants, plans, and tenant-users: the policy layer every admission
// decision is checked against.
package tenantregistry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/geniustep/bridgecore/internal/vault"
)

// Status is the tenant lifecycle state.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// Tenant is the full tenant record (§3).
type Tenant struct {
	ID       uuid.UUID
	Slug     string
	Email    string

	UpstreamBaseURL       string
	UpstreamDatabase      string
	UpstreamUsername      string
	UpstreamPasswordSeal  string // ciphertext, vault-sealed
	UpstreamVersion       string

	PlanID          uuid.UUID
	HourlyOverride  *int
	DailyOverride   *int
	AllowedModels   []string
	AllowedOps      []string
	AllowedFeatures []string

	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActivity *time.Time
}

// Plan is read-only to the core (§3).
type Plan struct {
	ID             uuid.UUID
	Name           string
	DailyQuota     int
	HourlyQuota    int
	MaxTenantUsers int
	Features       []string
}

// Role is a TenantUser's role within its tenant.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// TenantUser belongs to exactly one tenant (§3).
type TenantUser struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Email          string
	PasswordHash   string
	Role           Role
	UpstreamUserID *int
	Active         bool
}

var (
	// ErrNotFound is returned by ResolveByID when the tenant id is unknown.
	ErrNotFound = errors.New("tenant not found")
	// ErrAuthFailed is returned by ResolveUser on a wrong password.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrUserInactive is returned by ResolveUser for a deactivated TenantUser.
	ErrUserInactive = errors.New("tenant user inactive")
)

type cacheEntry struct {
	tenant    Tenant
	expiresAt time.Time
}

const cacheTTL = 30 * time.Second

// Registry is the tenant/plan/tenant-user source of truth, backed by
// Postgres and fronted by a short-TTL in-memory cache keyed by tenant id.
// The cache is single-writer (Invalidate, called by the admin plane on
// mutation) / multi-reader, matching spec §5's shared-resource policy.
type Registry struct {
	pool  *pgxpool.Pool
	vault *vault.Vault

	mu    sync.RWMutex
	cache map[uuid.UUID]cacheEntry
}

// New creates a Registry backed by pool and using v to open stored
// upstream passwords.
func New(pool *pgxpool.Pool, v *vault.Vault) *Registry {
	return &Registry{
		pool:  pool,
		vault: v,
		cache: make(map[uuid.UUID]cacheEntry),
	}
}

// ResolveByID returns the Tenant for id, consulting the in-memory cache
// before falling back to Postgres.
func (r *Registry) ResolveByID(ctx context.Context, id uuid.UUID) (Tenant, error) {
	if t, ok := r.fromCache(id); ok {
		return t, nil
	}

	t, err := r.loadTenant(ctx, "id = $1", id)
	if err != nil {
		return Tenant{}, err
	}

	r.store(t)
	return t, nil
}

// ResolveUser verifies an email/password pair, optionally scoped to a
// tenant slug, and returns the matching (TenantUser, Tenant). A wrong
// password fails with ErrAuthFailed; a deactivated user fails with
// ErrUserInactive.
func (r *Registry) ResolveUser(ctx context.Context, email string, tenantSlug *string, password string) (TenantUser, Tenant, error) {
	query := `SELECT tu.id, tu.tenant_id, tu.email, tu.password_hash, tu.role, tu.upstream_user_id, tu.active
		FROM tenant_users tu
		JOIN tenants t ON t.id = tu.tenant_id
		WHERE tu.email = $1`
	args := []any{email}
	if tenantSlug != nil {
		query += " AND t.slug = $2"
		args = append(args, *tenantSlug)
	}

	var u TenantUser
	var role string
	row := r.pool.QueryRow(ctx, query, args...)
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &role, &u.UpstreamUserID, &u.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantUser{}, Tenant{}, ErrAuthFailed
		}
		return TenantUser{}, Tenant{}, fmt.Errorf("tenantregistry: resolving user: %w", err)
	}
	u.Role = Role(role)

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return TenantUser{}, Tenant{}, ErrAuthFailed
	}
	if !u.Active {
		return TenantUser{}, Tenant{}, ErrUserInactive
	}

	t, err := r.ResolveByID(ctx, u.TenantID)
	if err != nil {
		return TenantUser{}, Tenant{}, err
	}

	return u, t, nil
}

// UpstreamConfig performs a vault Open of the tenant's stored password and
// returns the connection details needed to authenticate against upstream.
func (r *Registry) UpstreamConfig(t Tenant) (baseURL, database, username, password, version string, err error) {
	plain, err := r.vault.Open(t.UpstreamPasswordSeal)
	if err != nil {
		return "", "", "", "", "", err
	}
	return t.UpstreamBaseURL, t.UpstreamDatabase, t.UpstreamUsername, plain, t.UpstreamVersion, nil
}

// Invalidate drops the cached entry for id. The admin plane calls this
// after each update to an existing tenant row so stale policy never
// outlives a 30s TTL backstop.
func (r *Registry) Invalidate(id uuid.UUID) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

// TouchLastActivity updates last_activity without blocking the caller; the
// status-gate step of the admission pipeline (§4.6 step 3) fires this in a
// goroutine so a slow write never delays the request.
func (r *Registry) TouchLastActivity(tenantID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = r.pool.Exec(ctx, `UPDATE tenants SET last_activity = now() WHERE id = $1`, tenantID)
	}()
}

func (r *Registry) fromCache(id uuid.UUID) (Tenant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[id]
	if !ok || time.Now().After(e.expiresAt) {
		return Tenant{}, false
	}
	return e.tenant, true
}

func (r *Registry) store(t Tenant) {
	r.mu.Lock()
	r.cache[t.ID] = cacheEntry{tenant: t, expiresAt: time.Now().Add(cacheTTL)}
	r.mu.Unlock()
}

const tenantColumns = `id, slug, email, upstream_base_url, upstream_database, upstream_username,
	upstream_password, upstream_version, plan_id, hourly_override, daily_override,
	allowed_models, allowed_operations, allowed_features, status, created_at, updated_at, last_activity`

func (r *Registry) loadTenant(ctx context.Context, where string, arg any) (Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE ` + where
	row := r.pool.QueryRow(ctx, query, arg)

	var t Tenant
	var status string
	if err := row.Scan(
		&t.ID, &t.Slug, &t.Email, &t.UpstreamBaseURL, &t.UpstreamDatabase, &t.UpstreamUsername,
		&t.UpstreamPasswordSeal, &t.UpstreamVersion, &t.PlanID, &t.HourlyOverride, &t.DailyOverride,
		&t.AllowedModels, &t.AllowedOps, &t.AllowedFeatures, &status, &t.CreatedAt, &t.UpdatedAt, &t.LastActivity,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("tenantregistry: loading tenant: %w", err)
	}
	t.Status = Status(status)
	return t, nil
}

// ActiveTenants returns every non-deleted tenant, bypassing the per-id
// cache. Used by the event poller (spec §4.9) to sweep each tenant's
// upstream in turn.
func (r *Registry) ActiveTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE status != 'deleted'`)
	if err != nil {
		return nil, fmt.Errorf("tenantregistry: listing active tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		var status string
		if err := rows.Scan(
			&t.ID, &t.Slug, &t.Email, &t.UpstreamBaseURL, &t.UpstreamDatabase, &t.UpstreamUsername,
			&t.UpstreamPasswordSeal, &t.UpstreamVersion, &t.PlanID, &t.HourlyOverride, &t.DailyOverride,
			&t.AllowedModels, &t.AllowedOps, &t.AllowedFeatures, &status, &t.CreatedAt, &t.UpdatedAt, &t.LastActivity,
		); err != nil {
			return nil, fmt.Errorf("tenantregistry: scanning active tenant: %w", err)
		}
		t.Status = Status(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

// LoadPlan fetches a Plan by id; plans are read-only to the core.
func (r *Registry) LoadPlan(ctx context.Context, id uuid.UUID) (Plan, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, daily_quota, hourly_quota, max_tenant_users, features
		FROM plans WHERE id = $1`, id)

	var p Plan
	if err := row.Scan(&p.ID, &p.Name, &p.DailyQuota, &p.HourlyQuota, &p.MaxTenantUsers, &p.Features); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, ErrNotFound
		}
		return Plan{}, fmt.Errorf("tenantregistry: loading plan: %w", err)
	}
	return p, nil
}

// EffectiveLimits returns the tenant's effective hourly/daily quota: the
// tenant-level override if set, otherwise the plan default.
func (r *Registry) EffectiveLimits(ctx context.Context, t Tenant) (hourly, daily int, err error) {
	plan, err := r.LoadPlan(ctx, t.PlanID)
	if err != nil {
		return 0, 0, err
	}
	hourly, daily = plan.HourlyQuota, plan.DailyQuota
	if t.HourlyOverride != nil {
		hourly = *t.HourlyOverride
	}
	if t.DailyOverride != nil {
		daily = *t.DailyOverride
	}
	return hourly, daily, nil
}

// Admittable reports whether a tenant's status allows request processing
// (§3 invariant: deleted and suspended tenants never admit requests).
func (t Tenant) Admittable() bool {
	return t.Status == StatusActive || t.Status == StatusTrial
}
