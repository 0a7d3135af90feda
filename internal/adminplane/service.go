package adminplane

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/geniustep/bridgecore/internal/tenantregistry"
	"github.com/geniustep/bridgecore/internal/vault"
)

// Service is the in-process, pgx-backed implementation of TenantWriter,
// PlanReader, and TenantUserWriter. It calls registry.Invalidate after
// each update to an existing tenant row (status, quota overrides, upstream
// credentials) so the admission path never serves stale policy past the
// registry's cache TTL.
type Service struct {
	pool     *pgxpool.Pool
	vault    *vault.Vault
	registry *tenantregistry.Registry
}

// NewService builds a Service sharing pool, vault, and registry with the
// rest of BridgeCore.
func NewService(pool *pgxpool.Pool, v *vault.Vault, registry *tenantregistry.Registry) *Service {
	return &Service{pool: pool, vault: v, registry: registry}
}

var _ TenantWriter = (*Service)(nil)
var _ PlanReader = (*Service)(nil)
var _ TenantUserWriter = (*Service)(nil)

// CreateTenant inserts a new tenant, sealing its upstream password with the
// vault before it ever touches Postgres.
func (s *Service) CreateTenant(ctx context.Context, p CreateTenantParams) (tenantregistry.Tenant, error) {
	sealed, err := s.vault.Seal(p.UpstreamPassword)
	if err != nil {
		return tenantregistry.Tenant{}, fmt.Errorf("adminplane: sealing upstream password: %w", err)
	}

	var t tenantregistry.Tenant
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tenants (
			id, slug, email, upstream_base_url, upstream_database, upstream_username,
			upstream_password, plan_id, allowed_models, allowed_operations, allowed_features,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'trial', now(), now())
		RETURNING id, slug, email, status, created_at, updated_at`,
		uuid.New(), p.Slug, p.Email, p.UpstreamBaseURL, p.UpstreamDatabase, p.UpstreamUsername,
		sealed, p.PlanID, p.AllowedModels, p.AllowedOps, p.AllowedFeatures,
	)

	var status string
	if err := row.Scan(&t.ID, &t.Slug, &t.Email, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return tenantregistry.Tenant{}, fmt.Errorf("adminplane: creating tenant: %w", err)
	}
	t.Status = tenantregistry.Status(status)
	t.PlanID = p.PlanID
	return t, nil
}

// UpdateTenantStatus transitions a tenant's lifecycle status (spec §3's
// trial/active/suspended/deleted states) and invalidates the registry
// cache entry so the new status takes effect immediately.
func (s *Service) UpdateTenantStatus(ctx context.Context, id uuid.UUID, status tenantregistry.Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tenants SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("adminplane: updating tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenantregistry.ErrNotFound
	}
	s.registry.Invalidate(id)
	return nil
}

// UpdateTenantQuotaOverrides sets or clears a tenant's per-tenant hourly/
// daily quota overrides (nil clears the override back to the plan default).
func (s *Service) UpdateTenantQuotaOverrides(ctx context.Context, id uuid.UUID, hourly, daily *int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tenants SET hourly_override = $1, daily_override = $2, updated_at = now() WHERE id = $3`,
		hourly, daily, id)
	if err != nil {
		return fmt.Errorf("adminplane: updating quota overrides: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenantregistry.ErrNotFound
	}
	s.registry.Invalidate(id)
	return nil
}

// RotateUpstreamCredentials re-seals a new upstream username/password pair
// for a tenant, e.g. after the tenant rotates their Odoo admin password.
func (s *Service) RotateUpstreamCredentials(ctx context.Context, id uuid.UUID, username, password string) error {
	sealed, err := s.vault.Seal(password)
	if err != nil {
		return fmt.Errorf("adminplane: sealing rotated credentials: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `UPDATE tenants SET upstream_username = $1, upstream_password = $2, updated_at = now() WHERE id = $3`,
		username, sealed, id)
	if err != nil {
		return fmt.Errorf("adminplane: rotating upstream credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenantregistry.ErrNotFound
	}
	s.registry.Invalidate(id)
	return nil
}

// ListPlans returns every plan row. Plans are read-only to BridgeCore's own
// request path; only the admin plane creates or edits them directly in
// Postgres, outside this service's surface.
func (s *Service) ListPlans(ctx context.Context) ([]tenantregistry.Plan, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, daily_quota, hourly_quota, max_tenant_users, features FROM plans ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("adminplane: listing plans: %w", err)
	}
	defer rows.Close()

	var plans []tenantregistry.Plan
	for rows.Next() {
		var p tenantregistry.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.DailyQuota, &p.HourlyQuota, &p.MaxTenantUsers, &p.Features); err != nil {
			return nil, fmt.Errorf("adminplane: scanning plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetPlan fetches a single plan by id.
func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (tenantregistry.Plan, error) {
	return s.registry.LoadPlan(ctx, id)
}

// CreateTenantUser inserts a new login account for a tenant, hashing the
// presented plaintext password with bcrypt.
func (s *Service) CreateTenantUser(ctx context.Context, p CreateTenantUserParams) (tenantregistry.TenantUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return tenantregistry.TenantUser{}, fmt.Errorf("adminplane: hashing password: %w", err)
	}

	u := tenantregistry.TenantUser{
		ID:             uuid.New(),
		TenantID:       p.TenantID,
		Email:          p.Email,
		Role:           p.Role,
		UpstreamUserID: p.UpstreamUserID,
		Active:         true,
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tenant_users (id, tenant_id, email, password_hash, role, upstream_user_id, active)
		VALUES ($1, $2, $3, $4, $5, $6, true)`,
		u.ID, u.TenantID, u.Email, string(hash), string(u.Role), u.UpstreamUserID,
	)
	if err != nil {
		return tenantregistry.TenantUser{}, fmt.Errorf("adminplane: creating tenant user: %w", err)
	}
	return u, nil
}

// SetTenantUserActive flips a tenant user's active flag, e.g. to
// deprovision a departed employee without deleting their audit trail.
func (s *Service) SetTenantUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tenant_users SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("adminplane: setting tenant user active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errTenantUserNotFound
	}
	return nil
}

var errTenantUserNotFound = errors.New("adminplane: tenant user not found")
