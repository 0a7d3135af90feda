// Package adminplane is the contract BridgeCore exposes to the external
// management plane (spec §4.13-equivalent): tenant, plan, and tenant-user
// mutation, kept separate from tenantregistry's read-mostly admission path.
// Grounded on the teacher's pkg/apikey service-over-store split.
package adminplane

import (
	"context"

	"github.com/google/uuid"

	"github.com/geniustep/bridgecore/internal/tenantregistry"
)

// TenantWriter creates and updates tenant records. The management plane is
// the only caller; BridgeCore's own request path never mutates a tenant.
type TenantWriter interface {
	CreateTenant(ctx context.Context, params CreateTenantParams) (tenantregistry.Tenant, error)
	UpdateTenantStatus(ctx context.Context, id uuid.UUID, status tenantregistry.Status) error
	UpdateTenantQuotaOverrides(ctx context.Context, id uuid.UUID, hourly, daily *int) error
	RotateUpstreamCredentials(ctx context.Context, id uuid.UUID, username, password string) error
}

// PlanReader answers "what plans exist" for the management plane's UI;
// plans themselves are read-only to BridgeCore (spec §3).
type PlanReader interface {
	ListPlans(ctx context.Context) ([]tenantregistry.Plan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (tenantregistry.Plan, error)
}

// TenantUserWriter manages the tenant-scoped login accounts used by
// HandleLogin.
type TenantUserWriter interface {
	CreateTenantUser(ctx context.Context, params CreateTenantUserParams) (tenantregistry.TenantUser, error)
	SetTenantUserActive(ctx context.Context, id uuid.UUID, active bool) error
}

// CreateTenantParams is the input to TenantWriter.CreateTenant.
type CreateTenantParams struct {
	Slug             string
	Email            string
	PlanID           uuid.UUID
	UpstreamBaseURL  string
	UpstreamDatabase string
	UpstreamUsername string
	UpstreamPassword string // sealed before storage
	AllowedModels    []string
	AllowedOps       []string
	AllowedFeatures  []string
}

// CreateTenantUserParams is the input to TenantUserWriter.CreateTenantUser.
type CreateTenantUserParams struct {
	TenantID       uuid.UUID
	Email          string
	Password       string // hashed before storage
	Role           tenantregistry.Role
	UpstreamUserID *int
}
