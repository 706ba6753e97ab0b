package v1

import (
	"context"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/tenancy"
)

// Platform abstracts the non-tenant store for handler testing.
// *postgres.Platform satisfies this interface.
type Platform interface {
	Tenants() domain.TenantRepository
	Audit() domain.AuditRepository
	ProvisionSchema(ctx context.Context, schema string) error
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Login(ctx context.Context, tenantID, email, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
}

// PlatformOpener opens privileged cross-tenant units of work.
// *tenancy.Manager satisfies this interface.
type PlatformOpener interface {
	BeginPlatform(ctx context.Context, tenantID string) (*tenancy.Facade, error)
}

// UserRegistrar creates users inside a tenant. *auth.Service satisfies it.
type UserRegistrar interface {
	Register(ctx context.Context, tenantID, email, password, name, role string) (*domain.User, error)
}
