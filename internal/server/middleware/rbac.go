package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/trainhub/internal/domain"
)

// Roles a user can hold within a tenant.
const (
	RoleAdmin  = "admin"
	RoleCoach  = "coach"
	RoleViewer = "viewer"
)

// TenantLookup reads tenant metadata through the platform connection.
type TenantLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

// RequirePlatformOperator admits admins of tenants that hold the cross-tenant
// capability. It must run after Auth. Every refusal past authentication is
// the same 403 so callers cannot tell an unknown tenant from a plain one.
func RequirePlatformOperator(tenants TenantLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			role, _ := RoleFromContext(ctx)
			tenantID, ok := TenantIDFromContext(ctx)
			if !ok || role == "" {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if role != RoleAdmin {
				writeOperatorDenied(w, tenantID, "not an admin")
				return
			}

			t, err := tenants.GetByID(ctx, tenantID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				writeOperatorDenied(w, tenantID, "unknown tenant")
				return
			case err != nil:
				log.Error().Err(err).Str("tenant_id", tenantID).Msg("middleware: tenant lookup failed")
				http.Error(w, `{"title":"Service Unavailable","status":503,"detail":"service unavailable"}`, http.StatusServiceUnavailable)
				return
			case !t.AllowCrossTenant:
				writeOperatorDenied(w, tenantID, "no cross-tenant capability")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeOperatorDenied(w http.ResponseWriter, tenantID, reason string) {
	log.Warn().Str("tenant_id", tenantID).Str("reason", reason).Msg("middleware: platform access denied")
	http.Error(w, `{"title":"Forbidden","status":403,"detail":"access denied"}`, http.StatusForbidden)
}
