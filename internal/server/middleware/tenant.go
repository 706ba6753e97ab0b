package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/tenancy"
)

func RequireTenant() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid, ok := TenantIDFromContext(r.Context())
			if !ok || tid == "" {
				http.Error(w, `{"title":"Forbidden","status":403,"detail":"valid tenant required"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FacadeOpener opens a tenant unit of work. *tenancy.Manager satisfies it.
type FacadeOpener interface {
	Begin(ctx context.Context, tenantID string) (*tenancy.Facade, error)
}

// TenantDB opens one Facade per request for the authenticated tenant and
// releases it when the handler returns. Must be chained after Auth and
// RequireTenant. Failures are rendered generically; the tenant identifier and
// the cause stay in the server log.
func TenantDB(opener FacadeOpener) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid, ok := TenantIDFromContext(r.Context())
			if !ok || tid == "" {
				http.Error(w, `{"title":"Forbidden","status":403,"detail":"valid tenant required"}`, http.StatusForbidden)
				return
			}

			f, err := opener.Begin(r.Context(), tid)
			if err != nil {
				log.Warn().Err(err).Str("tenant_id", tid).Msg("middleware.TenantDB: open facade")
				writeIsolationError(w, err)
				return
			}
			defer f.Close()

			next.ServeHTTP(w, r.WithContext(WithFacade(r.Context(), f)))
		})
	}
}

func writeIsolationError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsAccessDenied(err), errors.Is(err, domain.ErrTenantNotFound):
		http.Error(w, `{"title":"Forbidden","status":403,"detail":"access denied"}`, http.StatusForbidden)
	case domain.IsInvalidRequest(err):
		http.Error(w, `{"title":"Bad Request","status":400,"detail":"invalid request"}`, http.StatusBadRequest)
	default:
		http.Error(w, `{"title":"Service Unavailable","status":503,"detail":"service unavailable"}`, http.StatusServiceUnavailable)
	}
}
