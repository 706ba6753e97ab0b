package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/server/middleware"
	"github.com/gosuda/trainhub/internal/tenancy"
)

// apiError renders store and isolation failures. Responses never carry
// tenant identifiers, query text or the wrapped cause; those go to the log.
func apiError(ctx context.Context, op string, err error) error {
	tid, _ := middleware.TenantIDFromContext(ctx)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("not found")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("conflict")
	case errors.Is(err, domain.ErrInvalidTransition):
		return huma.Error422UnprocessableEntity("invalid status transition")
	case domain.IsAccessDenied(err), errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrTenantNotFound):
		log.Warn().Err(err).Str("tenant_id", tid).Str("op", op).Msg("v1: access denied")
		return huma.Error403Forbidden("access denied")
	case domain.IsInvalidRequest(err):
		log.Warn().Err(err).Str("tenant_id", tid).Str("op", op).Msg("v1: invalid request")
		return huma.Error400BadRequest("invalid request")
	case errors.Is(err, domain.ErrConnectionCreationFailed):
		log.Error().Err(err).Str("tenant_id", tid).Str("op", op).Msg("v1: tenant pool unavailable")
		return huma.Error503ServiceUnavailable("service unavailable")
	}

	log.Error().Err(err).Str("tenant_id", tid).Str("op", op).Msg("v1: request failed")
	return huma.Error500InternalServerError("internal error")
}

// scopeFrom returns the unit of work TenantDB attached to the request.
func scopeFrom(ctx context.Context) (tenancy.Scope, error) {
	s, ok := middleware.FacadeFromContext(ctx)
	if !ok {
		return nil, huma.Error403Forbidden("access denied")
	}
	return s, nil
}
