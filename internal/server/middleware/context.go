package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/trainhub/internal/tenancy"
)

type contextKey string

const (
	ContextKeyTenantID contextKey = "tenant_id"
	ContextKeyUserID   contextKey = "user_id"
	ContextKeyUserRole contextKey = "role"
	ContextKeyFacade   contextKey = "facade"
)

func TenantIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyTenantID).(string)
	return v, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return v, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyUserRole).(string)
	return v, ok
}

// FacadeFromContext returns the request's tenant unit of work, opened by
// TenantDB.
func FacadeFromContext(ctx context.Context) (tenancy.Scope, bool) {
	v, ok := ctx.Value(ContextKeyFacade).(tenancy.Scope)
	return v, ok && v != nil
}

func WithFacade(ctx context.Context, f tenancy.Scope) context.Context {
	return context.WithValue(ctx, ContextKeyFacade, f)
}
