package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/server/middleware"
)

type mockTenantLookup struct {
	getByIDFunc func(ctx context.Context, id string) (*domain.Tenant, error)
	calls       int
}

func (m *mockTenantLookup) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	m.calls++
	return m.getByIDFunc(ctx, id)
}

func operatorTenants() *mockTenantLookup {
	byID := map[string]*domain.Tenant{
		"org-platform": {ID: "org-platform", Strategy: domain.StrategyRowLevel, AllowCrossTenant: true},
		"org-a":        {ID: "org-a", Strategy: domain.StrategyRowLevel},
	}
	return &mockTenantLookup{getByIDFunc: func(_ context.Context, id string) (*domain.Tenant, error) {
		if t, ok := byID[id]; ok {
			return t, nil
		}
		return nil, domain.ErrNotFound
	}}
}

func withIdentity(r *http.Request, tenantID, role string) *http.Request {
	ctx := r.Context()
	if tenantID != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyTenantID, tenantID)
		ctx = context.WithValue(ctx, middleware.ContextKeyUserID, uuid.New())
	}
	if role != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, role)
	}
	return r.WithContext(ctx)
}

func TestRequirePlatformOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		tenantID   string
		role       string
		wantStatus int
		wantLookup bool
	}{
		{name: "admin of platform tenant", tenantID: "org-platform", role: middleware.RoleAdmin, wantStatus: http.StatusOK, wantLookup: true},
		{name: "admin of plain tenant", tenantID: "org-a", role: middleware.RoleAdmin, wantStatus: http.StatusForbidden, wantLookup: true},
		{name: "unknown tenant", tenantID: "org-ghost", role: middleware.RoleAdmin, wantStatus: http.StatusForbidden, wantLookup: true},
		{name: "coach of platform tenant", tenantID: "org-platform", role: middleware.RoleCoach, wantStatus: http.StatusForbidden},
		{name: "viewer of platform tenant", tenantID: "org-platform", role: middleware.RoleViewer, wantStatus: http.StatusForbidden},
		{name: "no role", tenantID: "org-platform", wantStatus: http.StatusUnauthorized},
		{name: "no tenant", role: middleware.RoleAdmin, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tenants := operatorTenants()
			handler := middleware.RequirePlatformOperator(tenants)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := withIdentity(httptest.NewRequest(http.MethodGet, "/platform/tenants", http.NoBody), tt.tenantID, tt.role)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLookup, tenants.calls > 0)
			if tt.wantStatus == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "access denied")
				assert.NotContains(t, rec.Body.String(), tt.tenantID)
			}
		})
	}
}

func TestRequirePlatformOperator_LookupFailure(t *testing.T) {
	t.Parallel()

	tenants := &mockTenantLookup{getByIDFunc: func(context.Context, string) (*domain.Tenant, error) {
		return nil, errors.New("tenantRepo.GetByID: connection refused")
	}}
	handler := middleware.RequirePlatformOperator(tenants)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/platform/audit", http.NoBody), "org-platform", middleware.RoleAdmin)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
