package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/server/middleware"
	"github.com/gosuda/trainhub/internal/store/postgres"
)

type CreateTenantInput struct {
	Body struct {
		Name       string `json:"name" minLength:"1" maxLength:"255" doc:"Tenant name"`
		Slug       string `json:"slug" minLength:"1" maxLength:"63" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-safe slug (lowercase alphanumeric with hyphens)"`
		Strategy   string `json:"strategy,omitempty" enum:"row_level,dedicated_schema" default:"row_level" doc:"Isolation strategy"`
		SchemaName string `json:"schema_name,omitempty" pattern:"^[a-z_][a-z0-9_]{0,62}$" doc:"Schema for dedicated_schema tenants"`
	}
}

type CreateTenantOutput struct {
	Body *domain.Tenant
}

type ListTenantsInput struct{}

type ListTenantsOutput struct {
	Body []*domain.Tenant
}

type TenantStatsInput struct {
	ID string `path:"id" minLength:"1" doc:"Tenant ID"`
}

type TenantStatsOutput struct {
	Body *domain.TenantStats
}

type ListAuditInput struct {
	TenantID string `query:"tenant_id" doc:"Only entries of this tenant"`
	Action   string `query:"action" enum:"data_leak_attempt,unsafe_query_rejected" default:"data_leak_attempt" doc:"Action filter when no tenant is given"`
	Since    int    `query:"since_hours" minimum:"1" maximum:"720" default:"24" doc:"Look-back window in hours when no tenant is given"`
	Limit    int    `query:"limit" minimum:"1" maximum:"500" default:"100" doc:"Max results"`
	Offset   int    `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListAuditOutput struct {
	Body []*domain.AuditEntry
}

// RegisterPlatformRoutes mounts operator endpoints. They must be served behind
// middleware.RequirePlatformOperator; the stats route additionally goes
// through BeginPlatform, which re-checks the caller's capability.
func RegisterPlatformRoutes(api huma.API, platform Platform, opener PlatformOpener) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/platform/tenants",
		Summary:     "Create a new tenant",
		Tags:        []string{"Platform"},
	}, func(ctx context.Context, input *CreateTenantInput) (*CreateTenantOutput, error) {
		now := time.Now()
		t := &domain.Tenant{
			ID:         uuid.NewString(),
			Name:       input.Body.Name,
			Slug:       input.Body.Slug,
			Strategy:   domain.IsolationStrategy(input.Body.Strategy),
			SchemaName: input.Body.SchemaName,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if t.Strategy == "" {
			t.Strategy = domain.StrategyRowLevel
		}
		if t.Strategy == domain.StrategyDedicatedSchema {
			if !domain.ValidSchemaName(t.SchemaName) {
				return nil, huma.Error400BadRequest("schema_name is required for dedicated_schema tenants")
			}
			if err := platform.ProvisionSchema(ctx, t.SchemaName); err != nil {
				return nil, apiError(ctx, "create-tenant", err)
			}
		} else {
			t.SchemaName = ""
		}

		if err := platform.Tenants().Create(ctx, t); err != nil {
			return nil, apiError(ctx, "create-tenant", err)
		}

		return &CreateTenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/platform/tenants",
		Summary:     "List all tenants",
		Tags:        []string{"Platform"},
	}, func(ctx context.Context, _ *ListTenantsInput) (*ListTenantsOutput, error) {
		tenants, err := platform.Tenants().List(ctx)
		if err != nil {
			return nil, apiError(ctx, "list-tenants", err)
		}

		return &ListTenantsOutput{Body: tenants}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tenant-stats",
		Method:      http.MethodGet,
		Path:        "/platform/tenants/{id}/stats",
		Summary:     "Usage counts of one tenant",
		Tags:        []string{"Platform"},
	}, func(ctx context.Context, input *TenantStatsInput) (*TenantStatsOutput, error) {
		callerID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("access denied")
		}

		// BeginPlatform enforces the caller's cross-tenant capability, so
		// the target lookup below cannot be used to probe for tenants.
		f, err := opener.BeginPlatform(ctx, callerID)
		if err != nil {
			return nil, apiError(ctx, "tenant-stats", err)
		}
		defer f.Close()

		target, err := platform.Tenants().GetByID(ctx, input.ID)
		if err != nil {
			return nil, apiError(ctx, "tenant-stats", err)
		}

		var stats *domain.TenantStats
		err = f.WithCrossTenantAccess(ctx, func(db postgres.DBTX) error {
			var err error
			stats, err = postgres.TenantStats(ctx, db, target)
			return err
		})
		if err != nil {
			return nil, apiError(ctx, "tenant-stats", err)
		}

		return &TenantStatsOutput{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-audit",
		Method:      http.MethodGet,
		Path:        "/platform/audit",
		Summary:     "Review isolation audit entries",
		Tags:        []string{"Platform"},
	}, func(ctx context.Context, input *ListAuditInput) (*ListAuditOutput, error) {
		var (
			entries []*domain.AuditEntry
			err     error
		)
		if input.TenantID != "" {
			entries, err = platform.Audit().ListByTenant(ctx, input.TenantID, input.Limit, input.Offset)
		} else {
			since := time.Now().Add(-time.Duration(input.Since) * time.Hour)
			entries, err = platform.Audit().ListByAction(ctx, input.Action, since, input.Limit)
		}
		if err != nil {
			return nil, apiError(ctx, "list-audit", err)
		}

		return &ListAuditOutput{Body: entries}, nil
	})
}
