package postgres

import (
	"context"
	"fmt"

	"github.com/gosuda/trainhub/internal/domain"
)

// TenantStats counts one tenant's rows. It is a cross-tenant read: db must
// be a platform connection whose role bypasses row level security, never a
// tenant facade.
func TenantStats(ctx context.Context, db DBTX, tenant *domain.Tenant) (*domain.TenantStats, error) {
	prefix := ""
	if tenant.Strategy == domain.StrategyDedicatedSchema {
		if !domain.ValidSchemaName(tenant.SchemaName) {
			return nil, fmt.Errorf("postgres.TenantStats: invalid schema name %q", tenant.SchemaName)
		}
		prefix = tenant.SchemaName + "."
	}

	// prefix is a validated identifier; it cannot be bound as a parameter.
	query := fmt.Sprintf(`SELECT
		(SELECT count(*) FROM %[1]susers WHERE tenant_id = $1),
		(SELECT count(*) FROM %[1]sclients WHERE tenant_id = $1),
		(SELECT count(*) FROM %[1]sworkouts WHERE tenant_id = $1),
		(SELECT count(*) FROM %[1]sworkouts WHERE tenant_id = $1 AND status = 'completed'),
		(SELECT count(*) FROM %[1]sexercises WHERE tenant_id = $1)`, prefix)

	s := &domain.TenantStats{TenantID: tenant.ID}
	err := db.QueryRow(ctx, query, tenant.ID).Scan(
		&s.Users, &s.Clients, &s.Workouts, &s.CompletedWorkouts, &s.Exercises,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.TenantStats: %w", err)
	}

	return s, nil
}
