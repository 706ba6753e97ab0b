package domain

import (
	"context"
	"regexp"
	"time"
)

// IsolationStrategy selects how a tenant's rows are kept apart from other tenants.
type IsolationStrategy string

const (
	// StrategyRowLevel shares tables between tenants; every row carries a
	// tenant_id and the session variable app.current_tenant_id scopes queries.
	StrategyRowLevel IsolationStrategy = "row_level"
	// StrategyDedicatedSchema gives the tenant its own schema of tables.
	StrategyDedicatedSchema IsolationStrategy = "dedicated_schema"
)

func (s IsolationStrategy) Valid() bool {
	return s == StrategyRowLevel || s == StrategyDedicatedSchema
}

var schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidSchemaName reports whether name is safe to place in a search_path.
func ValidSchemaName(name string) bool {
	return schemaNamePattern.MatchString(name)
}

// Strategy is the resolved isolation strategy for one tenant.
// Schema is only set for StrategyDedicatedSchema.
type Strategy struct {
	Kind   IsolationStrategy `json:"kind"`
	Schema string            `json:"schema,omitempty"`
}

func (s Strategy) RowLevel() bool { return s.Kind == StrategyRowLevel }

type Tenant struct {
	ID               string
	Name             string
	Slug             string
	Strategy         IsolationStrategy
	SchemaName       string // dedicated_schema only
	AllowCrossTenant bool   // platform analytics / super-admin tenants
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ResolvedStrategy returns the Strategy the connection router uses for t.
func (t *Tenant) ResolvedStrategy() Strategy {
	if t.Strategy == StrategyDedicatedSchema {
		return Strategy{Kind: StrategyDedicatedSchema, Schema: t.SchemaName}
	}
	return Strategy{Kind: StrategyRowLevel}
}

// TenantRepository reads and writes tenant metadata through the platform
// connection. It is not tenant-scoped.
type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context) ([]*Tenant, error)
}

// TenantStats is the platform analytics view of one tenant's data.
type TenantStats struct {
	TenantID          string `json:"tenant_id"`
	Users             int64  `json:"users"`
	Clients           int64  `json:"clients"`
	Workouts          int64  `json:"workouts"`
	CompletedWorkouts int64  `json:"completed_workouts"`
	Exercises         int64  `json:"exercises"`
}
