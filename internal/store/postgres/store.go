package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/trainhub/internal/domain"
)

var (
	//go:embed sql/platform.sql
	platformSQL string

	//go:embed sql/tenant_tables.sql
	tenantTablesSQL string

	//go:embed sql/row_level.sql
	rowLevelSQL string
)

// Platform is the non-tenant-scoped store. It owns tenant metadata and the
// audit log and is never handed to tenant business logic.
type Platform struct {
	pool    *pgxpool.Pool
	tenants *TenantRepo
	audit   *AuditRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Platform, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Platform{
		pool:    pool,
		tenants: NewTenantRepo(pool),
		audit:   NewAuditRepo(pool),
	}, nil
}

// Migrate applies the shared row-level schema, RLS policies and audit table.
// Statements are idempotent.
func (s *Platform) Migrate(ctx context.Context) error {
	for _, stmt := range []struct {
		name string
		sql  string
	}{
		{"platform", platformSQL},
		{"tenant tables", tenantTablesSQL},
		{"row level security", rowLevelSQL},
	} {
		if _, err := s.pool.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("postgres.Migrate: %s: %w", stmt.name, err)
		}
	}
	return nil
}

// ProvisionSchema creates the tables of a dedicated-schema tenant.
func (s *Platform) ProvisionSchema(ctx context.Context, schema string) error {
	if !domain.ValidSchemaName(schema) {
		return fmt.Errorf("postgres.ProvisionSchema: invalid schema name %q", schema)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres.ProvisionSchema: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// schema is validated above; identifiers cannot be bound as parameters.
	if _, err = tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		return fmt.Errorf("postgres.ProvisionSchema: create schema: %w", err)
	}
	if _, err = tx.Exec(ctx, "SET LOCAL search_path TO "+schema); err != nil {
		return fmt.Errorf("postgres.ProvisionSchema: search_path: %w", err)
	}
	if _, err = tx.Exec(ctx, tenantTablesSQL); err != nil {
		return fmt.Errorf("postgres.ProvisionSchema: tables: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres.ProvisionSchema: commit: %w", err)
	}
	return nil
}

func (s *Platform) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Platform) Close() {
	s.pool.Close()
}

func (s *Platform) Tenants() domain.TenantRepository { return s.tenants }
func (s *Platform) Audit() domain.AuditRepository    { return s.audit }

// Handle exposes the platform pool as a Pool for privileged cross-tenant
// units of work.
func (s *Platform) Handle() Pool {
	return &poolHandle{pool: s.pool}
}
