package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/trainhub/internal/domain"
)

// AuditRepo writes to tenant_audit_log through the platform pool, never
// through a tenant connection.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Record(ctx context.Context, entry *domain.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("auditRepo.Record: marshal details: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO tenant_audit_log (id, tenant_id, action, resource, has_tenant_context, query_text, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.TenantID, entry.Action, entry.Resource,
		entry.HasTenantContext, nilIfEmpty(entry.Query), raw, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Record: %w", err)
	}

	return nil
}

func (r *AuditRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, action, resource, has_tenant_context, query_text, details, created_at
		 FROM tenant_audit_log WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByTenant: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows, "auditRepo.ListByTenant")
}

func (r *AuditRepo) ListByAction(ctx context.Context, action string, since time.Time, limit int) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, action, resource, has_tenant_context, query_text, details, created_at
		 FROM tenant_audit_log WHERE action = $1 AND created_at >= $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		action, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByAction: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows, "auditRepo.ListByAction")
}

func scanAuditEntries(rows pgx.Rows, caller string) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var query *string
		var details []byte

		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.Action, &e.Resource, &e.HasTenantContext,
			&query, &details, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("%s: unmarshal details: %w", caller, err)
		}
		e.Query = derefStr(query)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return entries, nil
}
