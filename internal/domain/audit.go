package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	AuditActionDataLeakAttempt = "data_leak_attempt"
	AuditActionUnsafeQuery     = "unsafe_query_rejected"

	AuditResourceDatabaseQuery = "database_query"
)

// AuditEntry is an immutable, append-only record of an isolation violation.
type AuditEntry struct {
	ID               uuid.UUID
	TenantID         string
	Action           string
	Resource         string
	HasTenantContext bool
	Query            string // best effort, may be empty
	Details          map[string]any
	CreatedAt        time.Time
}

type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*AuditEntry, error)
	ListByAction(ctx context.Context, action string, since time.Time, limit int) ([]*AuditEntry, error)
}
