package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/metrics"
	"github.com/gosuda/trainhub/internal/store/postgres"
)

// TenantSetting is the session variable that carries the tenant context.
// Row-level security policies read the same setting.
const TenantSetting = "app.current_tenant_id"

const (
	currentTenantSQL = `SELECT current_setting('app.current_tenant_id', true)`
	setTenantSQL     = `SELECT set_config('app.current_tenant_id', $1, false)`
)

const DefaultValidationTimeout = 2 * time.Second

// Reasons attached to leak attempts in audit details and metrics.
const (
	reasonMissing      = "missing"
	reasonMismatch     = "mismatch"
	reasonUnverifiable = "unverifiable"
)

// ReadTenantContext returns the session tenant context of q, or "" when it
// is unset. The read is bounded by timeout.
func ReadTenantContext(ctx context.Context, q postgres.DBTX, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var current *string
	if err := q.QueryRow(ctx, currentTenantSQL).Scan(&current); err != nil {
		return "", fmt.Errorf("tenancy.ReadTenantContext: %w", err)
	}
	if current == nil {
		return "", nil
	}
	return *current, nil
}

// AssertTenantContext sets the session tenant context of q to tenantID. It is
// called at the start of every unit of work; a previous value on a reused
// connection is never trusted.
func AssertTenantContext(ctx context.Context, q postgres.DBTX, tenantID string, timeout time.Duration) error {
	if tenantID == "" {
		return errors.New("tenancy.AssertTenantContext: empty tenant id")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := q.Exec(ctx, setTenantSQL, tenantID); err != nil {
		return fmt.Errorf("tenancy.AssertTenantContext: %w", err)
	}
	return nil
}

// ContextValidator compares the session tenant context with the tenant a
// facade was built for. Any doubt fails closed and is audited.
type ContextValidator struct {
	auditor *Auditor
	timeout time.Duration
	metrics *metrics.Isolation
	logger  zerolog.Logger
}

func NewContextValidator(auditor *Auditor, timeout time.Duration, m *metrics.Isolation, logger zerolog.Logger) *ContextValidator {
	if timeout <= 0 {
		timeout = DefaultValidationTimeout
	}
	return &ContextValidator{auditor: auditor, timeout: timeout, metrics: m, logger: logger}
}

// Validate returns nil only if the session context of q equals tenantID.
// Otherwise it records a leak attempt and returns an error wrapping
// domain.ErrTenantContextMismatch. query is recorded best-effort.
func (v *ContextValidator) Validate(ctx context.Context, q postgres.DBTX, tenantID, query string) error {
	current, readErr := ReadTenantContext(ctx, q, v.timeout)
	if readErr == nil && tenantID != "" && current == tenantID {
		return nil
	}

	reason := reasonMismatch
	switch {
	case readErr != nil:
		reason = reasonUnverifiable
	case current == "":
		reason = reasonMissing
	}

	details := map[string]any{"reason": reason}
	if current != "" {
		details["session_tenant"] = current
	}
	if readErr != nil {
		details["error"] = readErr.Error()
	}

	v.metrics.LeakAttempt(reason)
	v.logger.Warn().
		Str("tenant_id", tenantID).
		Str("reason", reason).
		Err(readErr).
		Msg("tenancy: tenant context check failed")

	if v.auditor != nil {
		v.auditor.RecordEntry(&domain.AuditEntry{
			TenantID:         tenantID,
			Action:           domain.AuditActionDataLeakAttempt,
			Resource:         domain.AuditResourceDatabaseQuery,
			HasTenantContext: false,
			Query:            query,
			Details:          details,
		})
	} else {
		v.logger.Error().Str("tenant_id", tenantID).Msg("tenancy: no auditor configured; leak attempt not recorded")
	}

	if readErr != nil {
		return fmt.Errorf("tenancy.Validate: %w: %w", domain.ErrTenantContextMismatch, readErr)
	}
	return fmt.Errorf("tenancy.Validate: %w (%s)", domain.ErrTenantContextMismatch, reason)
}
