package tenancy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/metrics"
	"github.com/gosuda/trainhub/internal/store/postgres"
)

// Manager wires the resolver, pool cache and auditor into the per-request
// flow: resolve, borrow a connection, assert the tenant context, wrap it.
type Manager struct {
	resolver          *Resolver
	pools             *PoolCache
	auditor           *Auditor
	platform          postgres.Pool // privileged, non-tenant; may be nil
	validationTimeout time.Duration
	metrics           *metrics.Isolation
	logger            zerolog.Logger
}

type ManagerOption func(*Manager)

func WithManagerValidationTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.validationTimeout = d
		}
	}
}

// WithPlatformPool sets the privileged pool that cross-tenant facades borrow
// from. Its role must bypass row-level security; tenant pools never do.
func WithPlatformPool(p postgres.Pool) ManagerOption {
	return func(m *Manager) { m.platform = p }
}

func WithManagerMetrics(mt *metrics.Isolation) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

func WithManagerLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

func NewManager(resolver *Resolver, pools *PoolCache, auditor *Auditor, opts ...ManagerOption) *Manager {
	m := &Manager{
		resolver:          resolver,
		pools:             pools,
		auditor:           auditor,
		validationTimeout: DefaultValidationTimeout,
		logger:            log.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin opens a tenant-scoped unit of work. The caller must Close the
// returned Facade when the unit of work ends.
func (m *Manager) Begin(ctx context.Context, tenantID string) (*Facade, error) {
	return m.begin(ctx, tenantID, false)
}

// BeginPlatform opens a cross-tenant unit of work for platform analytics and
// super-admin tooling. The tenant record must carry AllowCrossTenant.
func (m *Manager) BeginPlatform(ctx context.Context, tenantID string) (*Facade, error) {
	t, err := m.resolver.Tenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenancy.BeginPlatform: %w", err)
	}
	if !t.AllowCrossTenant {
		m.metrics.CrossTenantDenial()
		m.logger.Warn().Str("tenant_id", tenantID).Msg("tenancy: platform access requested by tenant without capability")
		return nil, fmt.Errorf("tenancy.BeginPlatform: %w", domain.ErrCrossTenantNotAllowed)
	}
	return m.begin(ctx, tenantID, true)
}

func (m *Manager) begin(ctx context.Context, tenantID string, crossTenant bool) (*Facade, error) {
	strategy, err := m.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenancy.Begin: %w", err)
	}

	pool := m.platform
	if !crossTenant || pool == nil {
		pool, err = m.pools.GetConnection(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("tenancy.Begin: %w", err)
		}
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("tenancy.Begin: %w: %w", domain.ErrConnectionCreationFailed, err)
	}

	if strategy.RowLevel() {
		if err := AssertTenantContext(ctx, conn, tenantID, m.validationTimeout); err != nil {
			conn.Release()
			return nil, fmt.Errorf("tenancy.Begin: %w", err)
		}
	}

	return NewFacade(conn, tenantID, strategy, crossTenant,
		WithAuditor(m.auditor),
		WithValidationTimeout(m.validationTimeout),
		WithMetrics(m.metrics),
		WithLogger(m.logger),
	), nil
}

// Scoped runs fn in a tenant unit of work that is closed when fn returns.
func (m *Manager) Scoped(ctx context.Context, tenantID string, fn func(Accessors) error) error {
	f, err := m.Begin(ctx, tenantID)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(f)
}

// Shutdown closes every tenant connection and drains the audit queue.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.pools.DisconnectAll()
	if m.auditor == nil {
		return nil
	}
	return m.auditor.Close(ctx)
}
