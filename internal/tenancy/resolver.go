package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/trainhub/internal/domain"
)

// TenantSource reads tenant metadata. domain.TenantRepository satisfies it.
type TenantSource interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

// StrategyCache is an optional cache shared between processes.
type StrategyCache interface {
	GetStrategy(ctx context.Context, tenantID string) (domain.Strategy, bool, error)
	SetStrategy(ctx context.Context, tenantID string, s domain.Strategy) error
}

// Resolver maps tenant identifiers to isolation strategies. Strategies do not
// change for a live tenant, so resolved values are kept for the life of the
// process.
type Resolver struct {
	tenants TenantSource
	shared  StrategyCache // may be nil
	logger  zerolog.Logger

	mu    sync.RWMutex
	cache map[string]domain.Strategy
}

type ResolverOption func(*Resolver)

func WithStrategyCache(c StrategyCache) ResolverOption {
	return func(r *Resolver) { r.shared = c }
}

func WithResolverLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(tenants TenantSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		tenants: tenants,
		logger:  log.Logger,
		cache:   make(map[string]domain.Strategy),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the isolation strategy for tenantID. Unknown or empty
// identifiers fail with domain.ErrTenantNotFound.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (domain.Strategy, error) {
	if tenantID == "" {
		return domain.Strategy{}, fmt.Errorf("tenancy.Resolve: empty tenant id: %w", domain.ErrTenantNotFound)
	}

	r.mu.RLock()
	s, ok := r.cache[tenantID]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	if r.shared != nil {
		s, ok, err := r.shared.GetStrategy(ctx, tenantID)
		if err != nil {
			r.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tenancy: shared strategy cache read failed")
		} else if ok && validateStrategy(s) == nil {
			r.remember(tenantID, s)
			return s, nil
		}
	}

	t, err := r.tenants.GetByID(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Strategy{}, fmt.Errorf("tenancy.Resolve: %w", domain.ErrTenantNotFound)
	}
	if err != nil {
		return domain.Strategy{}, fmt.Errorf("tenancy.Resolve: %w", err)
	}

	s = t.ResolvedStrategy()
	if err := validateStrategy(s); err != nil {
		return domain.Strategy{}, fmt.Errorf("tenancy.Resolve: tenant %s: %w", tenantID, err)
	}

	r.remember(tenantID, s)
	if r.shared != nil {
		if err := r.shared.SetStrategy(ctx, tenantID, s); err != nil {
			r.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tenancy: shared strategy cache write failed")
		}
	}

	return s, nil
}

// Tenant reads the tenant record directly, bypassing every cache. Used for
// capability checks such as AllowCrossTenant.
func (r *Resolver) Tenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenancy.Tenant: empty tenant id: %w", domain.ErrTenantNotFound)
	}

	t, err := r.tenants.GetByID(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("tenancy.Tenant: %w", domain.ErrTenantNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tenancy.Tenant: %w", err)
	}
	return t, nil
}

func (r *Resolver) remember(tenantID string, s domain.Strategy) {
	r.mu.Lock()
	r.cache[tenantID] = s
	r.mu.Unlock()
}

func validateStrategy(s domain.Strategy) error {
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown isolation strategy %q", s.Kind)
	}
	if s.Kind == domain.StrategyDedicatedSchema && !domain.ValidSchemaName(s.Schema) {
		return fmt.Errorf("invalid schema name %q", s.Schema)
	}
	return nil
}
