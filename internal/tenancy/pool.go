package tenancy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/metrics"
	"github.com/gosuda/trainhub/internal/store/postgres"
)

const (
	DefaultSweepInterval  = time.Hour
	defaultConnectTimeout = 10 * time.Second
)

// ErrPoolCacheClosed is returned by GetConnection after DisconnectAll.
var ErrPoolCacheClosed = errors.New("tenancy: pool cache closed")

// Connector opens a live connection handle for a tenant connection string.
// *postgres.Connector satisfies it.
type Connector interface {
	Connect(ctx context.Context, dsn string) (postgres.Pool, error)
}

// PoolCache owns one connection handle per tenant key. Handles are created
// lazily, reused across requests and evicted wholesale on every sweep, which
// bounds memory for long-lived processes serving many tenants at the cost of
// occasional reconnects.
type PoolCache struct {
	connector      Connector
	resolver       *Resolver
	baseDSN        string
	interval       time.Duration
	connectTimeout time.Duration
	clock          Clock
	metrics        *metrics.Isolation
	logger         zerolog.Logger

	group singleflight.Group

	mu       sync.RWMutex
	pools    map[string]postgres.Pool
	draining []postgres.Pool // evicted by the last sweep, closed by the next
	closed   bool
	closing  sync.WaitGroup

	stop     chan struct{}
	stopOnce sync.Once
}

type PoolOption func(*PoolCache)

func WithSweepInterval(d time.Duration) PoolOption {
	return func(c *PoolCache) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithConnectTimeout(d time.Duration) PoolOption {
	return func(c *PoolCache) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

func WithClock(clock Clock) PoolOption {
	return func(c *PoolCache) { c.clock = clock }
}

func WithPoolMetrics(m *metrics.Isolation) PoolOption {
	return func(c *PoolCache) { c.metrics = m }
}

func WithPoolLogger(l zerolog.Logger) PoolOption {
	return func(c *PoolCache) { c.logger = l }
}

func NewPoolCache(connector Connector, resolver *Resolver, baseDSN string, opts ...PoolOption) *PoolCache {
	c := &PoolCache{
		connector:      connector,
		resolver:       resolver,
		baseDSN:        baseDSN,
		interval:       DefaultSweepInterval,
		connectTimeout: defaultConnectTimeout,
		clock:          realClock{},
		logger:         log.Logger,
		pools:          make(map[string]postgres.Pool),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetConnection returns the cached handle for tenantID, creating it on first
// use. Concurrent callers for the same key share a single creation.
func (c *PoolCache) GetConnection(ctx context.Context, tenantID string) (postgres.Pool, error) {
	strategy, err := c.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenancy.GetConnection: %w", err)
	}

	key := poolKey(tenantID, strategy)

	if p, ok, err := c.lookup(key); err != nil || ok {
		return p, err
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if p, ok, err := c.lookup(key); err != nil || ok {
			return p, err
		}
		return c.create(ctx, key, tenantID, strategy)
	})
	if err != nil {
		return nil, fmt.Errorf("tenancy.GetConnection: %w", err)
	}

	return v.(postgres.Pool), nil
}

func (c *PoolCache) lookup(key string) (postgres.Pool, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, false, ErrPoolCacheClosed
	}
	p, ok := c.pools[key]
	return p, ok, nil
}

func (c *PoolCache) create(ctx context.Context, key, tenantID string, strategy domain.Strategy) (postgres.Pool, error) {
	dsn, err := TenantDSN(c.baseDSN, strategy)
	if err != nil {
		return nil, err
	}

	// The handle outlives the request that triggered its creation, so only
	// the connect timeout bounds it.
	connectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.connectTimeout)
	defer cancel()

	p, err := c.connector.Connect(connectCtx, dsn)
	if err != nil {
		c.metrics.PoolCreateFailure()
		c.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("tenancy: connection creation failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrConnectionCreationFailed, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		p.Close()
		return nil, ErrPoolCacheClosed
	}
	c.pools[key] = p
	cached := len(c.pools)
	c.mu.Unlock()

	c.metrics.PoolCreated(cached)
	c.logger.Debug().Str("tenant_id", tenantID).Str("strategy", string(strategy.Kind)).Msg("tenancy: connection pool created")

	return p, nil
}

// Sweep empties the lookup table. Evicted handles are not closed right away:
// requests may still hold them, so they are closed on the following sweep or
// on DisconnectAll. Closing a pool waits for acquired connections, so the
// sweep closes in the background and never stalls the ticker.
func (c *PoolCache) Sweep() int {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	expired := c.draining
	c.draining = make([]postgres.Pool, 0, len(c.pools))
	for _, p := range c.pools {
		c.draining = append(c.draining, p)
	}
	evicted := len(c.pools)
	c.pools = make(map[string]postgres.Pool)
	if len(expired) > 0 {
		c.closing.Add(1)
	}
	c.mu.Unlock()

	if len(expired) > 0 {
		go func() {
			defer c.closing.Done()
			for _, p := range expired {
				p.Close()
			}
		}()
	}

	c.metrics.PoolSweep()
	c.logger.Info().Int("evicted", evicted).Int("closed", len(expired)).Msg("tenancy: pool cache swept")

	return evicted
}

// Run sweeps the cache on every tick until ctx ends or DisconnectAll is
// called.
func (c *PoolCache) Run(ctx context.Context) {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C():
			c.Sweep()
		}
	}
}

// DisconnectAll stops the sweeper and closes every handle, cached or
// draining, and waits for closes started by earlier sweeps. Later GetConnection calls fail with ErrPoolCacheClosed.
func (c *PoolCache) DisconnectAll() {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	all := c.draining
	for _, p := range c.pools {
		all = append(all, p)
	}
	c.pools = nil
	c.draining = nil
	c.mu.Unlock()

	for _, p := range all {
		p.Close()
	}
	c.closing.Wait()

	c.logger.Info().Int("closed", len(all)).Msg("tenancy: all tenant connections closed")
}

// Len returns the number of handles in the lookup table.
func (c *PoolCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pools)
}

func poolKey(tenantID string, s domain.Strategy) string {
	if s.Kind == domain.StrategyDedicatedSchema {
		return tenantID + "/" + s.Schema
	}
	return tenantID
}

// TenantDSN qualifies base with the tenant's schema. Row-level tenants share
// base unchanged. Both URL and keyword/value connection strings are accepted.
func TenantDSN(base string, s domain.Strategy) (string, error) {
	switch s.Kind {
	case domain.StrategyRowLevel:
		return base, nil
	case domain.StrategyDedicatedSchema:
	default:
		return "", fmt.Errorf("tenancy.TenantDSN: unknown strategy %q", s.Kind)
	}

	if !domain.ValidSchemaName(s.Schema) {
		return "", fmt.Errorf("tenancy.TenantDSN: invalid schema name %q", s.Schema)
	}

	if strings.HasPrefix(base, "postgres://") || strings.HasPrefix(base, "postgresql://") {
		u, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("tenancy.TenantDSN: %w", err)
		}
		q := u.Query()
		q.Set("search_path", s.Schema)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	return strings.TrimSpace(base) + " search_path=" + s.Schema, nil
}
