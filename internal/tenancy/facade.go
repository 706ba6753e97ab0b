package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/metrics"
	"github.com/gosuda/trainhub/internal/store/postgres"
)

// Accessors lists every typed repository a unit of work may use. Each one is
// built on the guarded querier, so none of them can reach the connection
// without the tenant context check.
type Accessors interface {
	Users() domain.UserRepository
	Clients() domain.ClientRepository
	Workouts() domain.WorkoutRepository
	Exercises() domain.ExerciseRepository
}

// Scope is the view request handlers get of a unit of work. *Facade
// satisfies it.
type Scope interface {
	Accessors
	TenantID() string
	Transaction(ctx context.Context, fn func(tx Accessors) error) error
}

type facadeState int32

const (
	stateConstructed facadeState = iota
	stateActive
	stateClosed
)

func (s facadeState) String() string {
	switch s {
	case stateConstructed:
		return "constructed"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Facade is the only path from tenant business logic to the database. One
// Facade serves one unit of work and is not safe for concurrent use; its
// statements run in issue order on a single borrowed connection.
type Facade struct {
	conn        postgres.Conn
	tenantID    string
	strategy    domain.Strategy
	crossTenant bool

	validator *ContextValidator
	auditor   *Auditor
	metrics   *metrics.Isolation
	logger    zerolog.Logger

	state atomic.Int32
	repos *repoSet
}

type facadeConfig struct {
	auditor *Auditor
	timeout time.Duration
	metrics *metrics.Isolation
	logger  *zerolog.Logger
}

type FacadeOption func(*facadeConfig)

func WithAuditor(a *Auditor) FacadeOption {
	return func(c *facadeConfig) { c.auditor = a }
}

func WithValidationTimeout(d time.Duration) FacadeOption {
	return func(c *facadeConfig) { c.timeout = d }
}

func WithMetrics(m *metrics.Isolation) FacadeOption {
	return func(c *facadeConfig) { c.metrics = m }
}

func WithLogger(l zerolog.Logger) FacadeOption {
	return func(c *facadeConfig) { c.logger = &l }
}

// NewFacade wraps conn for tenantID. The Facade does not own conn: Close
// releases it back to its pool. allowCrossTenant disables the per-query
// context check and unlocks WithCrossTenantAccess; only platform code paths
// may set it.
func NewFacade(conn postgres.Conn, tenantID string, strategy domain.Strategy, allowCrossTenant bool, opts ...FacadeOption) *Facade {
	cfg := facadeConfig{timeout: DefaultValidationTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := log.Logger
	if cfg.logger != nil {
		logger = *cfg.logger
	}
	logger = logger.With().Str("tenant_id", tenantID).Logger()

	f := &Facade{
		conn:        conn,
		tenantID:    tenantID,
		strategy:    strategy,
		crossTenant: allowCrossTenant,
		validator:   NewContextValidator(cfg.auditor, cfg.timeout, cfg.metrics, logger),
		auditor:     cfg.auditor,
		metrics:     cfg.metrics,
		logger:      logger,
	}
	f.repos = newRepoSet(guardedDB{f: f}, tenantID)

	return f
}

func (f *Facade) TenantID() string                     { return f.tenantID }
func (f *Facade) Strategy() domain.Strategy            { return f.strategy }
func (f *Facade) CrossTenant() bool                    { return f.crossTenant }
func (f *Facade) State() string                        { return facadeState(f.state.Load()).String() }
func (f *Facade) Users() domain.UserRepository         { return f.repos.users }
func (f *Facade) Clients() domain.ClientRepository     { return f.repos.clients }
func (f *Facade) Workouts() domain.WorkoutRepository   { return f.repos.workouts }
func (f *Facade) Exercises() domain.ExerciseRepository { return f.repos.exercises }

// checksContext reports whether statements need the tenant context check.
func (f *Facade) checksContext() bool {
	return f.strategy.RowLevel() && !f.crossTenant
}

func (f *Facade) activate() error {
	if facadeState(f.state.Load()) == stateClosed {
		return fmt.Errorf("tenancy.Facade: %w", domain.ErrFacadeClosed)
	}
	f.state.CompareAndSwap(int32(stateConstructed), int32(stateActive))
	return nil
}

// guard runs before every statement issued through the Facade.
func (f *Facade) guard(ctx context.Context, sql string) error {
	if err := f.activate(); err != nil {
		return err
	}
	if !f.checksContext() {
		return nil
	}
	return f.validator.Validate(ctx, f.conn, f.tenantID, sql)
}

// QueryRaw runs a parameterized query after the tenant context check.
func (f *Facade) QueryRaw(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if err := f.guard(ctx, sql); err != nil {
		return nil, err
	}
	return f.conn.Query(ctx, sql, args...)
}

// ExecRaw runs a parameterized statement after the tenant context check.
func (f *Facade) ExecRaw(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := f.guard(ctx, sql); err != nil {
		return pgconn.CommandTag{}, err
	}
	return f.conn.Exec(ctx, sql, args...)
}

// QueryRawUnsafe runs SQL that may have been assembled from strings. The
// dangerous pattern guard runs before anything reaches the connection.
func (f *Facade) QueryRawUnsafe(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if err := f.rejectUnsafe(sql); err != nil {
		return nil, err
	}
	return f.QueryRaw(ctx, sql, args...)
}

// ExecRawUnsafe is the statement counterpart of QueryRawUnsafe.
func (f *Facade) ExecRawUnsafe(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := f.rejectUnsafe(sql); err != nil {
		return pgconn.CommandTag{}, err
	}
	return f.ExecRaw(ctx, sql, args...)
}

func (f *Facade) rejectUnsafe(sql string) error {
	if err := f.activate(); err != nil {
		return err
	}

	err := CheckUnsafeQuery(sql)
	if err == nil {
		return nil
	}

	rule := ""
	var unsafeErr *UnsafeQueryError
	if errors.As(err, &unsafeErr) {
		rule = unsafeErr.Rule
	}

	f.metrics.UnsafeQuery(rule)
	f.logger.Warn().Str("rule", rule).Msg("tenancy: unsafe raw query rejected")
	if f.auditor != nil {
		f.auditor.RecordEntry(&domain.AuditEntry{
			TenantID:         f.tenantID,
			Action:           domain.AuditActionUnsafeQuery,
			Resource:         domain.AuditResourceDatabaseQuery,
			HasTenantContext: true,
			Query:            sql,
			Details:          map[string]any{"rule": rule},
		})
	}

	return fmt.Errorf("tenancy.Facade: %w", err)
}

// Transaction validates the tenant context once for the whole transaction and
// runs fn with accessors bound to it. The isolation guarantee is about the
// session, and every statement of the transaction shares it.
func (f *Facade) Transaction(ctx context.Context, fn func(tx Accessors) error) (err error) {
	if err := f.guard(ctx, "BEGIN"); err != nil {
		return err
	}

	tx, err := f.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tenancy.Facade.Transaction: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				f.logger.Error().Err(rbErr).Msg("tenancy: rollback failed")
			}
		}
	}()

	if err = fn(newRepoSet(tx, f.tenantID)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("tenancy.Facade.Transaction: commit: %w", err)
	}
	return nil
}

// WithCrossTenantAccess hands fn the unguarded connection. Only facades built
// with allowCrossTenant may use it; everyone else gets
// domain.ErrCrossTenantNotAllowed.
func (f *Facade) WithCrossTenantAccess(ctx context.Context, fn func(db postgres.DBTX) error) error {
	if err := f.activate(); err != nil {
		return err
	}

	if !f.crossTenant {
		f.metrics.CrossTenantDenial()
		f.logger.Warn().Msg("tenancy: cross-tenant access attempted without capability")
		return fmt.Errorf("tenancy.Facade.WithCrossTenantAccess: %w", domain.ErrCrossTenantNotAllowed)
	}

	f.logger.Info().Msg("tenancy: cross-tenant access granted")
	return fn(f.conn)
}

// Close ends the unit of work and returns the connection to its pool. It is
// safe to call more than once.
func (f *Facade) Close() {
	prev := facadeState(f.state.Swap(int32(stateClosed)))
	if prev == stateClosed {
		return
	}
	f.conn.Release()
}

// guardedDB is the interception hook: the DBTX every facade repository is
// built on.
type guardedDB struct {
	f *Facade
}

func (g guardedDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := g.f.guard(ctx, sql); err != nil {
		return pgconn.CommandTag{}, err
	}
	return g.f.conn.Exec(ctx, sql, args...)
}

func (g guardedDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if err := g.f.guard(ctx, sql); err != nil {
		return nil, err
	}
	return g.f.conn.Query(ctx, sql, args...)
}

func (g guardedDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if err := g.f.guard(ctx, sql); err != nil {
		return errRow{err: err}
	}
	return g.f.conn.QueryRow(ctx, sql, args...)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error { return r.err }

type repoSet struct {
	users     *postgres.UserRepo
	clients   *postgres.ClientRepo
	workouts  *postgres.WorkoutRepo
	exercises *postgres.ExerciseRepo
}

func newRepoSet(db postgres.DBTX, tenantID string) *repoSet {
	return &repoSet{
		users:     postgres.NewUserRepo(db, tenantID),
		clients:   postgres.NewClientRepo(db, tenantID),
		workouts:  postgres.NewWorkoutRepo(db, tenantID),
		exercises: postgres.NewExerciseRepo(db, tenantID),
	}
}

func (r *repoSet) Users() domain.UserRepository         { return r.users }
func (r *repoSet) Clients() domain.ClientRepository     { return r.clients }
func (r *repoSet) Workouts() domain.WorkoutRepository   { return r.workouts }
func (r *repoSet) Exercises() domain.ExerciseRepository { return r.exercises }

var (
	_ Accessors = (*Facade)(nil)
	_ Accessors = (*repoSet)(nil)
)
