package tenancy_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/store/postgres"
	"github.com/gosuda/trainhub/internal/tenancy"
)

// ---------------------------------------------------------------------------
// fakeConn: a single physical connection with a session tenant variable
// ---------------------------------------------------------------------------

// fakeConn emulates the parts of a Postgres session the isolation layer
// touches: the app.current_tenant_id setting, plain statements and
// transactions. Statements other than the context read/write are recorded.
type fakeConn struct {
	mu         sync.Mutex
	session    *string
	readErr    error // returned by the context read
	hang       bool  // context read blocks until ctx is done
	statements []string
	contextOps int

	execFunc     func(sql string, args []any) (pgconn.CommandTag, error)
	queryFunc    func(sql string, args []any) (pgx.Rows, error)
	queryRowFunc func(sql string, args []any) pgx.Row

	began    int
	tx       *fakeTx
	released atomic.Int32
}

func newFakeConn(session string) *fakeConn {
	c := &fakeConn{}
	if session != "" {
		c.session = &session
	}
	return c
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if strings.Contains(sql, "set_config(") {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.contextOps++
		v, _ := args[0].(string)
		c.session = &v
		return pgconn.NewCommandTag("SELECT 1"), nil
	}

	c.record(sql)
	if c.execFunc != nil {
		return c.execFunc(sql, args)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.record(sql)
	if c.queryFunc != nil {
		return c.queryFunc(sql, args)
	}
	return &fakeRows{}, nil
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if strings.Contains(sql, "current_setting(") {
		c.mu.Lock()
		c.contextOps++
		hang, readErr, session := c.hang, c.readErr, c.session
		c.mu.Unlock()

		switch {
		case hang:
			return hangingRow{ctx: ctx}
		case readErr != nil:
			return fakeRow{err: readErr}
		default:
			return fakeRow{values: []any{copyStr(session)}}
		}
	}

	c.record(sql)
	if c.queryRowFunc != nil {
		return c.queryRowFunc(sql, args)
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.began++
	c.tx = &fakeTx{conn: c}
	return c.tx, nil
}

func (c *fakeConn) Release() { c.released.Add(1) }

func (c *fakeConn) record(sql string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = append(c.statements, sql)
}

func (c *fakeConn) executed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statements...)
}

func (c *fakeConn) contextReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contextOps
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ---------------------------------------------------------------------------
// fakeTx: embeds pgx.Tx; only the methods the facade uses are implemented
// ---------------------------------------------------------------------------

type fakeTx struct {
	pgx.Tx
	conn       *fakeConn
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.conn.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.conn.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.conn.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	if t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

// ---------------------------------------------------------------------------
// Rows
// ---------------------------------------------------------------------------

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type hangingRow struct {
	ctx context.Context
}

func (r hangingRow) Scan(...any) error {
	<-r.ctx.Done()
	return r.ctx.Err()
}

// fakeRows embeds pgx.Rows; repositories only call Next, Scan, Err and Close.
type fakeRows struct {
	pgx.Rows
	rows   [][]any
	i      int
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return assign(dest, r.rows[r.i-1]) }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close()                 { r.closed = true }

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(values[i]))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Audit sink
// ---------------------------------------------------------------------------

type memorySink struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
	err     error
}

func (s *memorySink) Record(_ context.Context, e *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) all() []*domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.AuditEntry(nil), s.entries...)
}

// ---------------------------------------------------------------------------
// Tenant source, pools, connector, clock
// ---------------------------------------------------------------------------

type fakeTenants struct {
	mu      sync.Mutex
	tenants map[string]*domain.Tenant
	calls   int
	err     error
}

func newFakeTenants(ts ...*domain.Tenant) *fakeTenants {
	m := make(map[string]*domain.Tenant, len(ts))
	for _, t := range ts {
		m[t.ID] = t
	}
	return &fakeTenants{tenants: m}
}

func (f *fakeTenants) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tenants[id]
	if !ok {
		return nil, fmt.Errorf("fakeTenants.GetByID: %w", domain.ErrNotFound)
	}
	return t, nil
}

func (f *fakeTenants) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func rowLevelTenant(id string) *domain.Tenant {
	return &domain.Tenant{ID: id, Name: id, Slug: id, Strategy: domain.StrategyRowLevel}
}

func schemaTenant(id, schema string) *domain.Tenant {
	return &domain.Tenant{ID: id, Name: id, Slug: id, Strategy: domain.StrategyDedicatedSchema, SchemaName: schema}
}

type fakePool struct {
	dsn        string
	conn       postgres.Conn
	acquireErr error
	closed     atomic.Bool
	closeGate  <-chan struct{} // Close blocks until it is closed, like a pool with connections in use
}

func (p *fakePool) Acquire(context.Context) (postgres.Conn, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	if p.closed.Load() {
		return nil, errors.New("fakePool: closed")
	}
	return p.conn, nil
}

func (p *fakePool) Ping(context.Context) error { return nil }

func (p *fakePool) Close() {
	if p.closeGate != nil {
		<-p.closeGate
	}
	p.closed.Store(true)
}

type fakeConnector struct {
	calls atomic.Int32
	delay time.Duration
	conn  func(dsn string) postgres.Conn
	gate  <-chan struct{}

	mu    sync.Mutex
	fail  error
	dsns  []string
	pools []*fakePool
}

func (c *fakeConnector) Connect(ctx context.Context, dsn string) (postgres.Pool, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dsns = append(c.dsns, dsn)
	if c.fail != nil {
		return nil, c.fail
	}
	p := &fakePool{dsn: dsn, closeGate: c.gate}
	if c.conn != nil {
		p.conn = c.conn(dsn)
	}
	c.pools = append(c.pools, p)
	return p, nil
}

func (c *fakeConnector) setFail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

func (c *fakeConnector) created() []*fakePool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakePool(nil), c.pools...)
}

type fakeClock struct {
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{ticker: &fakeTicker{ch: make(chan time.Time)}}
}

func (c *fakeClock) NewTicker(time.Duration) tenancy.Ticker { return c.ticker }

func (c *fakeClock) tick() { c.ticker.ch <- time.Now() }

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }
