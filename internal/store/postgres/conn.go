package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by pooled connections and transactions.
// Tenant-bound repositories only ever see a DBTX.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is one physical connection checked out of a tenant pool.
// *pgxpool.Conn satisfies it.
type Conn interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
}

// Pool is a live connection handle owned by the tenant pool cache.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close()
}

// Connector opens pgx pools for tenant connection strings.
type Connector struct {
	maxConns        int32
	maxConnIdleTime time.Duration
}

func NewConnector(maxConns int32, maxConnIdleTime time.Duration) *Connector {
	return &Connector{maxConns: maxConns, maxConnIdleTime: maxConnIdleTime}
}

func (c *Connector) Connect(ctx context.Context, dsn string) (Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.Connector.Connect: parse config: %w", err)
	}

	if c.maxConns > 0 {
		cfg.MaxConns = c.maxConns
	}
	if c.maxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = c.maxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.Connector.Connect: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.Connector.Connect: ping: %w", err)
	}

	return &poolHandle{pool: pool}, nil
}

type poolHandle struct {
	pool *pgxpool.Pool
}

func (p *poolHandle) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres.Pool.Acquire: %w", err)
	}
	return conn, nil
}

func (p *poolHandle) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close blocks until every acquired connection has been released.
func (p *poolHandle) Close() {
	p.pool.Close()
}
