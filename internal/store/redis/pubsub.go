package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store wraps the shared Redis client. It carries audit alerts between
// processes and holds the shared isolation strategy cache.
type Store struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client. The Store takes ownership of it.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.Store.Ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("redis.Store.Close: %w", err)
	}
	return nil
}

func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.Store.Publish: %w", err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := s.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.Store.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// AuditChannel is where every process publishes leak attempts for platform
// operators.
func AuditChannel() string {
	return "audit:leaks"
}

// TenantAuditChannel carries the leak attempts of a single tenant.
func TenantAuditChannel(tenantID string) string {
	return "audit:leaks:" + tenantID
}

// StrategyKey returns the cache key of a tenant's isolation strategy.
func StrategyKey(tenantID string) string {
	return "tenant:strategy:" + tenantID
}
