package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gosuda/trainhub/internal/domain"
)

// AuditAlert is the message published for every audit entry. Query text is
// left out; operators fetch it from the durable log.
type AuditAlert struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenant_id"`
	Action           string         `json:"action"`
	Resource         string         `json:"resource"`
	HasTenantContext bool           `json:"has_tenant_context"`
	Details          map[string]any `json:"details,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// AuditPublisher forwards audit entries to the operator alert channels.
type AuditPublisher struct {
	store *Store
}

func (s *Store) AuditPublisher() *AuditPublisher {
	return &AuditPublisher{store: s}
}

// Record publishes entry on AuditChannel and on the tenant's own channel.
func (p *AuditPublisher) Record(ctx context.Context, entry *domain.AuditEntry) error {
	payload, err := json.Marshal(AuditAlert{
		ID:               entry.ID.String(),
		TenantID:         entry.TenantID,
		Action:           entry.Action,
		Resource:         entry.Resource,
		HasTenantContext: entry.HasTenantContext,
		Details:          entry.Details,
		CreatedAt:        entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("redis.AuditPublisher.Record: encode: %w", err)
	}

	for _, channel := range []string{AuditChannel(), TenantAuditChannel(entry.TenantID)} {
		if err := p.store.Publish(ctx, channel, payload); err != nil {
			return fmt.Errorf("redis.AuditPublisher.Record: %w", err)
		}
	}
	return nil
}
