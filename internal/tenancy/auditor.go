package tenancy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/metrics"
)

const (
	defaultAuditQueueSize    = 1024
	defaultAuditWriteTimeout = 5 * time.Second
	maxAuditQueryLen         = 4096
)

// AuditSink persists or forwards audit entries. Sinks must write through
// connections that are not tenant-scoped.
type AuditSink interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}

// AuditResult tells the caller what happened to an audit entry without ever
// failing the request that produced it.
type AuditResult struct {
	Queued  bool
	Dropped bool
}

// Auditor queues leak attempts and writes them to every sink from a single
// background worker, so request paths never wait on the audit store.
type Auditor struct {
	sinks        []AuditSink
	queue        chan *domain.AuditEntry
	writeTimeout time.Duration
	metrics      *metrics.Isolation
	logger       zerolog.Logger
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type AuditorOption func(*Auditor)

func WithAuditQueueSize(n int) AuditorOption {
	return func(a *Auditor) {
		if n > 0 {
			a.queue = make(chan *domain.AuditEntry, n)
		}
	}
}

func WithAuditWriteTimeout(d time.Duration) AuditorOption {
	return func(a *Auditor) {
		if d > 0 {
			a.writeTimeout = d
		}
	}
}

func WithAuditMetrics(m *metrics.Isolation) AuditorOption {
	return func(a *Auditor) { a.metrics = m }
}

func WithAuditLogger(l zerolog.Logger) AuditorOption {
	return func(a *Auditor) { a.logger = l }
}

func WithAuditClock(now func() time.Time) AuditorOption {
	return func(a *Auditor) { a.now = now }
}

// NewAuditor starts the audit worker. Close must be called to drain it.
func NewAuditor(sinks []AuditSink, opts ...AuditorOption) *Auditor {
	a := &Auditor{
		sinks:        sinks,
		queue:        make(chan *domain.AuditEntry, defaultAuditQueueSize),
		writeTimeout: defaultAuditWriteTimeout,
		logger:       log.Logger,
		now:          time.Now,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	go a.run()

	return a
}

// Record queues a data leak attempt for tenantID on resource.
func (a *Auditor) Record(tenantID, resource, query string, hasTenantContext bool) AuditResult {
	return a.RecordEntry(&domain.AuditEntry{
		TenantID:         tenantID,
		Action:           domain.AuditActionDataLeakAttempt,
		Resource:         resource,
		HasTenantContext: hasTenantContext,
		Query:            query,
	})
}

// RecordEntry fills in ID and timestamp, truncates the query text and queues
// the entry. A full queue or a closed auditor drops the entry and logs it.
func (a *Auditor) RecordEntry(entry *domain.AuditEntry) AuditResult {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now()
	}
	entry.Query = sanitizeQuery(entry.Query)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(entry, "auditor closed")
		return AuditResult{Dropped: true}
	}

	select {
	case a.queue <- entry:
		return AuditResult{Queued: true}
	default:
		a.drop(entry, "audit queue full")
		return AuditResult{Dropped: true}
	}
}

// sanitizeQuery truncates to maxAuditQueryLen bytes on a rune boundary and
// strips what a TEXT column rejects (invalid UTF-8, NUL).
func sanitizeQuery(q string) string {
	if len(q) > maxAuditQueryLen {
		cut := maxAuditQueryLen
		for cut > 0 && !utf8.RuneStart(q[cut]) {
			cut--
		}
		q = q[:cut]
	}
	q = strings.ToValidUTF8(q, "")
	return strings.ReplaceAll(q, "\x00", "")
}

func (a *Auditor) drop(entry *domain.AuditEntry, why string) {
	a.metrics.AuditWrite("dropped")
	a.logger.Error().
		Str("audit_id", entry.ID.String()).
		Str("tenant_id", entry.TenantID).
		Str("action", entry.Action).
		Msg("audit: entry dropped: " + why)
}

func (a *Auditor) run() {
	defer close(a.done)

	for entry := range a.queue {
		a.write(entry)
	}
}

func (a *Auditor) write(entry *domain.AuditEntry) {
	for _, sink := range a.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		err := sink.Record(ctx, entry)
		cancel()

		if err != nil {
			a.metrics.AuditWrite("error")
			a.logger.Error().Err(err).
				Str("audit_id", entry.ID.String()).
				Str("tenant_id", entry.TenantID).
				Str("action", entry.Action).
				Msg("audit: sink write failed")
			continue
		}
		a.metrics.AuditWrite("ok")
	}
}

// Close stops accepting entries and waits for queued ones to be written or
// for ctx to end.
func (a *Auditor) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tenancy.Auditor.Close: %w", ctx.Err())
	}
}
