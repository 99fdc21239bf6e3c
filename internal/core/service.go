package core

import (
	"context"
	"time"

	"societycore/internal/events"
	"societycore/internal/infra/persistence/memory"
	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

const publishTimeout = 5 * time.Second

// Service exposes transactional, tenant scoped operations over the domain store.
// Every write goes through Run, which records metrics and publishes one audit
// event per committed change.
type Service struct {
	store     PersistentStore
	lggr      logger.Logger
	metrics   MetricsRecorder
	publisher events.Publisher
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.lggr = l
		}
	}
}

// WithMetricsRecorder sets the recorder observing every operation.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithPublisher sets the audit feed publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		lggr:      logger.Nop(),
		metrics:   noopMetrics{},
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lggr = s.lggr.Named("core")
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Logger returns the service logger.
func (s *Service) Logger() logger.Logger { return s.lggr }

// Now returns the current time from the service clock.
func (s *Service) Now() time.Time { return s.now() }

// Run executes fn in one store transaction on behalf of scope.
func (s *Service) Run(ctx context.Context, operation string, scope domain.Scope, fn func(Transaction) error) (Result, error) {
	start := s.now()
	var changes []Change
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := fn(tx); err != nil {
			return err
		}
		changes = tx.Changes()
		return nil
	})
	s.metrics.Observe(ctx, operation, err == nil, s.now().Sub(start))
	if err != nil {
		s.lggr.Debugw("operation failed", "operation", operation, "organization_id", scope.OrganizationID, "err", err)
		return res, err
	}
	for _, v := range res.Warnings() {
		s.lggr.Warnw("rule warning", "operation", operation, "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
	}
	s.publish(ctx, operation, scope, changes)
	return res, nil
}

// View runs fn against a consistent snapshot.
func (s *Service) View(ctx context.Context, operation string, fn func(TransactionView) error) error {
	start := s.now()
	err := s.store.View(ctx, fn)
	s.metrics.Observe(ctx, operation, err == nil, s.now().Sub(start))
	return err
}

func (s *Service) publish(ctx context.Context, operation string, scope domain.Scope, changes []Change) {
	batch := auditEvents(operation, scope, changes, s.now().UTC())
	if len(batch) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, batch...); err != nil {
		s.lggr.Warnw("audit publish failed", "operation", operation, "events", len(batch), "err", err)
	}
}

func auditEvents(operation string, scope domain.Scope, changes []Change, at time.Time) []events.AuditEvent {
	out := make([]events.AuditEvent, 0, len(changes))
	for _, c := range changes {
		// credential records stay out of the feed
		if c.Entity == domain.EntityAccount || c.Entity == domain.EntityChallenge {
			continue
		}
		ev := events.AuditEvent{
			Entity:    string(c.Entity),
			Action:    string(c.Action),
			ActorID:   scope.ActorID,
			Operation: operation,
			At:        at,
		}
		subject := c.Subject()
		if rec, ok := subject.(domain.Identified); ok {
			ev.EntityID = rec.RecordID()
		}
		if rec, ok := subject.(domain.Scoped); ok {
			ev.OrganizationID = rec.OrgID()
		}
		out = append(out, ev)
	}
	return out
}
