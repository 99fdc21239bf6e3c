// Package events publishes an audit feed of committed domain changes.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"societycore/internal/config"
	"societycore/pkg/logger"
)

// AuditEvent describes one committed change.
type AuditEvent struct {
	Entity         string    `json:"entity"`
	Action         string    `json:"action"`
	EntityID       string    `json:"entity_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	Operation      string    `json:"operation,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher ships audit events to a downstream feed.
type Publisher interface {
	Publish(ctx context.Context, events ...AuditEvent) error
	Close() error
}

// Open builds the publisher named by cfg.Driver. An empty driver means nop.
func Open(cfg config.Events, lggr logger.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "nop":
		return Nop{}, nil
	case "kafka":
		return NewKafka(cfg.Brokers, cfg.Topic, lggr)
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, ...AuditEvent) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []AuditEvent
	Err    error
}

// Publish implements Publisher. When Err is set it is returned and nothing is kept.
func (r *Recorder) Publish(_ context.Context, events ...AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, events...)
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}
