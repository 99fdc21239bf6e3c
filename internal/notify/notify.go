// Package notify dispatches one-time codes to members over their preferred channel.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"societycore/internal/config"
	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

// Message is a single code delivery request.
type Message struct {
	Channel   domain.TwoFactorMethod  `json:"channel"`
	Recipient string                  `json:"recipient"`
	Purpose   domain.ChallengePurpose `json:"purpose"`
	Code      string                  `json:"code"`
	ProfileID string                  `json:"profile_id"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// Dispatcher delivers messages. Implementations must be safe for concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Open builds the dispatcher named by cfg.Driver. An empty driver means log.
func Open(cfg config.Notify, lggr logger.Logger) (Dispatcher, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "log":
		return NewLog(lggr), func() error { return nil }, nil
	case "rabbitmq":
		r, err := DialRabbitMQ(cfg.URL, cfg.QueuePrefix)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported notify driver %q", cfg.Driver)
	}
}

// Log writes messages through the logger instead of delivering them.
type Log struct {
	lggr logger.Logger
}

// NewLog returns a development dispatcher.
func NewLog(lggr logger.Logger) *Log {
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &Log{lggr: lggr.Named("notify")}
}

// Dispatch implements Dispatcher.
func (l *Log) Dispatch(_ context.Context, msg Message) error {
	l.lggr.Infow("one-time code issued",
		"channel", msg.Channel, "recipient", msg.Recipient, "purpose", msg.Purpose,
		"profile_id", msg.ProfileID, "code", msg.Code)
	return nil
}

// Recorder keeps dispatched messages in memory.
type Recorder struct {
	mu    sync.Mutex
	msgs  []Message
	calls int
	Err   error
}

// Dispatch implements Dispatcher. When Err is set the message is counted but not kept.
func (r *Recorder) Dispatch(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.Err != nil {
		return r.Err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

// Calls counts every Dispatch, failed ones included.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Messages returns a copy of the dispatched messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Last returns the most recent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return Message{}, false
	}
	return r.msgs[len(r.msgs)-1], true
}
