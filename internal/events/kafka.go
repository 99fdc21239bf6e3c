package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/segmentio/kafka-go"

	"societycore/pkg/logger"
)

var defaultRetryDelays = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second}

// Writer is the subset of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes JSON encoded events keyed by organization.
type Kafka struct {
	writer Writer
	lggr   logger.Logger
	delays []time.Duration
}

// NewKafka returns a publisher writing to topic on brokers.
func NewKafka(brokers []string, topic string, lggr logger.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaWithWriter(w, lggr), nil
}

// NewKafkaWithWriter allows injecting a test writer.
func NewKafkaWithWriter(w Writer, lggr logger.Logger) *Kafka {
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &Kafka{writer: w, lggr: lggr.Named("kafka"), delays: defaultRetryDelays}
}

// Publish writes all events in one batch, retrying transient write failures.
func (k *Kafka) Publish(ctx context.Context, events ...AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode audit event: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.OrganizationID), Value: b, Time: ev.At})
	}
	err := retry.Do(func() error {
		return k.writer.WriteMessages(ctx, msgs...)
	},
		retry.Context(ctx),
		retry.Attempts(uint(len(k.delays)+1)),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return k.delays[min(int(n), len(k.delays)-1)]
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			k.lggr.Debugw("retrying kafka write", "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error { return k.writer.Close() }

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	return true
}
