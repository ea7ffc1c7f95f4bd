// Package events publishes ownership lifecycle events to Kafka for
// downstream consumers (audit pipelines, search indexers). Publishing is
// best-effort: a failed publish never fails the ledger operation it trails.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sowailem/ownable/pkg/tracing"
)

const (
	TypeOwnershipGiven       = "ownership.given"
	TypeOwnershipTransferred = "ownership.transferred"
	TypeOwnershipRemoved     = "ownership.removed"
)

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, topic string) Config {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	return Config{
		Brokers: brokerList,
		Topic:   topic,
	}
}

// OwnershipEvent is one ledger mutation, as seen by downstream consumers.
// FromOwner carries the caller-declared previous owner on transfers; the
// ledger itself does not verify it.
type OwnershipEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	OwnershipID   int64     `json:"ownership_id,omitempty"`
	OwnerID       int64     `json:"owner_id,omitempty"`
	OwnerType     string    `json:"owner_type,omitempty"`
	FromOwnerID   int64     `json:"from_owner_id,omitempty"`
	FromOwnerType string    `json:"from_owner_type,omitempty"`
	OwnableID     int64     `json:"ownable_id"`
	OwnableType   string    `json:"ownable_type"`
	ActorID       string    `json:"actor_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// Producer handles producing ownership events to Kafka
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it
		// doesn't exist yet.
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Publish sends one ownership event, keyed by the ownable pair so history
// for the same entity stays in partition order.
func (p *Producer) Publish(ctx context.Context, evt *OwnershipEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Publish")
	defer span.End()

	if evt == nil {
		return fmt.Errorf("ownership event is nil")
	}
	if evt.EventID == "" {
		evt.EventID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)
	evt.SpanID = tracing.GetSpanID(ctx)

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal ownership event: %w", err)
	}

	span.SetAttributes(
		attribute.String("event.type", evt.Type),
		attribute.String("ownable.type", evt.OwnableType),
		attribute.Int64("ownable.id", evt.OwnableID),
	)

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%d", evt.OwnableType, evt.OwnableID)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(evt.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish ownership event")
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type":   evt.Type,
			"ownable_id":   evt.OwnableID,
			"ownable_type": evt.OwnableType,
		}).Error("failed to publish ownership event")
		return err
	}

	return nil
}
