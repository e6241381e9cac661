// Package messaging relays billing domain events to other services.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/shared/config"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// Envelope is the wire form of a published event.
type Envelope struct {
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func encode(e billing.Event) ([]byte, error) {
	return json.Marshal(Envelope{Type: e.Type, Key: e.Key, Payload: e.Payload, OccurredAt: e.OccurredAt})
}

// KafkaPublisher publishes events synchronously so the outbox row is only
// marked published after the broker acknowledged it.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   logger.Interface
}

// NewSaramaConfig is the producer configuration shared by the publisher and
// its tests.
func NewSaramaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0
	return cfg
}

func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Interface) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg.ClientID))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.Topic, log), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, log logger.Interface) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e billing.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := encode(e)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", e.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
		},
		Timestamp: e.OccurredAt,
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	p.logger.Debugw("billing event published",
		"type", e.Type,
		"key", e.Key,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher writes events to the log. Used when Kafka is disabled.
type LogPublisher struct {
	logger logger.Interface
}

func NewLogPublisher(log logger.Interface) *LogPublisher {
	return &LogPublisher{logger: log}
}

func (p *LogPublisher) Publish(_ context.Context, e billing.Event) error {
	p.logger.Infow("billing event",
		"type", e.Type,
		"key", e.Key,
		"payload", e.Payload,
		"occurred_at", e.OccurredAt,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
