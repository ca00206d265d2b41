// Package kafka fans payout request events out to Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"holidaysri-admin/internal/domain/event"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// Config holds the producer settings
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// EventPublisher writes domain events to one topic, keyed by aggregate id so
// every event of a request lands on the same partition
type EventPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSaramaConfig returns the producer config used in production
func NewSaramaConfig(clientID string) *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// NewEventPublisher dials the brokers, retrying while they come up
func NewEventPublisher(cfg Config) (*EventPublisher, error) {
	config := NewSaramaConfig(cfg.ClientID)

	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= 5; i++ {
		producer, err = sarama.NewSyncProducer(cfg.Brokers, config)
		if err == nil {
			log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka producer initialized")
			return &EventPublisher{producer: producer, topic: cfg.Topic}, nil
		}
		log.Warn().Err(err).Int("attempt", i).Msg("waiting for kafka")
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("failed to start kafka producer: %w", err)
}

// NewEventPublisherWithProducer wraps an existing producer
func NewEventPublisherWithProducer(producer sarama.SyncProducer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

type envelope struct {
	EventType   string            `json:"event_type"`
	AggregateID string            `json:"aggregate_id"`
	Version     int               `json:"version"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Data        event.DomainEvent `json:"data"`
}

// Handle publishes ev; it satisfies the event bus handler signature
func (p *EventPublisher) Handle(_ context.Context, ev event.DomainEvent) error {
	data, err := json.Marshal(envelope{
		EventType:   ev.EventType(),
		AggregateID: ev.AggregateID(),
		Version:     ev.Version(),
		OccurredAt:  ev.OccurredAt(),
		Data:        ev,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", ev.EventType(), err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.AggregateID()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(ev.EventType())},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.EventType(), err)
	}

	log.Debug().
		Str("event_type", ev.EventType()).
		Str("aggregate_id", ev.AggregateID()).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("published event")
	return nil
}

func (p *EventPublisher) Close() error {
	return p.producer.Close()
}
