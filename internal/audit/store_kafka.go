package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaStore publishes audit events to a Kafka topic, keyed by flow ID so
// one flow's events stay ordered within a partition. Kafka is the source of
// truth in this mode; ListByFlow is served by downstream consumers, not
// here.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

// NewKafkaStore creates a Kafka-backed audit sink.
func NewKafkaStore(brokers []string, topic string) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaStore{client: client, topic: topic}, nil
}

// kafkaPayload is the JSON structure on the wire.
type kafkaPayload struct {
	Timestamp string   `json:"timestamp"`
	FlowID    string   `json:"flow_id"`
	PartyID   string   `json:"party_id,omitempty"`
	Action    string   `json:"action"`
	Screen    string   `json:"screen,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(kafkaPayload{
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		FlowID:    event.FlowID,
		PartyID:   event.PartyID,
		Action:    event.Action,
		Screen:    event.Screen,
		Fields:    event.Fields,
		Detail:    event.Detail,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.FlowID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByFlow is not served from Kafka; consumers own read models.
func (s *KafkaStore) ListByFlow(_ context.Context, _ string) ([]Event, error) {
	return nil, fmt.Errorf("kafka audit store does not serve reads")
}

// Close flushes and releases the Kafka client.
func (s *KafkaStore) Close() {
	s.client.Close()
}
