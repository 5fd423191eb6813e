package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes entries to a Kafka topic, keyed by tenant so one
// tenant's trail stays ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the brokers in seeds and targets topic.
func NewKafkaSink(seeds []string, topic string) (*KafkaSink, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("at least one broker seed is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// Write implements Sink.
func (s *KafkaSink) Write(ctx context.Context, entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(entry.Tenant),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit entry: %w", err)
	}
	return nil
}

// Close flushes and releases the Kafka client.
func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}
