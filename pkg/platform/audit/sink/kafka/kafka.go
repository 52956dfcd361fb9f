// Package kafka publishes audit events to a Kafka topic so out-of-band
// collaborators (the anchoring service in particular) can consume the
// certification stream as explicit messages rather than in-process calls.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "laurel/pkg/platform/audit"
)

// Sink produces audit events to a single topic, keyed by contribution ID so
// all events for one contribution land in the same partition, in order.
type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the topic exists.
func New(brokers []string, topic string, logger *slog.Logger) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka sink requires a topic")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(context.Background(), 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("create topic %q: %w", topic, resp.Err)
	}

	return &Sink{client: client, topic: topic, logger: logger}, nil
}

// Append produces the event asynchronously. Delivery failures are logged;
// the audit store remains the system of record.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.ContributionID),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil && s.logger != nil {
			s.logger.Error("audit event produce failed",
				"topic", s.topic,
				"action", event.Action,
				"contribution_id", event.ContributionID,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client.
func (s *Sink) Close() {
	if err := s.client.Flush(context.Background()); err != nil && s.logger != nil {
		s.logger.Error("kafka sink flush failed", "error", err)
	}
	s.client.Close()
}
