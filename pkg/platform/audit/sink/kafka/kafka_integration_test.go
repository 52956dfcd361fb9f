//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"laurel/pkg/domain"
	audit "laurel/pkg/platform/audit"
	kafkasink "laurel/pkg/platform/audit/sink/kafka"
	"laurel/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	broker string
	logger *slog.Logger
}

func TestKafkaSinkSuite(t *testing.T) {
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *KafkaSinkSuite) TestAppendDeliversKeyedEvents() {
	ctx := context.Background()
	topic := "laurel.audit.delivery"

	sink, err := kafkasink.New([]string{s.broker}, topic, s.logger)
	s.Require().NoError(err)

	first := domain.DeriveContributionID([]byte("kafka-sink-first")).String()
	second := domain.DeriveContributionID([]byte("kafka-sink-second")).String()
	now := time.Now().UTC()
	events := []audit.Event{
		{
			Category:       audit.CategoryCompliance,
			Timestamp:      now,
			Action:         string(audit.EventCertificateRegistered),
			ContributionID: first,
			EpochIndex:     0,
			Tier:           "gold",
			Amount:         500,
		},
		{
			Category:       audit.CategoryOperations,
			Timestamp:      now.Add(time.Second),
			Action:         string(audit.EventAnchorAttached),
			ContributionID: first,
			Ref:            "0xabc",
		},
		{
			Category:       audit.CategoryCompliance,
			Timestamp:      now,
			Action:         string(audit.EventCertificateRegistered),
			ContributionID: second,
			EpochIndex:     1,
			Tier:           "silver",
			Amount:         250,
		},
	}
	for _, event := range events {
		s.Require().NoError(sink.Append(ctx, event))
	}
	sink.Close()

	got := s.consume(ctx, topic, len(events))

	s.Require().Len(got, len(events))
	for _, record := range got {
		var event audit.Event
		s.Require().NoError(json.Unmarshal(record.Value, &event))
		s.Equal(event.ContributionID, string(record.Key))
	}

	// Records sharing a key share a partition, so per-contribution order is
	// preserved.
	var firstActions []string
	for _, record := range got {
		if string(record.Key) != first {
			continue
		}
		var event audit.Event
		s.Require().NoError(json.Unmarshal(record.Value, &event))
		firstActions = append(firstActions, event.Action)
	}
	s.Equal([]string{
		string(audit.EventCertificateRegistered),
		string(audit.EventAnchorAttached),
	}, firstActions)
}

func (s *KafkaSinkSuite) TestExistingTopicIsReused() {
	topic := "laurel.audit.reuse"

	sink, err := kafkasink.New([]string{s.broker}, topic, s.logger)
	s.Require().NoError(err)
	sink.Close()

	again, err := kafkasink.New([]string{s.broker}, topic, s.logger)
	s.Require().NoError(err)
	again.Close()
}

func (s *KafkaSinkSuite) consume(ctx context.Context, topic string, want int) []*kgo.Record {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var records []*kgo.Record
	deadline := time.Now().Add(30 * time.Second)
	for len(records) < want && time.Now().Before(deadline) {
		pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		fetches := consumer.PollFetches(pollCtx)
		cancel()
		fetches.EachRecord(func(record *kgo.Record) {
			records = append(records, record)
		})
	}
	return records
}
