package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "laurel/pkg/platform/audit"
	"laurel/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	event := audit.Event{
		Category:       audit.CategoryCompliance,
		Action:         string(audit.EventCertificateRegistered),
		ContributionID: "bafk-test-1",
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "bafk-test-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventCertificateRegistered), events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	event := audit.Event{
		Category:       audit.CategoryOperations,
		Action:         string(audit.EventEpochAdvanced),
		ContributionID: "bafk-test-2",
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	// Wait for async processing
	require.Eventually(t, func() bool {
		events, err := pub.List(context.Background(), "bafk-test-2")
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

type countingSink struct {
	appended int
}

func (c *countingSink) Append(context.Context, audit.Event) error {
	c.appended++
	return nil
}

func TestPublisher_TeesToSink(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &countingSink{}
	pub := NewPublisher(store, WithSink(sink))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Action:         string(audit.EventAllocationMade),
		ContributionID: "bafk-test-3",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sink.appended)

	events, err := pub.List(context.Background(), "bafk-test-3")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
