package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velvetcut/booking/internal/shared/infrastructure/outbox"
)

// mockRepository is a test double for outbox.Repository.
type mockRepository struct {
	mu        sync.Mutex
	messages  []*outbox.Message
	published []int64
	failed    []int64

	getUnpublished func(limit int) ([]*outbox.Message, error)
}

func newMockRepository() *mockRepository {
	return &mockRepository{}
}

func (m *mockRepository) Save(_ context.Context, msg *outbox.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockRepository) SaveBatch(_ context.Context, msgs []*outbox.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockRepository) GetUnpublished(_ context.Context, limit int) ([]*outbox.Message, error) {
	if m.getUnpublished != nil {
		return m.getUnpublished(limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*outbox.Message
	for _, msg := range m.messages {
		if !msg.IsPublished() {
			out = append(out, msg)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockRepository) MarkPublished(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, id)
	for _, msg := range m.messages {
		if msg.ID == id {
			now := time.Now()
			msg.PublishedAt = &now
		}
	}
	return nil
}

func (m *mockRepository) MarkFailed(_ context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, id)
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.RetryCount++
			msg.LastError = &errMsg
			msg.NextRetryAt = &nextRetryAt
		}
	}
	return nil
}

func (m *mockRepository) DeleteOld(context.Context, int) (int64, error) { return 0, nil }

// mockPublisher is a test double for eventbus.Publisher.
type mockPublisher struct {
	mu         sync.Mutex
	published  []string
	publishErr error
}

func (m *mockPublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, routingKey)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func pendingMessage(id int64, routingKey string) *outbox.Message {
	return &outbox.Message{
		ID:            id,
		EventID:       uuid.New(),
		AggregateType: "appointment",
		AggregateID:   uuid.New(),
		EventType:     routingKey,
		RoutingKey:    routingKey,
		Payload:       []byte(`{}`),
		CreatedAt:     time.Now(),
	}
}

func TestProcessBatch(t *testing.T) {
	t.Run("publishes pending messages in order", func(t *testing.T) {
		repo := newMockRepository()
		repo.messages = []*outbox.Message{
			pendingMessage(1, "booking.appointment.reserved"),
			pendingMessage(2, "booking.appointment.cancelled"),
		}
		publisher := &mockPublisher{}
		processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, nil)

		require.NoError(t, processor.ProcessBatch(context.Background()))

		assert.Equal(t, []string{"booking.appointment.reserved", "booking.appointment.cancelled"}, publisher.published)
		assert.Equal(t, []int64{1, 2}, repo.published)
	})

	t.Run("marks failures and keeps going", func(t *testing.T) {
		repo := newMockRepository()
		repo.messages = []*outbox.Message{pendingMessage(1, "booking.appointment.reserved")}
		publisher := &mockPublisher{publishErr: errors.New("broker unavailable")}
		processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, nil)

		require.NoError(t, processor.ProcessBatch(context.Background()))

		assert.Empty(t, repo.published)
		require.Equal(t, []int64{1}, repo.failed)
		assert.Equal(t, 1, repo.messages[0].RetryCount)
		require.NotNil(t, repo.messages[0].NextRetryAt)
	})

	t.Run("exhausted retries are left alone", func(t *testing.T) {
		repo := newMockRepository()
		msg := pendingMessage(1, "booking.appointment.reserved")
		msg.RetryCount = outbox.DefaultProcessorConfig().MaxRetries
		repo.messages = []*outbox.Message{msg}
		publisher := &mockPublisher{}
		processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, nil)

		require.NoError(t, processor.ProcessBatch(context.Background()))

		assert.Empty(t, publisher.published)
		assert.Empty(t, repo.failed)
	})

	t.Run("repository errors propagate", func(t *testing.T) {
		repo := newMockRepository()
		repo.getUnpublished = func(int) ([]*outbox.Message, error) {
			return nil, errors.New("connection reset")
		}
		processor := outbox.NewProcessor(repo, &mockPublisher{}, outbox.DefaultProcessorConfig(), nil, nil)

		assert.Error(t, processor.ProcessBatch(context.Background()))
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := newMockRepository()
	repo.messages = []*outbox.Message{pendingMessage(1, "booking.appointment.reserved")}
	publisher := &mockPublisher{}

	cfg := outbox.DefaultProcessorConfig()
	cfg.PollInterval = 5 * time.Millisecond
	processor := outbox.NewProcessor(repo, publisher, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- processor.Run(ctx) }()

	assert.Eventually(t, func() bool {
		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		return len(publisher.published) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}
