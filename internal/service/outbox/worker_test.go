package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
	"github.com/vladislavdragonenkov/specialorders/internal/metrics"
	"github.com/vladislavdragonenkov/specialorders/internal/storage/memory"
)

func enqueue(t *testing.T, queue *memory.OutboxRepository, id, eventType string) {
	t.Helper()
	_, err := queue.Enqueue(context.Background(), domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateSpecialOrder,
		AggregateID:   "42",
		EventType:     eventType,
		Payload:       []byte(`{"statut":"vendu"}`),
	})
	require.NoError(t, err)
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	queue := memory.NewOutboxRepository()
	enqueue(t, queue, "msg-1", domain.EventOrderCreated)
	enqueue(t, queue, "msg-2", domain.EventPaymentUpdated)
	publisher := &stubPublisher{}

	worker := NewWorker(queue, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))

	sent := worker.ProcessOnce(context.Background())
	assert.Equal(t, 2, sent)
	assert.Empty(t, queue.AllPending())
	assert.Equal(t, []string{"msg-1", "msg-2"}, publisher.publishedIDs())

	stats, err := queue.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	queue := &stubQueue{pending: []domain.OutboxMessage{{
		ID:          "msg-2",
		AggregateID: "7",
		EventType:   domain.EventStatusChanged,
		Payload:     []byte(`{"statut":"annulé"}`),
	}}}
	publisher := &stubPublisher{err: errors.New("broker unavailable")}
	dlqPublisher := &stubPublisher{}

	worker := NewWorker(queue, publisher,
		WithDLQPublisher(dlqPublisher),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	assert.Zero(t, worker.ProcessOnce(context.Background()))
	assert.Equal(t, 3, publisher.calls())
	assert.Empty(t, queue.sentIDs)
	assert.Equal(t, []string{"msg-2"}, queue.failedIDs)
	require.Equal(t, 1, dlqPublisher.calls())

	var letter deadLetter
	require.NoError(t, json.Unmarshal(dlqPublisher.last().Payload, &letter))
	assert.Equal(t, "msg-2", letter.OutboxID)
	assert.Contains(t, letter.PublishError, "broker unavailable")
	assert.JSONEq(t, `{"statut":"annulé"}`, string(letter.Payload))
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	queue := &stubQueue{pending: []domain.OutboxMessage{{ID: "msg-3", EventType: domain.EventPaymentUpdated}}}
	publisher := &stubPublisher{
		sequenceErrors: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil},
	}

	worker := NewWorker(queue, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))
	worker.ProcessOnce(context.Background())

	assert.Equal(t, 3, publisher.calls())
	assert.Equal(t, []string{"msg-3"}, queue.sentIDs)
	assert.Empty(t, queue.failedIDs)
}

func TestWorker_DeadLetterAndMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	failedAt := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	queue := &stubQueue{pending: []domain.OutboxMessage{{ID: "msg-9", EventType: domain.EventOrderCreated, Payload: []byte(`{}`)}}}
	dlqPublisher := &stubPublisher{}

	worker := NewWorker(queue, &stubPublisher{err: errors.New("no leader")},
		WithDLQPublisher(dlqPublisher),
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(reg)),
		WithClock(func() time.Time { return failedAt }),
		WithRetryBaseDelay(0),
		WithMaxAttempts(2),
	)
	worker.ProcessOnce(context.Background())

	var letter deadLetter
	require.NoError(t, json.Unmarshal(dlqPublisher.last().Payload, &letter))
	assert.True(t, letter.FailedAt.Equal(failedAt))

	attempts := map[string]float64{}
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "special_orders_outbox_publish_attempts_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			attempts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		metrics.PublishRetryError: 2,
		metrics.PublishFailed:     1,
	}, attempts)
}

func TestWorker_PublishCarriesDeadline(t *testing.T) {
	t.Parallel()

	queue := &stubQueue{pending: []domain.OutboxMessage{{ID: "msg-4"}}}
	publisher := &stubPublisher{}

	worker := NewWorker(queue, publisher, WithPublishTimeout(time.Second))
	worker.ProcessOnce(context.Background())

	require.Equal(t, 1, publisher.calls())
	assert.True(t, publisher.sawDeadline)
}

func TestWorker_RetryBackoff(t *testing.T) {
	t.Parallel()

	worker := NewWorker(nil, nil, WithRetryBaseDelay(10*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, worker.retryBackoff(1))
	assert.Equal(t, 20*time.Millisecond, worker.retryBackoff(2))
	assert.Equal(t, 40*time.Millisecond, worker.retryBackoff(3))

	noDelay := NewWorker(nil, nil, WithRetryBaseDelay(0))
	assert.Zero(t, noDelay.retryBackoff(5))
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&stubQueue{}, &stubPublisher{},
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

type stubQueue struct {
	pending   []domain.OutboxMessage
	sentIDs   []string
	failedIDs []string
}

func (s *stubQueue) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 || limit >= len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
}

func (s *stubQueue) Stats(context.Context) (domain.OutboxStats, error) {
	stats := domain.OutboxStats{PendingCount: len(s.pending)}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *stubQueue) MarkSent(_ context.Context, id string) error {
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *stubQueue) MarkFailed(_ context.Context, id string) error {
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	published      []domain.OutboxMessage
	callCount      int
	sawDeadline    bool
}

func (s *stubPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	if _, ok := ctx.Deadline(); ok {
		s.sawDeadline = true
	}

	err := s.err
	if len(s.sequenceErrors) > 0 {
		err = s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
	}
	if err == nil {
		s.published = append(s.published, event)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubPublisher) publishedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.published))
	for _, event := range s.published {
		ids = append(ids, event.ID)
	}
	return ids
}

func (s *stubPublisher) last() domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[len(s.published)-1]
}

var (
	_ domain.OutboxQueue     = (*stubQueue)(nil)
	_ domain.OutboxPublisher = (*stubPublisher)(nil)
)
