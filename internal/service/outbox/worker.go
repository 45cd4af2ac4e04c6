package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
	"github.com/vladislavdragonenkov/specialorders/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	defaultPublishTimeout = 5 * time.Second
)

// Worker переносит события спецзаказов из outbox в брокер.
// События публикуются в порядке фиксации транзакций, по одному за раз.
type Worker struct {
	queue          domain.OutboxQueue
	publisher      domain.OutboxPublisher
	dlqPublisher   domain.OutboxPublisher
	logger         *log.Entry
	metrics        *metrics.OutboxMetrics
	now            func() time.Time
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	publishTimeout time.Duration
}

// Option настраивает Worker.
type Option func(*Worker)

func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithMetrics подменяет набор метрик, по умолчанию используется DefaultRegisterer.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithDLQPublisher задаёт получателя событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlqPublisher = publisher }
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) { w.pollInterval = interval }
}

func WithBatchSize(batchSize int) Option {
	return func(w *Worker) { w.batchSize = batchSize }
}

// WithMaxAttempts: сколько раз публиковать событие, прежде чем отметить его failed.
func WithMaxAttempts(maxAttempts int) Option {
	return func(w *Worker) { w.maxAttempts = maxAttempts }
}

// WithRetryBaseDelay: задержка перед второй попыткой, дальше она удваивается.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) { w.retryBaseDelay = delay }
}

func WithPublishTimeout(timeout time.Duration) Option {
	return func(w *Worker) { w.publishTimeout = timeout }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// NewWorker создаёт воркер. Неположительные параметры заменяются значениями по умолчанию.
func NewWorker(queue domain.OutboxQueue, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		queue:          queue,
		publisher:      publisher,
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		publishTimeout: defaultPublishTimeout,
	}
	for _, option := range options {
		option(w)
	}

	if w.logger == nil {
		w.logger = log.WithField("component", "outbox-worker")
	}
	if w.metrics == nil {
		w.metrics = metrics.NewOutboxMetrics()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.retryBaseDelay < 0 {
		w.retryBaseDelay = 0
	}
	if w.publishTimeout <= 0 {
		w.publishTimeout = defaultPublishTimeout
	}
	return w
}

// Run опрашивает outbox каждые pollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.queue == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: queue or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce публикует одну порцию и возвращает число событий, отмеченных sent.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	w.refreshBacklog(ctx)

	batch, err := w.queue.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return 0
	}
	if len(batch) == 0 {
		return 0
	}

	sent := 0
	for _, event := range batch {
		if ctx.Err() != nil {
			break
		}
		if w.deliver(ctx, event) {
			sent++
		}
	}

	w.refreshBacklog(ctx)
	return sent
}

// deliver публикует событие и закрывает его в очереди.
// Исчерпав попытки, отправляет конверт в DLQ и помечает событие failed.
func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) bool {
	logger := w.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	})

	publishErr := w.publishWithRetry(ctx, event)
	if publishErr == nil {
		if err := w.queue.MarkSent(ctx, event.ID); err != nil {
			logger.WithError(err).Warn("failed to mark outbox message as sent")
			return false
		}
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	logger.WithError(publishErr).Error("outbox publish failed after retries")
	w.metrics.RecordAttempt(metrics.PublishFailed)

	if err := w.publishToDLQ(ctx, event, publishErr); err != nil {
		logger.WithError(err).Warn("failed to publish to DLQ")
		w.metrics.RecordAttempt(metrics.PublishDLQFailed)
	}
	if err := w.queue.MarkFailed(ctx, event.ID); err != nil {
		logger.WithError(err).Warn("failed to mark outbox message as failed")
	}
	return false
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if attempt > 1 {
			if delay := w.retryBackoff(attempt - 1); delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		}

		start := time.Now()
		lastErr = w.publishTo(ctx, w.publisher, event)
		w.metrics.ObservePublish(event.EventType, time.Since(start))
		if lastErr == nil {
			w.metrics.RecordAttempt(metrics.PublishSent)
			return nil
		}
		w.metrics.RecordAttempt(metrics.PublishRetryError)
	}
	return fmt.Errorf("%w after %d attempts: %w", domain.ErrOutboxPublish, w.maxAttempts, lastErr)
}

// retryBackoff возвращает паузу после неудачной попытки attempt: base * 2^(attempt-1).
func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}
	const ceiling = time.Duration(1<<63 - 1)
	delay := w.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > ceiling/2 {
			return ceiling
		}
		delay *= 2
	}
	return delay
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	stats, err := w.queue.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	var age time.Duration
	if !stats.OldestPendingAt.IsZero() {
		age = w.now().Sub(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}

// deadLetter: конверт события, ушедшего в DLQ.
type deadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

func (w *Worker) publishToDLQ(ctx context.Context, event domain.OutboxMessage, publishErr error) error {
	if w.dlqPublisher == nil {
		return nil
	}

	envelope, err := json.Marshal(deadLetter{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishError:  publishErr.Error(),
		FailedAt:      w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq envelope: %w", err)
	}

	dead := event
	dead.Payload = envelope
	if err := w.publishTo(ctx, w.dlqPublisher, dead); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

func (w *Worker) publishTo(ctx context.Context, publisher domain.OutboxPublisher, event domain.OutboxMessage) error {
	attemptCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()
	return publisher.Publish(attemptCtx, event)
}
