package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
)

// ExpiredPurger удаляет до limit ключей с TTL не позже before.
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// CleanupWorker освобождает просроченные Idempotency-Key, чтобы клиент мог переиспользовать ключ.
type CleanupWorker struct {
	repo      ExpiredPurger
	logger    *log.Entry
	metrics   *metrics.CleanupMetrics
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

func WithLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) { w.logger = logger }
}

func WithMetrics(m *metrics.CleanupMetrics) CleanupOption {
	return func(w *CleanupWorker) { w.metrics = m }
}

// WithInterval задаёт паузу между циклами очистки.
func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) { w.interval = interval }
}

// WithBatchSize задаёт размер порции одного DELETE.
func WithBatchSize(batchSize int) CleanupOption {
	return func(w *CleanupWorker) { w.batchSize = batchSize }
}

// WithClock подменяет часы, от которых считается граница TTL.
func WithClock(now func() time.Time) CleanupOption {
	return func(w *CleanupWorker) { w.now = now }
}

func NewCleanupWorker(repo ExpiredPurger, options ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		repo:      repo,
		interval:  defaultCleanupInterval,
		batchSize: defaultCleanupBatchSize,
	}
	for _, option := range options {
		option(w)
	}

	if w.logger == nil {
		w.logger = log.WithField("component", "idempotency-cleanup")
	}
	if w.metrics == nil {
		w.metrics = metrics.NewCleanupMetrics()
	}
	if w.interval <= 0 {
		w.interval = defaultCleanupInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultCleanupBatchSize
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Run чистит ключи сразу и затем каждые interval, пока ctx не отменён.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, time.Time{})
	if errors.Is(err, context.Canceled) {
		return
	}
	w.metrics.RecordRun(err, deleted)

	entry := w.logger.WithField("deleted", deleted)
	switch {
	case err != nil:
		entry.WithError(err).Warn("idempotency cleanup run failed")
	case deleted > 0:
		entry.Info("expired idempotency keys removed")
	default:
		entry.Debug("no expired idempotency keys")
	}
}

// DeleteExpired удаляет порциями все ключи с TTL не позже before.
// Нулевой before означает текущее время. Возвращает число удалённых даже при ошибке.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.now().UTC()
	}

	total := 0
	for ctx.Err() == nil {
		deleted, err := w.repo.DeleteExpired(ctx, before, w.batchSize)
		total += deleted
		w.metrics.RecordDeleted(deleted)
		if err != nil {
			return total, err
		}
		if deleted < w.batchSize {
			return total, nil
		}
	}
	return total, ctx.Err()
}
