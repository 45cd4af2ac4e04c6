package domain

import (
	"context"
	"time"
)

// Типы событий outbox для спецзаказов.
const (
	EventOrderCreated   = "special_order.created"
	EventStatusChanged  = "special_order.status_changed"
	EventPaymentUpdated = "special_order.payment_updated"

	AggregateSpecialOrder = "special_order"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxRepository сохраняет события в транзакции изменения заказа.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// OutboxQueue используется воркером для вычитки и отметки сообщений.
type OutboxQueue interface {
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
// CreateProcessing атомарно занимает новый, просроченный или упавший с 5xx ключ
// (см. IdempotencyRecord.Reclaimable). Из конкурирующих запросов ключ получает только один.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
