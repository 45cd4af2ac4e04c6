package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// Значения outbox_messages.status.
const (
	outboxPending = "pending"
	outboxSent    = "sent"
	outboxFailed  = "failed"
)

const defaultOutboxPullLimit = 100

// outboxWriter кладёт событие заказа в outbox_messages внутри транзакции UnitOfWork.
type outboxWriter struct {
	q querier
}

func (w outboxWriter) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := w.q.ExecContext(ctx, `
		INSERT INTO outbox_messages
			(id, aggregate_type, aggregate_id, event_type, payload, status, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, outboxPending, now)
	if err != nil {
		return domain.OutboxMessage{}, mapError("enqueue "+msg.EventType, err)
	}
	return msg, nil
}

// OutboxQueue отдаёт воркеру публикации ожидающие события в порядке записи.
type OutboxQueue struct {
	db *sql.DB
}

// NewOutboxRepository создаёт очередь поверх пула store.
func NewOutboxRepository(store *Store) *OutboxQueue {
	return &OutboxQueue{db: store.DB()}
}

func (q *OutboxQueue) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxPullLimit
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2`, outboxPending, limit)
	if err != nil {
		return nil, mapError("pull pending outbox", err)
	}
	defer rows.Close()

	var batch []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		batch = append(batch, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate outbox", err)
	}
	return batch, nil
}

// Stats считает backlog для health-проверки и метрик воркера.
func (q *OutboxQueue) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = $1`, outboxPending,
	).Scan(&stats.PendingCount, &oldest)
	if err != nil {
		return domain.OutboxStats{}, mapError("outbox stats", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (q *OutboxQueue) MarkSent(ctx context.Context, id string) error {
	return q.settle(ctx, id, outboxSent)
}

func (q *OutboxQueue) MarkFailed(ctx context.Context, id string) error {
	return q.settle(ctx, id, outboxFailed)
}

// settle закрывает сообщение и увеличивает счётчик попыток.
func (q *OutboxQueue) settle(ctx context.Context, id, status string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := q.db.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $2, attempt_count = attempt_count + 1, updated_at = $3
		WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return mapError("mark outbox "+status, err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: outbox message %s not found", domain.ErrOutboxPublish, id)
	}
	return nil
}

var (
	_ domain.OutboxRepository = outboxWriter{}
	_ domain.OutboxQueue      = (*OutboxQueue)(nil)
)
