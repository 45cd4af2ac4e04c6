package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// OutboxRepository: in-memory хранилище для transactional outbox.
// Сообщения выдаются в порядке постановки.
type OutboxRepository struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*outboxRecord
}

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{records: make(map[string]*outboxRecord)}
}

// Enqueue сохраняет событие со статусом `pending` вне транзакции.
func (r *OutboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxMessage{}, mapContextError(err)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	r.put(msg)
	return msg, nil
}

func (r *OutboxRepository) put(msg domain.OutboxMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if _, exists := r.records[msg.ID]; !exists {
		r.order = append(r.order, msg.ID)
	}
	r.records[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    outboxStatusPending,
		createdAt: now,
		updatedAt: now,
	}
}

// PullPending возвращает до limit сообщений со статусом `pending`.
func (r *OutboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapContextError(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.OutboxMessage, 0, limit)
	for _, id := range r.order {
		rec := r.records[id]
		if rec.status != outboxStatusPending {
			continue
		}
		result = append(result, rec.msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *OutboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxStats{}, mapContextError(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	for _, rec := range r.records {
		if rec.status != outboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxStatusFailed)
}

func (r *OutboxRepository) mark(ctx context.Context, id, status string) error {
	if err := ctx.Err(); err != nil {
		return mapContextError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	return nil
}

// AllPending возвращает копию всех сообщений со статусом `pending` (используется в тестах).
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.OutboxMessage, 0, len(r.records))
	for _, id := range r.order {
		if rec := r.records[id]; rec.status == outboxStatusPending {
			result = append(result, rec.msg)
		}
	}
	return result
}

// txOutbox откладывает сообщения до фиксации транзакции.
type txOutbox struct {
	tx *memoryTx
}

func (o txOutbox) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxMessage{}, mapContextError(err)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	o.tx.messages = append(o.tx.messages, msg)
	return msg, nil
}

var (
	_ domain.OutboxRepository = (*OutboxRepository)(nil)
	_ domain.OutboxQueue      = (*OutboxRepository)(nil)
	_ domain.OutboxRepository = txOutbox{}
)
