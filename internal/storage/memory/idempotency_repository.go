package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// IdempotencyRepository хранит ключи идемпотентности POST /api/special-orders в памяти процесса.
type IdempotencyRepository struct {
	mu      sync.RWMutex
	records map[string]domain.IdempotencyRecord
	now     func() time.Time
}

// IdempotencyOption настраивает IdempotencyRepository.
type IdempotencyOption func(*IdempotencyRepository)

// WithIdempotencyClock подменяет часы для проверок TTL.
func WithIdempotencyClock(now func() time.Time) IdempotencyOption {
	return func(r *IdempotencyRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewIdempotencyRepository создаёт пустое хранилище ключей.
func NewIdempotencyRepository(options ...IdempotencyOption) *IdempotencyRepository {
	r := &IdempotencyRepository{
		records: make(map[string]domain.IdempotencyRecord),
		now:     time.Now,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// CreateProcessing занимает ключ под запрос с данным хешем.
// Живой ключ возвращается вместе с ошибкой конфликта. Просроченный ключ или ключ,
// упавший с 5xx на том же запросе, занимается заново под мьютексом.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.IdempotencyRecord{}, mapContextError(err)
	}
	record, err := domain.NewProcessingRecord(key, requestHash, r.now().UTC(), ttlAt)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.records[record.Key]; ok && !current.Expired(record.CreatedAt) && !current.Reclaimable(record.RequestHash) {
		return copyRecord(current), current.Conflict(record.RequestHash)
	}

	r.records[record.Key] = record
	return copyRecord(record), nil
}

// Get возвращает запись по ключу.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.IdempotencyRecord{}, mapContextError(err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return copyRecord(record), nil
}

// MarkDone сохраняет успешный ответ для повторов.
func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

// MarkFailed сохраняет ответ с ошибкой.
func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// DeleteExpired удаляет до limit ключей с TTL не позже before, начиная с самых старых.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, mapContextError(err)
	}
	if before.IsZero() {
		before = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expired := make([]domain.IdempotencyRecord, 0)
	for _, record := range r.records {
		if !record.TTLAt.After(before) {
			expired = append(expired, record)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].TTLAt.Before(expired[j].TTLAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	for _, record := range expired {
		delete(r.records, record.Key)
	}
	return len(expired), nil
}

func (r *IdempotencyRepository) finish(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	if err := ctx.Err(); err != nil {
		return mapContextError(err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	record.Status = status
	record.ResponseBody = append([]byte(nil), responseBody...)
	record.HTTPStatus = httpStatus
	record.UpdatedAt = r.now().UTC()
	r.records[key] = record
	return nil
}

func copyRecord(src domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := src
	dst.ResponseBody = append([]byte(nil), src.ResponseBody...)
	return dst
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
