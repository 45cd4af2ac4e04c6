package domain

import (
	"strings"
	"time"
)

// DefaultIdempotencyTTL: сколько хранится ключ, если срок не передан явно.
const DefaultIdempotencyTTL = 24 * time.Hour

// Ответ с этим кодом и выше не фиксируется: тот же запрос может занять ключ повторно.
const idempotencyRetryStatus = 500

// IdempotencyStatus: стадия обработки запроса с ключом идемпотентности.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	IdempotencyStatusDone       IdempotencyStatus = "done"
	IdempotencyStatusFailed     IdempotencyStatus = "failed"
)

// Valid сообщает, известен ли статус хранилищу.
func (s IdempotencyStatus) Valid() bool {
	return s == IdempotencyStatusProcessing || s == IdempotencyStatusDone || s == IdempotencyStatusFailed
}

// IdempotencyRecord связывает ключ повторного POST с хешем тела и сохранённым ответом.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewProcessingRecord нормализует ключ и хеш и строит запись в статусе processing.
// Нулевой ttlAt заменяется на now+DefaultIdempotencyTTL.
func NewProcessingRecord(key, requestHash string, now, ttlAt time.Time) (IdempotencyRecord, error) {
	key, requestHash = strings.TrimSpace(key), strings.TrimSpace(requestHash)
	if key == "" {
		return IdempotencyRecord{}, ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return IdempotencyRecord{}, ErrIdempotencyRequestHashRequired
	}
	if ttlAt.IsZero() {
		ttlAt = now.Add(DefaultIdempotencyTTL)
	}
	return IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Completed: ответ сохранён и его можно вернуть повторно.
func (r IdempotencyRecord) Completed() bool {
	return r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed
}

// Expired сообщает, истёк ли TTL к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.IsZero() && !r.TTLAt.After(now)
}

// Reclaimable: запрос с тем же хешем может занять ключ заново, потому что предыдущая
// попытка завершилась ошибкой сервера.
func (r IdempotencyRecord) Reclaimable(requestHash string) bool {
	return r.Status == IdempotencyStatusFailed &&
		r.HTTPStatus >= idempotencyRetryStatus &&
		r.RequestHash == strings.TrimSpace(requestHash)
}

// Conflict возвращает ошибку для повторного занятия живого ключа запросом с хешем requestHash.
func (r IdempotencyRecord) Conflict(requestHash string) error {
	if r.RequestHash != strings.TrimSpace(requestHash) {
		return ErrIdempotencyHashMismatch
	}
	return ErrIdempotencyKeyAlreadyExists
}
