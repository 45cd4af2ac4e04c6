package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

const idempotencyColumns = `key, request_hash, response_body, http_status, status, ttl_at, created_at, updated_at`

// Вставка проходит, если ключа нет, его TTL истёк к моменту запроса или тот же запрос
// упал с 5xx. Строка под ON CONFLICT блокируется, поэтому повтор занимает ключ один раз.
const claimIdempotencyKeySQL = `
INSERT INTO idempotency_keys (` + idempotencyColumns + `)
VALUES ($1, $2, NULL, NULL, $3, $4, $5, $5)
ON CONFLICT (key) DO UPDATE
SET request_hash  = EXCLUDED.request_hash,
    response_body = NULL,
    http_status   = NULL,
    status        = EXCLUDED.status,
    ttl_at        = EXCLUDED.ttl_at,
    created_at    = EXCLUDED.created_at,
    updated_at    = EXCLUDED.updated_at
WHERE idempotency_keys.ttl_at <= EXCLUDED.created_at
   OR (idempotency_keys.status = 'failed'
       AND idempotency_keys.http_status >= 500
       AND idempotency_keys.request_hash = EXCLUDED.request_hash)
RETURNING ` + idempotencyColumns

// IdempotencyRepository хранит ключи идемпотентности в таблице idempotency_keys.
type IdempotencyRepository struct {
	db  *sql.DB
	now func() time.Time
}

// IdempotencyOption настраивает IdempotencyRepository.
type IdempotencyOption func(*IdempotencyRepository)

// WithIdempotencyClock подменяет часы, от которых считаются created_at и TTL.
func WithIdempotencyClock(now func() time.Time) IdempotencyOption {
	return func(r *IdempotencyRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewIdempotencyRepository создаёт репозиторий поверх пула store.
func NewIdempotencyRepository(store *Store, options ...IdempotencyOption) *IdempotencyRepository {
	r := &IdempotencyRepository{db: store.DB(), now: time.Now}
	for _, option := range options {
		option(r)
	}
	return r
}

// CreateProcessing занимает ключ. Если живой ключ уже есть, возвращает его вместе с
// ErrIdempotencyKeyAlreadyExists или ErrIdempotencyHashMismatch.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	claim, err := domain.NewProcessingRecord(key, requestHash, r.now().UTC(), ttlAt)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, claimIdempotencyKeySQL,
		claim.Key, claim.RequestHash, string(claim.Status), claim.TTLAt, claim.CreatedAt)
	record, err := scanIdempotencyRecord(row)
	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return r.conflict(ctx, claim)
	default:
		return domain.IdempotencyRecord{}, mapError("claim idempotency key", err)
	}
}

// conflict читает занятый ключ и классифицирует конфликт по хешу запроса.
func (r *IdempotencyRepository) conflict(ctx context.Context, claim domain.IdempotencyRecord) (domain.IdempotencyRecord, error) {
	existing, err := r.Get(ctx, claim.Key)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("%w: %w", domain.ErrIdempotencyKeyAlreadyExists, err)
	}
	return existing, existing.Conflict(claim.RequestHash)
}

// Get читает запись по ключу.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+idempotencyColumns+` FROM idempotency_keys WHERE key = $1`, key)
	record, err := scanIdempotencyRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, mapError("get idempotency key", err)
	}
	return record, nil
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// DeleteExpired удаляет просроченные ключи от самых старых. limit<=0 снимает ограничение.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now().UTC()
	}
	if limit < 0 {
		limit = 0
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// LIMIT NULL в PostgreSQL означает отсутствие лимита.
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys
		WHERE key IN (
			SELECT key FROM idempotency_keys
			WHERE ttl_at <= $1
			ORDER BY ttl_at
			LIMIT NULLIF($2::bigint, 0)
		)`, before, limit)
	if err != nil {
		return 0, mapError("delete expired idempotency keys", err)
	}
	return rowsAffected(res)
}

func (r *IdempotencyRepository) finish(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET status = $2, response_body = $3, http_status = $4, updated_at = $5
		WHERE key = $1`,
		key, string(status), responseBody, httpStatus, r.now().UTC())
	if err != nil {
		return mapError("finish idempotency key", err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func scanIdempotencyRecord(row rowScanner) (domain.IdempotencyRecord, error) {
	var (
		record     domain.IdempotencyRecord
		status     string
		body       []byte
		httpStatus sql.NullInt64
	)
	if err := row.Scan(&record.Key, &record.RequestHash, &body, &httpStatus, &status,
		&record.TTLAt, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return domain.IdempotencyRecord{}, err
	}

	record.Status = domain.IdempotencyStatus(status)
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("idempotency key %s has unknown status %q", record.Key, status)
	}
	record.ResponseBody = append([]byte(nil), body...)
	if httpStatus.Valid {
		record.HTTPStatus = int(httpStatus.Int64)
	}
	return record, nil
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
