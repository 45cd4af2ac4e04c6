package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation: отсутствующие или некорректные входные данные.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidPayment: сумма оплаты отрицательная, нечисловая или больше цены.
	ErrInvalidPayment = errors.New("invalid payment")
	// ErrNotFound: общий признак отсутствующей сущности.
	ErrNotFound = errors.New("not found")
	// ErrOrderNotFound возвращается, если спецзаказ не найден.
	ErrOrderNotFound = fmt.Errorf("special order %w", ErrNotFound)
	// ErrPartyNotFound возвращается, если клиент или поставщик не найден по имени.
	ErrPartyNotFound = fmt.Errorf("party %w", ErrNotFound)
	// ErrInvalidTransition: переход статуса отклонён таблицей переходов.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPaymentFrozen: оплата заморожена, пока заказ в ручном статусе.
	ErrPaymentFrozen = errors.New("payment is frozen in the current status")
	// ErrTransactionFailure: ошибка begin/commit/rollback или захвата блокировки.
	ErrTransactionFailure = errors.New("transaction failure")
	// ErrTimeout: шлюз хранения не уложился в таймаут; запрос можно повторить.
	ErrTimeout = errors.New("storage timeout")

	// ErrIdempotencyKeyRequired: пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists: ключ уже использован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound: ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError описывает некорректное поле запроса.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError создаёт ошибку валидации поля.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// PaymentError сообщает отклонённую сумму и допустимый потолок.
type PaymentError struct {
	Field   string
	Value   decimal.Decimal
	Ceiling decimal.Decimal
	Raw     string
	Reason  string
}

func (e *PaymentError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Raw != "" {
		return fmt.Sprintf("%s: %q is not a number", e.Field, e.Raw)
	}
	if e.Field == "prix_vente_client" {
		return fmt.Sprintf("%s: price %s must be greater than 0", e.Field, e.Value.String())
	}
	return fmt.Sprintf("%s: amount paid (%s) must be between 0 and the order price (%s)",
		e.Field, e.Value.String(), e.Ceiling.String())
}

func (e *PaymentError) Unwrap() error {
	return ErrInvalidPayment
}

// PartyKind различает клиента и поставщика.
type PartyKind string

const (
	PartyClient   PartyKind = "client"
	PartySupplier PartyKind = "supplier"
)

// PartyNotFoundError возвращается резолвером, если имя не найдено.
type PartyNotFoundError struct {
	Kind PartyKind
	Name string
}

func (e *PartyNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *PartyNotFoundError) Unwrap() error {
	return ErrPartyNotFound
}

// IsRetryable сообщает, можно ли повторить операцию без изменений.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsIdempotencyConflict проверяет конфликт idempotency-key.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// ErrorKind возвращает короткую метку ошибки для метрик и логов.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidPayment):
		return "invalid_payment"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPartyNotFound):
		return "party_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrPaymentFrozen):
		return "payment_frozen"
	case IsRetryable(err):
		return "timeout"
	case errors.Is(err, ErrTransactionFailure):
		return "transaction"
	default:
		return "internal"
	}
}
