package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgerrcode.ForeignKeyViolation
}

// mapError переводит ошибки драйвера в доменные. Исходная ошибка остаётся в цепочке.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	switch pgErrorCode(err) {
	case pgerrcode.LockNotAvailable, pgerrcode.QueryCanceled:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTimeout, err)
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTransactionFailure, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
