package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// querier: общий набор методов *sql.DB, *sql.Conn и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithinTx открывает транзакцию READ COMMITTED, выполняет fn и фиксирует её.
// При ошибке или панике fn транзакция откатывается; паника пробрасывается дальше.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: %w", domain.ErrTransactionFailure, errStoreNotInitialized)
	}

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError("begin tx", wrapTxFailure(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.WithError(rbErr).WithField("component", "postgres-tx").Warn("rollback failed")
			}
		}
	}()

	if s.lockTimeout > 0 {
		// SET LOCAL не принимает параметры, значение формируется из time.Duration.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err = sqlTx.ExecContext(ctx, stmt); err != nil {
			return mapError("set lock_timeout", err)
		}
	}

	if err = fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return mapError("commit tx", wrapTxFailure(err))
	}
	return nil
}

func wrapTxFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransactionFailure, err)
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Parties() domain.PartyRepository {
	return partyRepository{q: t.tx}
}

func (t *pgTx) Orders() domain.OrderRepository {
	return orderRepository{q: t.tx}
}

func (t *pgTx) Timeline() domain.TimelineRepository {
	return timelineRepository{q: t.tx}
}

func (t *pgTx) Outbox() domain.OutboxRepository {
	return outboxWriter{q: t.tx}
}

var (
	_ domain.UnitOfWork = (*Store)(nil)
	_ domain.Tx         = (*pgTx)(nil)
	_ domain.Pinger     = (*Store)(nil)
)
