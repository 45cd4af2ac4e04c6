package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
	"github.com/vladislavdragonenkov/specialorders/internal/metrics"
	"github.com/vladislavdragonenkov/specialorders/internal/service/party"
)

const (
	operationCreate        = "create"
	operationTransition    = "transition_status"
	operationUpdatePayment = "update_payment"
)

// Option настраивает Manager.
type Option func(*Manager)

// WithLogger задаёт логгер менеджера.
func WithLogger(logger *log.Entry) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics включает запись метрик операций.
func WithMetrics(recorder *metrics.LifecycleMetrics) Option {
	return func(m *Manager) {
		m.metrics = recorder
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPolicy задаёт политику ручных переходов статуса.
func WithPolicy(policy domain.TransitionPolicy) Option {
	return func(m *Manager) {
		m.policy = policy
	}
}

// Manager выполняет мутации спецзаказа. Каждая операция идёт в одной транзакции:
// заказ, запись журнала и outbox-событие фиксируются вместе или не фиксируются вовсе.
type Manager struct {
	uow     domain.UnitOfWork
	logger  *log.Entry
	metrics *metrics.LifecycleMetrics
	now     func() time.Time
	policy  domain.TransitionPolicy
}

// NewManager создаёт менеджер жизненного цикла поверх UnitOfWork.
func NewManager(uow domain.UnitOfWork, options ...Option) *Manager {
	m := &Manager{
		uow:    uow,
		logger: log.New().WithField("component", "lifecycle"),
		now:    func() time.Time { return time.Now().UTC() },
		policy: domain.PermissivePolicy(),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Create оформляет спецзаказ. Стороны ищутся по имени в той же транзакции,
// что и вставка, поэтому ненайденная сторона не оставляет строк.
func (m *Manager) Create(ctx context.Context, in domain.CreateOrderInput) (domain.OrderID, error) {
	start := time.Now()
	defer m.observe(operationCreate, start)

	in = in.Normalize()
	logger := m.logger.WithFields(log.Fields{
		"operation":       operationCreate,
		"client_nom":      in.ClientName,
		"fournisseur_nom": in.SupplierName,
	})
	// Суммы попадают в лог только после проверки их размера.
	if err := in.Validate(); err != nil {
		return 0, m.fail(logger, operationCreate, err)
	}
	logger = logger.WithFields(log.Fields{
		"prix_vente_client": in.PriceAgreed.String(),
		"montant_paye":      in.OpeningPaid.String(),
	})
	rec, err := domain.Derive(in.PriceAgreed, in.OpeningPaid)
	if err != nil {
		return 0, m.fail(logger, operationCreate, err)
	}

	var created domain.SpecialOrder
	err = m.uow.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		resolver := party.NewResolver(tx.Parties(), m.logger)
		clientID, err := resolver.ResolveClient(ctx, in.ClientName)
		if err != nil {
			return err
		}
		supplierID, err := resolver.ResolveSupplier(ctx, in.SupplierName)
		if err != nil {
			return err
		}

		now := m.now()
		order := domain.SpecialOrder{
			ClientID:        clientID,
			SupplierID:      supplierID,
			Item:            in.Item,
			SupplierCost:    in.SupplierCost,
			PriceAgreed:     in.PriceAgreed,
			AmountPaid:      in.OpeningPaid,
			AmountRemaining: rec.Remaining,
			Status:          rec.Status,
			CreatedAt:       now,
			StatusChangedAt: now,
		}
		id, err := tx.Orders().Insert(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id

		if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
			OrderID:   id,
			Type:      domain.TimelineOrderCreated,
			ToStatus:  order.Status,
			PaidAfter: order.AmountPaid,
			Occurred:  now,
		}); err != nil {
			return err
		}
		if err := enqueueEvent(ctx, tx, domain.EventOrderCreated, order, "", ""); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return 0, m.fail(logger, operationCreate, err)
	}

	if m.metrics != nil {
		m.metrics.RecordCreated()
	}
	logger.WithFields(log.Fields{
		"order_id": created.ID,
		"statut":   created.Status,
	}).Info("special order created")
	return created.ID, nil
}

// TransitionStatus выставляет статус вручную. Поля оплаты не меняются,
// причина отмены сохраняется только для статуса annulé.
func (m *Manager) TransitionStatus(ctx context.Context, id domain.OrderID, to domain.Status, reason *string) (domain.SpecialOrder, error) {
	start := time.Now()
	defer m.observe(operationTransition, start)

	logger := m.logger.WithFields(log.Fields{
		"operation": operationTransition,
		"order_id":  id,
		"statut":    to,
	})

	if !to.Valid() {
		return domain.SpecialOrder{}, m.fail(logger, operationTransition, domain.NewValidationError("statut", "unknown status "+string(to)))
	}

	var (
		before  domain.SpecialOrder
		updated domain.SpecialOrder
		kind    domain.TransitionKind
	)
	err := m.uow.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		kind, err = m.policy.Check(current, to)
		if err != nil {
			return err
		}

		var kept *string
		if to == domain.StatusCancelled && reason != nil {
			value := *reason
			kept = &value
		}

		now := m.now()
		updated, err = tx.Orders().UpdateStatus(ctx, id, domain.StatusUpdate{
			Status:             to,
			CancellationReason: kept,
			ChangedAt:          now,
		})
		if err != nil {
			return err
		}

		event := domain.TimelineEvent{
			OrderID:    id,
			Type:       domain.TimelineStatusChanged,
			FromStatus: current.Status,
			ToStatus:   updated.Status,
			Kind:       kind,
			PaidBefore: current.AmountPaid,
			PaidAfter:  updated.AmountPaid,
			Occurred:   updated.StatusChangedAt,
		}
		if kept != nil {
			event.Reason = *kept
		}
		if err := tx.Timeline().Append(ctx, event); err != nil {
			return err
		}
		if err := enqueueEvent(ctx, tx, domain.EventStatusChanged, updated, current.Status, kind); err != nil {
			return err
		}

		before = current
		return nil
	})
	if err != nil {
		return domain.SpecialOrder{}, m.fail(logger, operationTransition, err)
	}

	m.recordTransition(logger, before, updated, kind, "status transition applied")
	return updated, nil
}

// UpdatePayment пересчитывает остаток и статус под блокировкой строки.
// В ручных статусах оплата заморожена до возврата заказа в платёжное семейство.
func (m *Manager) UpdatePayment(ctx context.Context, id domain.OrderID, amountPaid decimal.Decimal) (domain.SpecialOrder, error) {
	start := time.Now()
	defer m.observe(operationUpdatePayment, start)

	// Непредставимая сумма отклоняется до форматирования в лог и до блокировки строки.
	if err := domain.CheckAmount("montant_paye", amountPaid); err != nil {
		rejected := m.logger.WithFields(log.Fields{"operation": operationUpdatePayment, "order_id": id})
		return domain.SpecialOrder{}, m.fail(rejected, operationUpdatePayment, err)
	}

	logger := m.logger.WithFields(log.Fields{
		"operation":        operationUpdatePayment,
		"order_id":         id,
		"new_montant_paye": amountPaid.String(),
	})

	var (
		before  domain.SpecialOrder
		updated domain.SpecialOrder
	)
	err := m.uow.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.PaymentTracked() {
			return fmt.Errorf("%w: order %d is %q", domain.ErrPaymentFrozen, id, current.Status)
		}

		rec, err := domain.Derive(current.PriceAgreed, amountPaid)
		if err != nil {
			return err
		}

		updated, err = tx.Orders().UpdatePayment(ctx, id, domain.PaymentUpdate{
			AmountPaid:      amountPaid,
			AmountRemaining: rec.Remaining,
			Status:          rec.Status,
			ChangedAt:       m.now(),
		})
		if err != nil {
			return err
		}

		kind := domain.ClassifyPaymentChange(current.Status, updated.Status)
		if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
			OrderID:    id,
			Type:       domain.TimelinePaymentUpdated,
			FromStatus: current.Status,
			ToStatus:   updated.Status,
			Kind:       kind,
			PaidBefore: current.AmountPaid,
			PaidAfter:  updated.AmountPaid,
			Occurred:   updated.StatusChangedAt,
		}); err != nil {
			return err
		}
		if err := enqueueEvent(ctx, tx, domain.EventPaymentUpdated, updated, current.Status, kind); err != nil {
			return err
		}

		before = current
		return nil
	})
	if err != nil {
		return domain.SpecialOrder{}, m.fail(logger, operationUpdatePayment, err)
	}

	if m.metrics != nil {
		m.metrics.RecordPaymentUpdate(updated.Status.String())
	}
	kind := domain.ClassifyPaymentChange(before.Status, updated.Status)
	m.recordTransition(logger.WithField("montant_paye_before", before.AmountPaid.String()), before, updated, kind, "payment updated")
	return updated, nil
}

func (m *Manager) recordTransition(logger *log.Entry, before, after domain.SpecialOrder, kind domain.TransitionKind, message string) {
	if m.metrics != nil && before.Status != after.Status {
		m.metrics.RecordTransition(before.Status.String(), after.Status.String(), string(kind))
	}

	entry := logger.WithFields(log.Fields{
		"statut_before":   before.Status,
		"statut_after":    after.Status,
		"transition_kind": kind,
		"montant_paye":    after.AmountPaid.String(),
		"montant_restant": after.AmountRemaining.String(),
	})
	if kind.Audited() {
		entry.Warn(message + ": " + string(kind))
		return
	}
	entry.Info(message)
}

func (m *Manager) fail(logger *log.Entry, operation string, err error) error {
	if m.metrics != nil {
		m.metrics.RecordFailure(operation, domain.ErrorKind(err))
	}

	entry := logger.WithError(err).WithField("error_kind", domain.ErrorKind(err))
	switch domain.ErrorKind(err) {
	case "internal", "transaction", "timeout":
		entry.Error("special order operation failed")
	default:
		entry.Warn("special order operation rejected")
	}
	return err
}

func (m *Manager) observe(operation string, start time.Time) {
	if m.metrics != nil {
		m.metrics.RecordDuration(operation, time.Since(start))
	}
}

func enqueueEvent(ctx context.Context, tx domain.Tx, eventType string, order domain.SpecialOrder, previous domain.Status, kind domain.TransitionKind) error {
	payload, err := json.Marshal(domain.NewOrderEvent(order, previous, kind))
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	_, err = tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateSpecialOrder,
		AggregateID:   order.ID.AggregateKey(),
		EventType:     eventType,
		Payload:       payload,
	})
	return err
}
