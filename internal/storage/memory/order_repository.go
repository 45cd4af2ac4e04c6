package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// orderRepository работает с заказами в рамках memoryTx.
type orderRepository struct {
	tx *memoryTx
}

// Insert сохраняет новый заказ. Клиент и поставщик должны существовать.
func (r orderRepository) Insert(ctx context.Context, order domain.SpecialOrder) (domain.OrderID, error) {
	if err := ctx.Err(); err != nil {
		return 0, mapContextError(err)
	}

	s := r.tx.store
	s.mu.RLock()
	_, clientOK := s.clients[order.ClientID]
	_, supplierOK := s.suppliers[order.SupplierID]
	s.mu.RUnlock()
	if !clientOK || !supplierOK {
		return 0, domain.ErrPartyNotFound
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.StatusChangedAt.IsZero() {
		order.StatusChangedAt = order.CreatedAt
	}
	order.ID = domain.OrderID(s.nextOrderID.Add(1))

	r.tx.staged[order.ID] = cloneOrder(order)
	return order.ID, nil
}

// Get возвращает заказ с учётом изменений текущей транзакции.
func (r orderRepository) Get(ctx context.Context, id domain.OrderID) (domain.SpecialOrder, error) {
	if err := ctx.Err(); err != nil {
		return domain.SpecialOrder{}, mapContextError(err)
	}
	if order, ok := r.tx.staged[id]; ok {
		return cloneOrder(order), nil
	}

	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.SpecialOrder{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetForUpdate захватывает блокировку заказа до конца транзакции и читает его.
func (r orderRepository) GetForUpdate(ctx context.Context, id domain.OrderID) (domain.SpecialOrder, error) {
	if err := r.lockExisting(ctx, id); err != nil {
		return domain.SpecialOrder{}, err
	}
	return r.Get(ctx, id)
}

// UpdateStatus меняет статус и причину отмены, не трогая поля оплаты.
func (r orderRepository) UpdateStatus(ctx context.Context, id domain.OrderID, upd domain.StatusUpdate) (domain.SpecialOrder, error) {
	if err := r.lockExisting(ctx, id); err != nil {
		return domain.SpecialOrder{}, err
	}
	order, err := r.Get(ctx, id)
	if err != nil {
		return domain.SpecialOrder{}, err
	}

	order.Status = upd.Status
	order.CancellationReason = cloneReason(upd.CancellationReason)
	order.StatusChangedAt = latest(order.StatusChangedAt, upd.ChangedAt)

	r.tx.staged[id] = order
	return cloneOrder(order), nil
}

// UpdatePayment записывает оплату, остаток и статус одним изменением.
func (r orderRepository) UpdatePayment(ctx context.Context, id domain.OrderID, upd domain.PaymentUpdate) (domain.SpecialOrder, error) {
	if err := r.lockExisting(ctx, id); err != nil {
		return domain.SpecialOrder{}, err
	}
	order, err := r.Get(ctx, id)
	if err != nil {
		return domain.SpecialOrder{}, err
	}

	order.AmountPaid = upd.AmountPaid
	order.AmountRemaining = upd.AmountRemaining
	order.Status = upd.Status
	order.StatusChangedAt = latest(order.StatusChangedAt, upd.ChangedAt)

	r.tx.staged[id] = order
	return cloneOrder(order), nil
}

// lockExisting блокирует только существующие заказы, чтобы не плодить семафоры.
func (r orderRepository) lockExisting(ctx context.Context, id domain.OrderID) error {
	if _, ok := r.tx.staged[id]; !ok {
		s := r.tx.store
		s.mu.RLock()
		_, exists := s.orders[id]
		s.mu.RUnlock()
		if !exists {
			return domain.ErrOrderNotFound
		}
	}
	return r.tx.lock(ctx, id)
}

func latest(current, next time.Time) time.Time {
	if next.After(current) {
		return next
	}
	return current
}

func cloneReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	value := *reason
	return &value
}

func cloneOrder(order domain.SpecialOrder) domain.SpecialOrder {
	order.CancellationReason = cloneReason(order.CancellationReason)
	return order
}

var _ domain.OrderRepository = orderRepository{}
