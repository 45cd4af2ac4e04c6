package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TimelineEventType: тип записи в журнале заказа.
type TimelineEventType string

const (
	TimelineOrderCreated   TimelineEventType = "OrderCreated"
	TimelineStatusChanged  TimelineEventType = "StatusChanged"
	TimelinePaymentUpdated TimelineEventType = "PaymentUpdated"
)

// TimelineEvent фиксирует состояние заказа до и после изменения.
type TimelineEvent struct {
	OrderID    OrderID
	Type       TimelineEventType
	FromStatus Status
	ToStatus   Status
	Kind       TransitionKind
	PaidBefore decimal.Decimal
	PaidAfter  decimal.Decimal
	Reason     string
	Occurred   time.Time
}

// TimelineRepository хранит журнал изменений в той же транзакции, что и заказ.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
}
