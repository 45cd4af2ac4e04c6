package domain

import (
	"strconv"
	"time"
)

// OrderEvent: полезная нагрузка outbox-событий спецзаказа.
// Денежные поля сериализуются строками, чтобы не терять точность.
type OrderEvent struct {
	OrderID         OrderID        `json:"order_id"`
	ClientID        ClientID       `json:"client_id"`
	SupplierID      SupplierID     `json:"fournisseur_id"`
	Status          Status         `json:"statut"`
	PreviousStatus  Status         `json:"previous_statut,omitempty"`
	Kind            TransitionKind `json:"transition_kind,omitempty"`
	PriceAgreed     string         `json:"prix_vente_client"`
	AmountPaid      string         `json:"montant_paye"`
	AmountRemaining string         `json:"montant_restant"`
	Reason          string         `json:"raison_annulation,omitempty"`
	OccurredAt      time.Time      `json:"occurred_at"`
}

// NewOrderEvent заполняет событие по состоянию заказа после изменения.
func NewOrderEvent(order SpecialOrder, previous Status, kind TransitionKind) OrderEvent {
	event := OrderEvent{
		OrderID:         order.ID,
		ClientID:        order.ClientID,
		SupplierID:      order.SupplierID,
		Status:          order.Status,
		PreviousStatus:  previous,
		Kind:            kind,
		PriceAgreed:     order.PriceAgreed.StringFixed(2),
		AmountPaid:      order.AmountPaid.StringFixed(2),
		AmountRemaining: order.AmountRemaining.StringFixed(2),
		OccurredAt:      order.StatusChangedAt,
	}
	if order.CancellationReason != nil {
		event.Reason = *order.CancellationReason
	}
	return event
}

// AggregateKey возвращает идентификатор агрегата для outbox и ключа партиции.
func (id OrderID) AggregateKey() string {
	return strconv.FormatInt(int64(id), 10)
}
