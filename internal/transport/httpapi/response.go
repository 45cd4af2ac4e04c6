package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// OrderResponse: строка special_orders в формате ответа.
type OrderResponse struct {
	ID                 domain.OrderID    `json:"id"`
	ClientID           domain.ClientID   `json:"client_id"`
	SupplierID         domain.SupplierID `json:"fournisseur_id"`
	Brand              string            `json:"marque"`
	Model              string            `json:"modele"`
	Storage            string            `json:"stockage"`
	Type               string            `json:"type"`
	PackagingType      string            `json:"type_carton"`
	DeviceID           string            `json:"imei"`
	SupplierCost       string            `json:"prix_achat_fournisseur"`
	PriceAgreed        string            `json:"prix_vente_client"`
	AmountPaid         string            `json:"montant_paye"`
	AmountRemaining    string            `json:"montant_restant"`
	Status             domain.Status     `json:"statut"`
	CancellationReason *string           `json:"raison_annulation"`
	CreatedAt          time.Time         `json:"date_commande"`
	StatusChangedAt    time.Time         `json:"date_statut_change"`
}

// OrderViewResponse: элемент списка заказов с именами сторон.
type OrderViewResponse struct {
	OrderID            domain.OrderID `json:"order_id"`
	Brand              string         `json:"marque"`
	Model              string         `json:"modele"`
	Storage            string         `json:"stockage"`
	Type               string         `json:"type"`
	PackagingType      string         `json:"type_carton"`
	DeviceID           string         `json:"imei"`
	SupplierCost       string         `json:"prix_achat_fournisseur"`
	PriceAgreed        string         `json:"prix_vente_client"`
	AmountPaid         string         `json:"montant_paye"`
	AmountRemaining    string         `json:"montant_restant"`
	CreatedAt          time.Time      `json:"date_commande"`
	Status             domain.Status  `json:"statut"`
	CancellationReason *string        `json:"raison_annulation"`
	StatusChangedAt    time.Time      `json:"date_statut_change"`
	SoldAt             time.Time      `json:"date_vente"`
	ClientName         string         `json:"client_nom"`
	ClientPhone        string         `json:"client_telephone"`
	SupplierName       string         `json:"fournisseur_nom"`
}

// TimelineEventResponse: запись журнала заказа.
type TimelineEventResponse struct {
	Type       domain.TimelineEventType `json:"type"`
	FromStatus domain.Status            `json:"statut_before,omitempty"`
	ToStatus   domain.Status            `json:"statut_after"`
	Kind       domain.TransitionKind    `json:"transition_kind,omitempty"`
	PaidBefore string                   `json:"montant_paye_before"`
	PaidAfter  string                   `json:"montant_paye_after"`
	Reason     string                   `json:"raison_annulation,omitempty"`
	OccurredAt time.Time                `json:"occurred_at"`
}

type createOrderResponse struct {
	Message string         `json:"message"`
	OrderID domain.OrderID `json:"order_id"`
}

type updateOrderResponse struct {
	Message      string        `json:"message"`
	UpdatedOrder OrderResponse `json:"updatedOrder"`
}

func newOrderResponse(order domain.SpecialOrder) OrderResponse {
	return OrderResponse{
		ID:                 order.ID,
		ClientID:           order.ClientID,
		SupplierID:         order.SupplierID,
		Brand:              order.Item.Brand,
		Model:              order.Item.Model,
		Storage:            order.Item.Storage,
		Type:               order.Item.Type,
		PackagingType:      order.Item.PackagingType,
		DeviceID:           order.Item.DeviceID,
		SupplierCost:       order.SupplierCost.StringFixed(2),
		PriceAgreed:        order.PriceAgreed.StringFixed(2),
		AmountPaid:         order.AmountPaid.StringFixed(2),
		AmountRemaining:    order.AmountRemaining.StringFixed(2),
		Status:             order.Status,
		CancellationReason: order.CancellationReason,
		CreatedAt:          order.CreatedAt,
		StatusChangedAt:    order.StatusChangedAt,
	}
}

func newOrderViewResponse(view domain.OrderView) OrderViewResponse {
	order := view.Order
	return OrderViewResponse{
		OrderID:            order.ID,
		Brand:              order.Item.Brand,
		Model:              order.Item.Model,
		Storage:            order.Item.Storage,
		Type:               order.Item.Type,
		PackagingType:      order.Item.PackagingType,
		DeviceID:           order.Item.DeviceID,
		SupplierCost:       order.SupplierCost.StringFixed(2),
		PriceAgreed:        order.PriceAgreed.StringFixed(2),
		AmountPaid:         order.AmountPaid.StringFixed(2),
		AmountRemaining:    order.AmountRemaining.StringFixed(2),
		CreatedAt:          order.CreatedAt,
		Status:             order.Status,
		CancellationReason: order.CancellationReason,
		StatusChangedAt:    order.StatusChangedAt,
		SoldAt:             view.SoldAt(),
		ClientName:         view.ClientName,
		ClientPhone:        view.ClientPhone,
		SupplierName:       view.SupplierName,
	}
}

func newTimelineEventResponse(event domain.TimelineEvent) TimelineEventResponse {
	return TimelineEventResponse{
		Type:       event.Type,
		FromStatus: event.FromStatus,
		ToStatus:   event.ToStatus,
		Kind:       event.Kind,
		PaidBefore: event.PaidBefore.StringFixed(2),
		PaidAfter:  event.PaidAfter.StringFixed(2),
		Reason:     event.Reason,
		OccurredAt: event.Occurred,
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Error("failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.WithError(err).Warn("failed to write JSON response")
	}
}
