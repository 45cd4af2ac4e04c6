package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// OrderLifecycle: мутации спецзаказа.
type OrderLifecycle interface {
	Create(ctx context.Context, in domain.CreateOrderInput) (domain.OrderID, error)
	TransitionStatus(ctx context.Context, id domain.OrderID, to domain.Status, reason *string) (domain.SpecialOrder, error)
	UpdatePayment(ctx context.Context, id domain.OrderID, amountPaid decimal.Decimal) (domain.SpecialOrder, error)
}

// OrderQueries: чтение списка, статистики и журнала.
type OrderQueries interface {
	ListAll(ctx context.Context) ([]domain.OrderView, error)
	CountsByStatus(ctx context.Context) (map[domain.Status]int, error)
	Timeline(ctx context.Context, id domain.OrderID) ([]domain.TimelineEvent, error)
}

// Handler обслуживает REST API спецзаказов.
type Handler struct {
	lifecycle OrderLifecycle
	queries   OrderQueries
	validate  *validator.Validate
	logger    *log.Entry
}

// NewHandler создаёт обработчик API.
func NewHandler(lifecycle OrderLifecycle, queries OrderQueries, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{
		lifecycle: lifecycle,
		queries:   queries,
		validate:  newValidator(),
		logger:    logger,
	}
}

// RegisterRoutes регистрирует маршруты. Middleware идемпотентности
// применяется только к созданию заказа.
func (h *Handler) RegisterRoutes(router chi.Router, idempotent func(http.Handler) http.Handler) {
	router.Route("/api/special-orders", func(r chi.Router) {
		r.Get("/", h.handleList)
		if idempotent != nil {
			r.With(idempotent).Post("/", h.handleCreate)
		} else {
			r.Post("/", h.handleCreate)
		}
		r.Put("/{id}/update-status", h.handleUpdateStatus)
		r.Put("/{id}/update-payment", h.handleUpdatePayment)
		r.Get("/{id}/timeline", h.handleTimeline)
	})
	router.Get("/api/special-orders-stats", h.handleStats)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.queries.ListAll(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list special orders")
		respondWithDomainError(w, err, "failed to list special orders")
		return
	}

	response := make([]OrderViewResponse, 0, len(views))
	for _, view := range views {
		response = append(response, newOrderViewResponse(view))
	}
	respondWithJSON(w, http.StatusOK, response)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var request CreateOrderRequest
	if err := decodeJSON(r, &request); err != nil {
		respondWithDomainError(w, err, "invalid request payload")
		return
	}
	if !h.validateRequest(w, request) {
		return
	}

	input, err := request.ToInput()
	if err != nil {
		respondWithDomainError(w, err, "invalid request payload")
		return
	}

	id, err := h.lifecycle.Create(r.Context(), input)
	if err != nil {
		respondWithDomainError(w, err, "failed to create special order")
		return
	}

	respondWithJSON(w, http.StatusCreated, createOrderResponse{
		Message: "special order created",
		OrderID: id,
	})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var request UpdateStatusRequest
	if err := decodeJSON(r, &request); err != nil {
		respondWithDomainError(w, err, "invalid request payload")
		return
	}
	if !h.validateRequest(w, request) {
		return
	}

	status, err := domain.ParseStatus(request.Status)
	if err != nil {
		respondWithDomainError(w, err, "invalid request payload")
		return
	}

	updated, err := h.lifecycle.TransitionStatus(r.Context(), id, status, request.CancellationReason)
	if err != nil {
		respondWithDomainError(w, err, "failed to update special order status")
		return
	}

	respondWithJSON(w, http.StatusOK, updateOrderResponse{
		Message:      "special order status updated",
		UpdatedOrder: newOrderResponse(updated),
	})
}

func (h *Handler) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var request UpdatePaymentRequest
	if err := decodeJSON(r, &request); err != nil {
		respondWithDomainError(w, err, "invalid request payload")
		return
	}
	if !request.AmountPaid.IsSet() {
		respondWithDomainError(w, domain.NewValidationError("new_montant_paye", "is required"), "invalid request payload")
		return
	}
	amount, err := request.AmountPaid.Decimal("new_montant_paye")
	if err != nil {
		respondWithDomainError(w, err, "invalid request payload")
		return
	}

	updated, err := h.lifecycle.UpdatePayment(r.Context(), id, amount)
	if err != nil {
		respondWithDomainError(w, err, "failed to update special order payment")
		return
	}

	respondWithJSON(w, http.StatusOK, updateOrderResponse{
		Message:      "special order payment updated",
		UpdatedOrder: newOrderResponse(updated),
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queries.CountsByStatus(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to count special orders by status")
		respondWithDomainError(w, err, "failed to load special order stats")
		return
	}

	response := make(map[string]int, len(counts))
	for status, count := range counts {
		response[status.String()] = count
	}
	respondWithJSON(w, http.StatusOK, response)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	events, err := h.queries.Timeline(r.Context(), id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WithError(err).WithField("order_id", id).Error("failed to load special order timeline")
		}
		respondWithDomainError(w, err, "failed to load special order timeline")
		return
	}

	response := make([]TimelineEventResponse, 0, len(events))
	for _, event := range events {
		response = append(response, newTimelineEventResponse(event))
	}
	respondWithJSON(w, http.StatusOK, response)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (domain.OrderID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.logger.WithField("order_id", raw).Warn("invalid order id in path")
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return domain.OrderID(id), true
}

func (h *Handler) validateRequest(w http.ResponseWriter, request any) bool {
	err := h.validate.Struct(request)
	if err == nil {
		return true
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "validation failed",
			Details: formatValidationErrors(validationErrors),
		})
		return false
	}

	h.logger.WithError(err).Error("unexpected validation error")
	respondWithError(w, http.StatusInternalServerError, "internal validation error")
	return false
}
