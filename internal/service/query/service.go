package query

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// Service отдаёт read-only представления спецзаказов. Блокировки не берутся,
// достаточно изоляции read committed.
type Service struct {
	read   domain.ReadModel
	logger *log.Entry
}

// NewService создаёт сервис чтения.
func NewService(read domain.ReadModel, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "query")
	}
	return &Service{read: read, logger: logger}
}

// ListAll возвращает все заказы с именами сторон, новые первыми.
func (s *Service) ListAll(ctx context.Context) ([]domain.OrderView, error) {
	views, err := s.read.ListViews(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to list special orders")
		return nil, fmt.Errorf("list special orders: %w", err)
	}
	if views == nil {
		views = []domain.OrderView{}
	}
	return views, nil
}

// CountsByStatus возвращает количество заказов по каждому статусу, включая нулевые.
func (s *Service) CountsByStatus(ctx context.Context) (map[domain.Status]int, error) {
	counts, err := s.read.CountByStatus(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to count special orders by status")
		return nil, fmt.Errorf("count special orders by status: %w", err)
	}

	result := make(map[domain.Status]int, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		result[status] = counts[status]
	}
	return result, nil
}

// Timeline возвращает журнал изменений заказа в порядке записи.
func (s *Service) Timeline(ctx context.Context, id domain.OrderID) ([]domain.TimelineEvent, error) {
	exists, err := s.read.Exists(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", id).Error("failed to check special order")
		return nil, fmt.Errorf("check special order %d: %w", id, err)
	}
	if !exists {
		return nil, domain.ErrOrderNotFound
	}

	events, err := s.read.ListTimeline(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", id).Error("failed to load timeline")
		return nil, fmt.Errorf("load timeline of special order %d: %w", id, err)
	}
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return events, nil
}
