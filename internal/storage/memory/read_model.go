package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// ListViews возвращает снимок зафиксированных заказов, новые первыми.
func (s *Store) ListViews(ctx context.Context) ([]domain.OrderView, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapContextError(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.OrderView, 0, len(s.orders))
	for _, order := range s.orders {
		client := s.clients[order.ClientID]
		result = append(result, domain.OrderView{
			Order:        cloneOrder(order),
			ClientName:   client.name,
			ClientPhone:  client.phone,
			SupplierName: s.suppliers[order.SupplierID].name,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Order, result[j].Order
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	return result, nil
}

// CountByStatus возвращает количество заказов по каждому статусу, включая нули.
func (s *Store) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapContextError(err)
	}

	counts := make(map[domain.Status]int, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		counts[status] = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, order := range s.orders {
		if _, known := counts[order.Status]; known {
			counts[order.Status]++
		}
	}
	return counts, nil
}

// Exists проверяет наличие зафиксированного заказа.
func (s *Store) Exists(ctx context.Context, id domain.OrderID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, mapContextError(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.orders[id]
	return ok, nil
}

// ListTimeline возвращает события заказа в хронологическом порядке.
func (s *Store) ListTimeline(ctx context.Context, id domain.OrderID) ([]domain.TimelineEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapContextError(err)
	}

	s.mu.RLock()
	events := s.timeline[id]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Occurred.Before(result[j].Occurred)
	})
	return result, nil
}
