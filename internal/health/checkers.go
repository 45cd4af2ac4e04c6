package health

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// NewStorageChecker проверяет доступность шлюза хранения.
func NewStorageChecker(pinger domain.Pinger) *SimpleChecker {
	return NewSimpleChecker("storage", pinger.Ping)
}

// OutboxBacklogChecker переводит сервис в degraded, если outbox не разгребается.
type OutboxBacklogChecker struct {
	stats     func(ctx context.Context) (domain.OutboxStats, error)
	maxAge    time.Duration
	now       func() time.Time
	component string
}

// NewOutboxBacklogChecker создаёт проверку возраста самого старого pending-события.
func NewOutboxBacklogChecker(queue domain.OutboxQueue, maxAge time.Duration) *OutboxBacklogChecker {
	return &OutboxBacklogChecker{
		stats:     queue.Stats,
		maxAge:    maxAge,
		now:       time.Now,
		component: "outbox",
	}
}

// Check возвращает degraded при старом backlog и unhealthy при ошибке чтения статистики.
func (c *OutboxBacklogChecker) Check(ctx context.Context) Check {
	start := c.now()
	stats, err := c.stats(ctx)
	check := Check{
		Name:       c.component,
		Status:     StatusHealthy,
		DurationMs: c.now().Sub(start).Milliseconds(),
	}

	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		return check
	}
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() || c.maxAge <= 0 {
		return check
	}
	if age := c.now().Sub(stats.OldestPendingAt); age > c.maxAge {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("%d pending events, oldest is %s old", stats.PendingCount, age.Truncate(time.Second))
	}
	return check
}
