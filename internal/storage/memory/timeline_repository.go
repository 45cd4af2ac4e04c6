package memory

import (
	"context"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// timelineRepository копит события журнала до фиксации транзакции.
type timelineRepository struct {
	tx *memoryTx
}

// Append добавляет событие в транзакцию.
func (r timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if err := ctx.Err(); err != nil {
		return mapContextError(err)
	}
	r.tx.events = append(r.tx.events, event)
	return nil
}

var _ domain.TimelineRepository = timelineRepository{}
