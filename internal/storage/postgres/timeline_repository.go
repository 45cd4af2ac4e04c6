package postgres

import (
	"context"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

type timelineRepository struct {
	q querier
}

// Append пишет событие журнала в текущей транзакции.
func (r timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO special_order_timeline (
			order_id, event_type, from_status, to_status, transition_kind,
			paid_before, paid_after, reason, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		int64(event.OrderID),
		string(event.Type),
		nullString(string(event.FromStatus)),
		string(event.ToStatus),
		nullString(string(event.Kind)),
		event.PaidBefore,
		event.PaidAfter,
		nullString(event.Reason),
		event.Occurred,
	)
	return mapError("append timeline event", err)
}

var _ domain.TimelineRepository = timelineRepository{}
