package messaging

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// LogPublisher пишет outbox-события в лог. Используется, когда брокер не настроен,
// чтобы outbox не копил pending-сообщения в локальной среде.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт паблишер в лог.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LogPublisher{logger: logger}
}

// Publish логирует событие на уровне Info.
func (p *LogPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
		"payload":      string(event.Payload),
	}).Info("special order event")
	return nil
}

var _ domain.OutboxPublisher = (*LogPublisher)(nil)
