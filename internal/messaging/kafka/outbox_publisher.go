package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в один топик.
// Ключом сообщения служит идентификатор заказа.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт паблишер. Пустой topic означает TopicSpecialOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicSpecialOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic, now: time.Now}
}

// Topic возвращает топик назначения.
func (p *OutboxTopicPublisher) Topic() string { return p.topic }

// Publish заворачивает событие в Envelope и отправляет его.
func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	msg, err := p.encode(event)
	if err != nil {
		return err
	}
	return p.producer.Send(ctx, msg)
}

func (p *OutboxTopicPublisher) encode(event domain.OutboxMessage) (Message, error) {
	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	value, err := json.Marshal(Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   p.now().UTC(),
	})
	if err != nil {
		return Message{}, fmt.Errorf("encode %s envelope: %w", event.EventType, err)
	}

	return Message{
		Topic: p.topic,
		Key:   key,
		Value: value,
		Headers: map[string]string{
			HeaderEventType:     event.EventType,
			HeaderOutboxID:      event.ID,
			HeaderAggregateType: event.AggregateType,
		},
	}, nil
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
