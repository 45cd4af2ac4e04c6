package kafka

import (
	"encoding/json"
	"time"
)

// Топики событий спецзаказов.
const (
	TopicSpecialOrderEvents = "special_orders.events"
	TopicDeadLetterQueue    = "special_orders.dlq"
)

// Заголовки Kafka-сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderAggregateType = "x-aggregate-type"
)

// Envelope: конверт outbox-события в топике.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}
