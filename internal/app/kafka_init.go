package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
	"github.com/vladislavdragonenkov/specialorders/internal/messaging"
	"github.com/vladislavdragonenkov/specialorders/internal/messaging/kafka"
)

// outboxSinks описывает, куда outbox-воркер отдаёт события и сообщения DLQ.
type outboxSinks struct {
	producer *kafka.Producer
	events   domain.OutboxPublisher
	dlq      domain.OutboxPublisher
}

// openOutboxSinks подключается к Kafka, если брокеры заданы.
// Недоступная Kafka не останавливает сервис: события уходят в лог, DLQ выключен.
func openOutboxSinks(cfg Config, logger *log.Entry) outboxSinks {
	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		return sinksFor(nil, cfg, logger)
	}

	producer, err := kafka.NewProducer(brokers,
		kafka.WithProducerLogger(logger.WithField("component", "kafka-producer")),
	)
	if err != nil {
		logger.WithError(err).WithField("brokers", brokers).Warn("kafka unavailable, outbox events go to log")
		return sinksFor(nil, cfg, logger)
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return sinksFor(producer, cfg, logger)
}

func sinksFor(producer *kafka.Producer, cfg Config, logger *log.Entry) outboxSinks {
	if producer == nil {
		return outboxSinks{events: messaging.NewLogPublisher(logger.WithField("component", "outbox-log-publisher"))}
	}
	return outboxSinks{
		producer: producer,
		events:   kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		dlq:      kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic),
	}
}

// Close закрывает producer. Без Kafka ничего не делает.
func (s outboxSinks) Close(logger *log.Entry) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
