package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const defaultClientID = "special-orders"

var errProducerClosed = errors.New("kafka producer is not initialized")

// Message: уже сериализованное сообщение для отправки.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// ProducerOption настраивает Producer.
type ProducerOption func(*producerSettings)

type producerSettings struct {
	clientID string
	retryMax int
	logger   *log.Entry
}

func WithClientID(id string) ProducerOption {
	return func(s *producerSettings) {
		if id != "" {
			s.clientID = id
		}
	}
}

// WithRetryMax задаёт число повторов sarama на уровне брокера.
// Идемпотентный producer требует хотя бы одного повтора.
func WithRetryMax(n int) ProducerOption {
	return func(s *producerSettings) {
		if n > 0 {
			s.retryMax = n
		}
	}
}

func WithProducerLogger(logger *log.Entry) ProducerOption {
	return func(s *producerSettings) { s.logger = logger }
}

// Producer отправляет события спецзаказов синхронно и ждёт подтверждения всех реплик.
type Producer struct {
	client sarama.SyncProducer
	logger *log.Entry
}

// NewProducer подключается к брокерам. Ошибка означает, что ни один брокер недоступен.
func NewProducer(brokers []string, options ...ProducerOption) (*Producer, error) {
	settings := producerSettings{clientID: defaultClientID, retryMax: 5}
	for _, option := range options {
		option(&settings)
	}

	client, err := sarama.NewSyncProducer(brokers, saramaConfig(settings))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(client, settings.logger), nil
}

// saramaConfig: идемпотентная запись с acks=all.
// Ключ сообщения выбирает партицию, поэтому события одного заказа не переупорядочиваются.
func saramaConfig(s producerSettings) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = s.clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = s.retryMax
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func newProducer(client sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{client: client, logger: logger}
}

// Send отправляет сообщение и возвращает ошибку брокера как есть в цепочке.
func (p *Producer) Send(ctx context.Context, msg Message) error {
	if p == nil || p.client == nil {
		return errProducerClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Key:       sarama.StringEncoder(msg.Key),
		Value:     sarama.ByteEncoder(msg.Value),
		Timestamp: time.Now(),
	}
	for name, value := range msg.Headers {
		record.Headers = append(record.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(value)})
	}

	fields := log.Fields{"topic": msg.Topic, "key": msg.Key}
	partition, offset, err := p.client.SendMessage(record)
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", msg.Topic, err)
	}

	fields["partition"], fields["offset"] = partition, offset
	p.logger.WithFields(fields).Debug("kafka message acknowledged")
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
