package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Переменные окружения сервиса.
const (
	EnvHTTPAddr                    = "SO_HTTP_ADDR"
	EnvMetricsAddr                 = "SO_METRICS_ADDR"
	EnvGRPCAddr                    = "SO_GRPC_ADDR"
	EnvStorageDriver               = "SO_STORAGE_DRIVER"
	EnvPostgresDSN                 = "SO_POSTGRES_DSN"
	EnvPostgresAutoMigrate         = "SO_POSTGRES_AUTO_MIGRATE"
	EnvLockTimeout                 = "SO_LOCK_TIMEOUT"
	EnvStrictTransitions           = "SO_STRICT_TRANSITIONS"
	EnvKafkaBrokers                = "SO_KAFKA_BROKERS"
	EnvKafkaTopic                  = "SO_KAFKA_TOPIC"
	EnvKafkaDLQTopic               = "SO_KAFKA_DLQ_TOPIC"
	EnvOutboxPollInterval          = "SO_OUTBOX_POLL_INTERVAL"
	EnvOutboxBatchSize             = "SO_OUTBOX_BATCH_SIZE"
	EnvOutboxMaxAttempts           = "SO_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxRetryDelay            = "SO_OUTBOX_RETRY_DELAY"
	EnvOutboxMaxPendingAge         = "SO_OUTBOX_MAX_PENDING_AGE"
	EnvIdempotencyCleanupInterval  = "SO_IDEMPOTENCY_CLEANUP_INTERVAL"
	EnvIdempotencyCleanupBatchSize = "SO_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	EnvMemoryClients               = "SO_MEMORY_CLIENTS"
	EnvMemorySuppliers             = "SO_MEMORY_SUPPLIERS"
	EnvLogLevel                    = "SO_LOG_LEVEL"
	EnvLogFormat                   = "SO_LOG_FORMAT"
)

// Config описывает настройки запуска сервиса спецзаказов.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	GRPCAddr    string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// LockTimeout ограничивает ожидание блокировки строки заказа.
	LockTimeout       time.Duration
	StrictTransitions bool

	KafkaBrokers  string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	OutboxMaxAttempts   int
	OutboxRetryDelay    time.Duration
	OutboxMaxPendingAge time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	// MemoryClients: клиенты для in-memory драйвера: "Имя:телефон,Имя".
	MemoryClients string
	// MemorySuppliers: поставщики для in-memory драйвера через запятую.
	MemorySuppliers string

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		GRPCAddr:                    ":50051",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		LockTimeout:                 5 * time.Second,
		KafkaTopic:                  "special_orders.events",
		KafkaDLQTopic:               "special_orders.dlq",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxMaxPendingAge:         5 * time.Minute,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		LogLevel:                    "info",
		LogFormat:                   "text",
	}
}

// EnvLookup читает переменную окружения.
type EnvLookup func(key string) (string, bool)

// LoadConfigFromEnv подгружает .env, если он есть, и читает конфигурацию из окружения.
// Уже выставленные переменные окружения .env не перезаписывает.
func LoadConfigFromEnv() (Config, []string) {
	var warnings []string
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf(".env: %v", err))
	}
	cfg, parseWarnings := ReadConfig(os.LookupEnv)
	return cfg, append(warnings, parseWarnings...)
}

// ReadConfig строит конфигурацию поверх DefaultConfig.
// Некорректные значения не прерывают запуск: остаётся значение по умолчанию,
// а в warnings попадает описание проблемы.
func ReadConfig(lookup EnvLookup) (Config, []string) {
	cfg := DefaultConfig()
	var warnings []string

	warn := func(key string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
	}

	readString(lookup, EnvHTTPAddr, &cfg.HTTPAddr)
	readString(lookup, EnvMetricsAddr, &cfg.MetricsAddr)
	readString(lookup, EnvGRPCAddr, &cfg.GRPCAddr)
	if v, ok := lookupTrimmed(lookup, EnvStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	readString(lookup, EnvPostgresDSN, &cfg.PostgresDSN)
	readString(lookup, EnvKafkaBrokers, &cfg.KafkaBrokers)
	readString(lookup, EnvKafkaTopic, &cfg.KafkaTopic)
	readString(lookup, EnvKafkaDLQTopic, &cfg.KafkaDLQTopic)
	readString(lookup, EnvMemoryClients, &cfg.MemoryClients)
	readString(lookup, EnvMemorySuppliers, &cfg.MemorySuppliers)
	readString(lookup, EnvLogLevel, &cfg.LogLevel)
	readString(lookup, EnvLogFormat, &cfg.LogFormat)

	boolFields := []struct {
		key string
		dst *bool
	}{
		{EnvPostgresAutoMigrate, &cfg.PostgresAutoMigrate},
		{EnvStrictTransitions, &cfg.StrictTransitions},
	}
	for _, field := range boolFields {
		if v, ok := lookupTrimmed(lookup, field.key); ok {
			parsed, err := parseBool(v)
			if err != nil {
				warn(field.key, err)
				continue
			}
			*field.dst = parsed
		}
	}

	positive := func(v int) bool { return v > 0 }
	intFields := []struct {
		key string
		dst *int
	}{
		{EnvOutboxBatchSize, &cfg.OutboxBatchSize},
		{EnvOutboxMaxAttempts, &cfg.OutboxMaxAttempts},
		{EnvIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize},
	}
	for _, field := range intFields {
		if v, ok := lookupTrimmed(lookup, field.key); ok {
			parsed, err := parseInt(v, positive, "must be > 0")
			if err != nil {
				warn(field.key, err)
				continue
			}
			*field.dst = parsed
		}
	}

	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }
	durationFields := []struct {
		key      string
		dst      *time.Duration
		valid    func(time.Duration) bool
		validMsg string
	}{
		{EnvLockTimeout, &cfg.LockTimeout, nonNegativeDuration, "must be >= 0"},
		{EnvOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0"},
		{EnvOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0"},
		{EnvOutboxMaxPendingAge, &cfg.OutboxMaxPendingAge, positiveDuration, "must be > 0"},
		{EnvIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0"},
	}
	for _, field := range durationFields {
		if v, ok := lookupTrimmed(lookup, field.key); ok {
			parsed, err := parseDuration(v, field.valid, field.validMsg)
			if err != nil {
				warn(field.key, err)
				continue
			}
			*field.dst = parsed
		}
	}

	return cfg, warnings
}

// Validate проверяет согласованность настроек перед запуском.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("%s is required for storage driver %q", EnvPostgresDSN, c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%s must not be empty", EnvHTTPAddr)
	}
	return nil
}

// KafkaBrokerList разбирает список брокеров.
func (c Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func readString(lookup EnvLookup, key string, dst *string) {
	if v, ok := lookupTrimmed(lookup, key); ok {
		*dst = v
	}
}

func lookupTrimmed(lookup EnvLookup, key string) (string, bool) {
	if lookup == nil {
		return "", false
	}
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, validMsg string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid int value %q: %s", raw, validMsg)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, validMsg string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid duration value %q: %s", raw, validMsg)
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
