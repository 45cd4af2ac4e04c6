package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/app"
	"github.com/vladislavdragonenkov/specialorders/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		log.SetLevel(log.InfoLevel)
		return errors.New("unsupported log format " + format + ", using text")
	}

	parsed, err := parseLevel(level)
	log.SetLevel(parsed)
	return err
}

// parseLevel разбирает уровень логирования, при ошибке возвращает info.
func parseLevel(raw string) (log.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(raw)
	if err != nil {
		return log.InfoLevel, err
	}
	return level, nil
}

func main() {
	cfg, warnings := app.LoadConfigFromEnv()
	if err := setupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.WithError(err).Warn("некорректные настройки логирования")
	}
	for _, warning := range warnings {
		log.Warnf("config: %s", warning)
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"strict":       cfg.StrictTransitions,
	}).WithFields(version.Fields()).Info("запускаем сервис спецзаказов")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("сервис спецзаказов остановлен")
}
