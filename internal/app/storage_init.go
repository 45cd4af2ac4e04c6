package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
	"github.com/vladislavdragonenkov/specialorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/specialorders/internal/storage/postgres"
)

// runtimeDependencies: порты хранилища, выбранные по драйверу.
type runtimeDependencies struct {
	uow             domain.UnitOfWork
	readModel       domain.ReadModel
	pinger          domain.Pinger
	outboxQueue     domain.OutboxQueue
	idempotencyRepo domain.IdempotencyRepository
	close           func() error
}

func (d runtimeDependencies) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		return initMemoryStorage(cfg, logger), nil
	case StorageDriverPostgres:
		return initPostgresStorage(ctx, cfg, logger)
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initMemoryStorage(cfg Config, logger *log.Entry) runtimeDependencies {
	store := memory.NewStore(memory.WithLockTimeout(cfg.LockTimeout))

	clients := 0
	for _, entry := range splitList(cfg.MemoryClients) {
		name, phone, _ := strings.Cut(entry, ":")
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		store.AddClient(name, strings.TrimSpace(phone))
		clients++
	}
	suppliers := 0
	for _, name := range splitList(cfg.MemorySuppliers) {
		store.AddSupplier(name)
		suppliers++
	}

	logger.WithFields(log.Fields{
		"driver":    StorageDriverMemory,
		"clients":   clients,
		"suppliers": suppliers,
	}).Info("storage initialized")

	return runtimeDependencies{
		uow:             store,
		readModel:       store,
		pinger:          store,
		outboxQueue:     store.Outbox(),
		idempotencyRepo: memory.NewIdempotencyRepository(),
	}
}

func initPostgresStorage(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return runtimeDependencies{}, fmt.Errorf("%s is required for postgres storage", EnvPostgresDSN)
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithLockTimeout(cfg.LockTimeout))
	if err != nil {
		return runtimeDependencies{}, fmt.Errorf("open postgres storage: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		applied, err := store.MigrateUp(ctx, 0)
		if err != nil {
			_ = store.Close()
			return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
		}
		for _, m := range applied {
			logger.WithFields(log.Fields{
				"version": m.Version,
				"name":    m.Name,
			}).Info("migration applied")
		}
	}

	logger.WithFields(log.Fields{
		"driver":       StorageDriverPostgres,
		"auto_migrate": cfg.PostgresAutoMigrate,
		"lock_timeout": cfg.LockTimeout.String(),
	}).Info("storage initialized")

	return runtimeDependencies{
		uow:             store,
		readModel:       store,
		pinger:          store,
		outboxQueue:     postgres.NewOutboxRepository(store),
		idempotencyRepo: postgres.NewIdempotencyRepository(store),
		close:           store.Close,
	}, nil
}
