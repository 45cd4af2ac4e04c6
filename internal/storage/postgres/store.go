package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const applicationName = "special-orders"

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// poolConfig: параметры database/sql пула поверх pgx.
type poolConfig struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
	pingTimeout time.Duration
}

func defaultPoolConfig() poolConfig {
	return poolConfig{
		maxOpen:     25,
		maxIdle:     25,
		maxLifetime: 30 * time.Minute,
		maxIdleTime: 5 * time.Minute,
		pingTimeout: 5 * time.Second,
	}
}

// Store держит пул соединений и реализует UnitOfWork, ReadModel и справочник участников.
type Store struct {
	db          *sql.DB
	pool        poolConfig
	lockTimeout time.Duration
}

// Option настраивает Store до открытия пула.
type Option func(*Store)

// WithLockTimeout задаёт SET LOCAL lock_timeout для каждой транзакции.
// Ноль оставляет значение сервера.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = timeout
	}
}

// WithMaxConns ограничивает число открытых и простаивающих соединений.
func WithMaxConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pool.maxOpen, s.pool.maxIdle = n, n
		}
	}
}

// Open разбирает DSN через pgx, открывает пул и проверяет доступность базы.
func Open(ctx context.Context, dsn string, options ...Option) (*Store, error) {
	store := &Store{pool: defaultPoolConfig()}
	for _, option := range options {
		option(store)
	}

	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := connConfig.RuntimeParams["application_name"]; !ok {
		connConfig.RuntimeParams["application_name"] = applicationName
	}

	db := stdlib.OpenDB(*connConfig)
	db.SetMaxOpenConns(store.pool.maxOpen)
	db.SetMaxIdleConns(store.pool.maxIdle)
	db.SetConnMaxLifetime(store.pool.maxLifetime)
	db.SetConnMaxIdleTime(store.pool.maxIdleTime)
	store.db = db

	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB отдаёт пул репозиториям вне транзакций.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет соединение с базой, используется readiness-проверкой.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	pingCtx, cancel := context.WithTimeout(ctx, s.pool.pingTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все ожидающие up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.MigrateUp(ctx, 0)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
