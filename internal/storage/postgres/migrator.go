package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Ключ advisory lock, под которым схему мигрирует только один процесс.
const specialOrdersMigrationLock = int64(0x5350_4f52)

const schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

var migrationFileName = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

func (m migration) body(direction migrationDirection) string {
	if direction == migrationDown {
		return m.DownSQL
	}
	return m.UpSQL
}

func (m migration) label() string {
	return fmt.Sprintf("%d_%s", m.Version, m.Name)
}

// AppliedMigration описывает миграцию, применённую или откаченную за вызов.
type AppliedMigration struct {
	Version   int64
	Name      string
	Direction string
}

// MigrationState: текущая версия схемы и миграции, которые ещё не применены.
type MigrationState struct {
	Version int64
	Applied int
	Pending []AppliedMigration
}

// MigrateUp применяет up-миграции и возвращает список применённых.
// steps=0 применяет все ожидающие.
func (s *Store) MigrateUp(ctx context.Context, steps int) ([]AppliedMigration, error) {
	return s.migrate(ctx, migrationUp, steps)
}

// MigrateDown откатывает последние steps миграций, steps<=0 означает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) ([]AppliedMigration, error) {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, migrationDown, steps)
}

// MigrationStatus сравнивает schema_migrations со встроенными миграциями.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errStoreNotInitialized
	}

	all, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return MigrationState{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, schemaMigrationsDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedVersions(queryCtx, s.db)
	if err != nil {
		return MigrationState{}, err
	}

	state := MigrationState{Applied: len(applied)}
	for _, version := range applied {
		if version > state.Version {
			state.Version = version
		}
	}
	for _, m := range planUp(all, applied, 0) {
		state.Pending = append(state.Pending, AppliedMigration{Version: m.Version, Name: m.Name, Direction: string(migrationUp)})
	}
	return state, nil
}

func (s *Store) migrate(ctx context.Context, direction migrationDirection, steps int) ([]AppliedMigration, error) {
	if direction != migrationUp && direction != migrationDown {
		return nil, fmt.Errorf("unsupported migration direction: %s", direction)
	}
	if s == nil || s.db == nil {
		return nil, errStoreNotInitialized
	}

	all, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return nil, err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	var done []AppliedMigration
	err = withMigrationLock(ctx, conn, func() error {
		if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
			return fmt.Errorf("ensure migration table: %w", err)
		}
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		var plan []migration
		if direction == migrationUp {
			plan = planUp(all, applied, steps)
		} else if plan, err = planDown(all, applied, steps); err != nil {
			return err
		}

		for _, m := range plan {
			if err := runMigrationStep(ctx, conn, m, direction); err != nil {
				return err
			}
			done = append(done, AppliedMigration{Version: m.Version, Name: m.Name, Direction: string(direction)})
		}
		return nil
	})
	return done, err
}

func withMigrationLock(ctx context.Context, conn *sql.Conn, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", specialOrdersMigrationLock); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", specialOrdersMigrationLock)
	}()
	return fn()
}

// planUp возвращает ещё не применённые миграции по возрастанию версии.
func planUp(all []migration, applied []int64, steps int) []migration {
	done := make(map[int64]struct{}, len(applied))
	for _, version := range applied {
		done[version] = struct{}{}
	}

	var plan []migration
	for _, m := range all {
		if _, ok := done[m.Version]; ok {
			continue
		}
		plan = append(plan, m)
		if steps > 0 && len(plan) == steps {
			break
		}
	}
	return plan
}

// planDown возвращает последние steps применённых миграций от новой к старой.
func planDown(all []migration, applied []int64, steps int) ([]migration, error) {
	byVersion := make(map[int64]migration, len(all))
	for _, m := range all {
		byVersion[m.Version] = m
	}

	desc := append([]int64(nil), applied...)
	sort.Slice(desc, func(i, j int) bool { return desc[i] > desc[j] })
	if steps > 0 && len(desc) > steps {
		desc = desc[:steps]
	}

	plan := make([]migration, 0, len(desc))
	for _, version := range desc {
		m, ok := byVersion[version]
		if !ok {
			return nil, fmt.Errorf("cannot rollback unknown migration version %d", version)
		}
		plan = append(plan, m)
	}
	return plan, nil
}

// runMigrationStep выполняет тело миграции и правит schema_migrations в одной транзакции.
func runMigrationStep(ctx context.Context, conn *sql.Conn, m migration, direction migrationDirection) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %s): %w", direction, m.label(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.body(direction)); err != nil {
		return fmt.Errorf("execute %s migration %s: %w", direction, m.label(), err)
	}

	if direction == migrationUp {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return fmt.Errorf("record %s migration %s: %w", direction, m.label(), err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", direction, m.label(), err)
	}
	return nil
}

func appliedVersions(ctx context.Context, q querier) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

// loadMigrationsFromFS собирает пары up/down из sql/migrations и сортирует их по версии.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, "sql/migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)
		version, name, direction, err := parseMigrationFileName(base)
		if err != nil {
			return nil, err
		}

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, name)
		}

		target := &m.UpSQL
		if direction == migrationDown {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", direction, version)
		}
		*target = body
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.label())
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func parseMigrationFileName(base string) (int64, string, migrationDirection, error) {
	parts := migrationFileName.FindStringSubmatch(base)
	if parts == nil {
		return 0, "", "", fmt.Errorf("invalid migration file name: %s", base)
	}
	version, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("parse migration version from %s: %w", base, err)
	}
	return version, parts[2], migrationDirection(parts[3]), nil
}
