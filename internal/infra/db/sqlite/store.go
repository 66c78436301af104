package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/ports/repository"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_streaks (
	user_id      INTEGER PRIMARY KEY,
	streak       INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
	last_updated TEXT
);

CREATE TABLE IF NOT EXISTS polls (
	poll_id    TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL,
	message_id INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
`

// Store owns the single long-lived SQLite handle shared by the repositories.
type Store struct {
	db   *sql.DB
	path string
	log  *zerolog.Logger
}

// Open opens (or creates) the database file at path and applies the schema.
// One open connection serializes writers.
func Open(ctx context.Context, path string, logger *zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: create directory: %w", domain.ErrPersistence, err)
			}
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", domain.ErrPersistence, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	compLog := logger.With().Str("component", "SQLiteStore").Logger()
	s := &Store{db: db, path: path, log: &compLog}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info().Str("path", path).Msg("sqlite store ready")
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: apply schema: %w", domain.ErrPersistence, err)
	}
	// closed_at was added later; older files keep working without it.
	var n int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_table_info('polls') WHERE name = 'closed_at'`)
	if err := row.Scan(&n); err != nil {
		return fmt.Errorf("%w: inspect schema: %w", domain.ErrPersistence, err)
	}
	if n == 0 {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE polls ADD COLUMN closed_at TEXT`); err != nil {
			return fmt.Errorf("%w: add closed_at: %w", domain.ErrPersistence, err)
		}
		s.log.Info().Msg("added polls.closed_at column")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// Stats reports the handle's pool statistics.
func (s *Store) Stats() sql.DBStats { return s.db.Stats() }

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getExecutor(tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case *sql.Tx:
		return v, nil
	case nil:
		return s.db, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

func formatTime(t time.Time) string { return t.Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }
