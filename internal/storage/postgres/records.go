package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/Vasu1712/adminchat/internal/storage"
)

const schema = `
	CREATE TABLE IF NOT EXISTS chat_records (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// RecordStore implements storage.Store using one PostgreSQL row per key.
type RecordStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRecordStore opens the database, verifies the connection and creates
// the records table if needed.
func NewRecordStore(ctx context.Context, dataSourceName string, logger *slog.Logger) (*RecordStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection for chat records: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database for chat records: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chat_records table: %w", err)
	}

	logger = logger.With("component", "postgres_store")
	logger.Info("connected to PostgreSQL for chat records")

	return &RecordStore{db: db, logger: logger}, nil
}

func (s *RecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM chat_records WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *RecordStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO chat_records (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	s.logger.Debug("record written", "key", key, "bytes", len(value))
	return nil
}

// Close closes the database connection.
func (s *RecordStore) Close() error {
	return s.db.Close()
}
