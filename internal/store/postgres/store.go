package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	otelpgx "github.com/webitel/webitel-go-kit/infra/otel/instrumentation/pgx"

	"github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/store"
)

const schema = `
CREATE SCHEMA IF NOT EXISTS rocrate_exporter;

CREATE TABLE IF NOT EXISTS rocrate_exporter.export_history (
	id            BIGSERIAL PRIMARY KEY,
	job_id        TEXT        NOT NULL UNIQUE,
	email         TEXT        NOT NULL,
	file_count    INTEGER     NOT NULL,
	total_size    BIGINT      NOT NULL,
	failed_count  INTEGER     NOT NULL DEFAULT 0,
	download_url  TEXT,
	error_message TEXT,
	status        TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS export_history_email_created_idx
	ON rocrate_exporter.export_history (email, created_at DESC);
`

var _ store.Store = (*Store)(nil)

// Store is the struct implementing the Store interface.
type Store struct {
	historyStore store.HistoryStore
	dsn          string
	conn         *pgxpool.Pool
}

// New creates a new Store instance.
func New(dsn string) *Store {
	return &Store{dsn: dsn}
}

func (s *Store) History() store.HistoryStore {
	if s.historyStore == nil {
		hs, err := NewHistoryStore(s)
		if err != nil {
			return nil
		}
		s.historyStore = hs
	}
	return s.historyStore
}

// Database returns the database connection or a custom error if it is not opened.
func (s *Store) Database() (*pgxpool.Pool, error) {
	if s.conn == nil {
		return nil, errors.New("database connection is not opened")
	}
	return s.conn, nil
}

// Open connects to the database and creates the history table when missing.
func (s *Store) Open() error {
	config, err := pgxpool.ParseConfig(s.dsn)
	if err != nil {
		return fmt.Errorf("parse database dsn: %w", err)
	}

	// Attach the OpenTelemetry tracer for pgx
	config.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName())

	ctx := context.Background()
	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, schema); err != nil {
		conn.Close()
		return fmt.Errorf("migrate export history: %w", err)
	}
	s.conn = conn
	slog.Debug("rocrate_exporter.store.connection_opened", slog.String("message", "postgres: connection opened"))
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		s.conn.Close()
		slog.Debug("rocrate_exporter.store.connection_closed", slog.String("message", "postgres: connection closed"))
		s.conn = nil
	}
	return nil
}

// Ping checks the connection pool.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.Database()
	if err != nil {
		return err
	}
	return db.Ping(ctx)
}
