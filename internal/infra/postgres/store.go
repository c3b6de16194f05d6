// Package postgres appends ledger rows to a PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dvloznov/inbox-ledger/internal/ledger"
)

// ErrNotConfigured indicates the sink pool was not initialised.
var ErrNotConfigured = errors.New("postgres: pool not configured")

// Config describes the connection and the target table.
type Config struct {
	DSN             string
	Table           string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return pool, nil
}

// Sink inserts every appended chunk in a single transaction.
type Sink struct {
	pool  *pgxpool.Pool
	table string
	runID string
	log   zerolog.Logger
}

// NewSink wires a pgx pool into a Sink.
func NewSink(pool *pgxpool.Pool, table, runID string, log zerolog.Logger) *Sink {
	if table == "" {
		table = "ledger_entries"
	}
	return &Sink{
		pool:  pool,
		table: table,
		runID: runID,
		log:   log.With().Str("component", "postgres").Str("table", table).Logger(),
	}
}

// Prepare creates the ledger table when missing.
func (s *Sink) Prepare(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	if _, err := s.pool.Exec(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// Append inserts rows atomically: either the whole chunk lands or none of it.
func (s *Sink) Append(ctx context.Context, rows []ledger.Row) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	if len(rows) == 0 {
		return nil
	}

	batch := buildBatch(s.table, s.runID, rows)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert ledger rows: %w", err)
	}
	s.log.Debug().Int("rows", len(rows)).Msg("Inserted ledger rows")
	return nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        id         BIGSERIAL PRIMARY KEY,
        run_id     TEXT NOT NULL,
        tx_date    TEXT NOT NULL DEFAULT '',
        merchant   TEXT NOT NULL DEFAULT '',
        amount     NUMERIC(18,2) NOT NULL,
        direction  TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`, pgx.Identifier{table}.Sanitize())
}

func insertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (
        run_id,
        tx_date,
        merchant,
        amount,
        direction
    ) VALUES (
        $1,$2,$3,$4,$5
    );`, pgx.Identifier{table}.Sanitize())
}

func buildBatch(table, runID string, rows []ledger.Row) *pgx.Batch {
	query := insertSQL(table)
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, runID, r.Date, r.Merchant, r.Amount.String(), string(r.Type))
	}
	return batch
}
