package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_expenses (
			id BIGSERIAL PRIMARY KEY,
			guild_id BIGINT NOT NULL,
			channel_id TEXT NOT NULL,
			name TEXT NOT NULL,
			total NUMERIC NOT NULL,
			subtotal NUMERIC NOT NULL CHECK (subtotal <> 0),
			payer TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_expenses_channel ON ledger_expenses(channel_id, id);
		CREATE INDEX IF NOT EXISTS idx_ledger_expenses_guild ON ledger_expenses(guild_id);

		CREATE TABLE IF NOT EXISTS ledger_shares (
			expense_id BIGINT NOT NULL REFERENCES ledger_expenses(id) ON DELETE CASCADE,
			position INT NOT NULL,
			participant TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			PRIMARY KEY (expense_id, position),
			UNIQUE (expense_id, participant)
		);

		CREATE TABLE IF NOT EXISTS settlement_transfers (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL,
			channel_id TEXT NOT NULL,
			debtor TEXT NOT NULL,
			creditor TEXT NOT NULL,
			amount NUMERIC NOT NULL CHECK (amount > 0),
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_settlement_transfers_channel ON settlement_transfers(channel_id, completed);

		CREATE TABLE IF NOT EXISTS settlement_reminders (
			channel_id TEXT PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			interval_minutes INT NOT NULL,
			next_due_at TIMESTAMPTZ,
			last_sent_at TIMESTAMPTZ
		);
	`)
	return err
}

// NUMERIC columns travel as text so no precision is lost on either side.
func parseNumeric(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad numeric %q: %w", s, err)
	}
	return d, nil
}
