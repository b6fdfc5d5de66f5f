package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/susu3304/warikanbot/internal/settlement"
)

// Transfer is one payment instruction produced by a settlement run.
type Transfer struct {
	ID        int64
	RunID     string
	ChannelID string
	Debtor    string
	Creditor  string
	Amount    decimal.Decimal
	Completed bool
	CreatedAt time.Time
}

func (t Transfer) Entry() settlement.PaymentEntry {
	return settlement.PaymentEntry{Debtor: t.Debtor, Creditor: t.Creditor, Amount: t.Amount}
}

type ReminderDue struct {
	ChannelID       string
	IntervalMinutes int
}

// ReplaceTransfers drops the channel's pending transfers and stores the new run.
func (db *DB) ReplaceTransfers(ctx context.Context, channelID, runID string, entries []settlement.PaymentEntry) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM settlement_transfers WHERE channel_id = $1 AND completed = FALSE`, channelID); err != nil {
		return err
	}
	for _, e := range entries {
		if !e.Amount.IsPositive() || e.Debtor == "" || e.Creditor == "" {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO settlement_transfers (run_id, channel_id, debtor, creditor, amount)
			 VALUES ($1, $2, $3, $4, $5::numeric)`,
			runID, channelID, e.Debtor, e.Creditor, e.Amount.String(),
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// PendingTransfers returns the channel's open transfers in the order they were produced.
func (db *DB) PendingTransfers(ctx context.Context, channelID string) ([]Transfer, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id::text, channel_id, debtor, creditor, amount::text, completed, created_at
		 FROM settlement_transfers
		 WHERE channel_id = $1 AND completed = FALSE
		 ORDER BY id`,
		channelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompleteTransfer marks the oldest pending transfer between a and b, in
// either direction, as done.
func (db *DB) CompleteTransfer(ctx context.Context, channelID, a, b string) (*Transfer, error) {
	row := db.pool.QueryRow(ctx,
		`UPDATE settlement_transfers
		 SET completed = TRUE, completed_at = CURRENT_TIMESTAMP
		 WHERE id = (
			SELECT id FROM settlement_transfers
			WHERE channel_id = $1 AND completed = FALSE
			  AND ((debtor = $2 AND creditor = $3) OR (debtor = $3 AND creditor = $2))
			ORDER BY id
			LIMIT 1
			FOR UPDATE
		 )
		 RETURNING id, run_id::text, channel_id, debtor, creditor, amount::text, completed, created_at`,
		channelID, a, b,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transfer between %s and %s: %w", a, b, ErrNotFound)
		}
		return nil, err
	}
	return &t, nil
}

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	var amount string
	if err := row.Scan(&t.ID, &t.RunID, &t.ChannelID, &t.Debtor, &t.Creditor, &amount, &t.Completed, &t.CreatedAt); err != nil {
		return Transfer{}, err
	}
	amt, err := parseNumeric(amount)
	if err != nil {
		return Transfer{}, err
	}
	t.Amount = amt
	return t, nil
}

// UpsertReminder configures reminders for a channel and optionally schedules the next due time.
func (db *DB) UpsertReminder(ctx context.Context, channelID string, enabled bool, intervalMinutes int, nextDueAt *time.Time) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO settlement_reminders (channel_id, enabled, interval_minutes, next_due_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (channel_id) DO UPDATE
		 SET enabled = EXCLUDED.enabled,
			 interval_minutes = EXCLUDED.interval_minutes,
			 next_due_at = COALESCE(EXCLUDED.next_due_at, settlement_reminders.next_due_at)`,
		channelID, enabled, intervalMinutes, nextDueAt,
	)
	return err
}

// DueReminders returns reminder targets that are due and still have pending transfers.
func (db *DB) DueReminders(ctx context.Context, now time.Time) ([]ReminderDue, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT r.channel_id, r.interval_minutes
		 FROM settlement_reminders r
		 WHERE r.enabled = TRUE
		   AND (r.next_due_at IS NULL OR r.next_due_at <= $1)
		   AND EXISTS (
			 SELECT 1 FROM settlement_transfers t
			 WHERE t.channel_id = r.channel_id AND t.completed = FALSE
		   )`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []ReminderDue
	for rows.Next() {
		var r ReminderDue
		if err := rows.Scan(&r.ChannelID, &r.IntervalMinutes); err != nil {
			return nil, err
		}
		targets = append(targets, r)
	}
	return targets, rows.Err()
}

// MarkReminderSent updates reminder schedule timestamps.
func (db *DB) MarkReminderSent(ctx context.Context, channelID string, sentAt time.Time, nextDue time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE settlement_reminders
		 SET last_sent_at = $2, next_due_at = $3
		 WHERE channel_id = $1`,
		channelID, sentAt, nextDue,
	)
	return err
}

// DelayReminder updates next_due_at without touching last_sent_at.
func (db *DB) DelayReminder(ctx context.Context, channelID string, nextDue time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE settlement_reminders
		 SET next_due_at = $2
		 WHERE channel_id = $1`,
		channelID, nextDue,
	)
	return err
}
