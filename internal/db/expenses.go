package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/susu3304/warikanbot/internal/settlement"
)

// Expense is one stored ledger row. Shares keep the order they were entered in.
type Expense struct {
	ID        int64
	GuildID   int64
	ChannelID string
	Name      string
	Total     decimal.Decimal
	Subtotal  decimal.Decimal
	Payer     string
	Shares    []settlement.Share
	CreatedBy string
	CreatedAt time.Time
}

func (e Expense) Row() settlement.LedgerRow {
	shares := make([]settlement.Share, len(e.Shares))
	copy(shares, e.Shares)
	return settlement.LedgerRow{
		Name:          e.Name,
		Total:         e.Total,
		Subtotal:      e.Subtotal,
		Payer:         e.Payer,
		Contributions: shares,
	}
}

// AddExpenses inserts a batch of expenses in one transaction, so a batch is
// stored whole or not at all.
func (db *DB) AddExpenses(ctx context.Context, expenses []Expense) ([]int64, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]int64, 0, len(expenses))
	for _, e := range expenses {
		id, err := insertExpense(ctx, tx, e)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func insertExpense(ctx context.Context, tx pgx.Tx, e Expense) (int64, error) {
	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO ledger_expenses (guild_id, channel_id, name, total, subtotal, payer, created_by)
		 VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)
		 RETURNING id`,
		e.GuildID, e.ChannelID, e.Name, e.Total.String(), e.Subtotal.String(), e.Payer, e.CreatedBy,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert expense %q: %w", e.Name, err)
	}
	for i, s := range e.Shares {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledger_shares (expense_id, position, participant, amount)
			 VALUES ($1, $2, $3, $4::numeric)`,
			id, i, s.Participant, s.Amount.String(),
		); err != nil {
			return 0, fmt.Errorf("insert share for %q: %w", s.Participant, err)
		}
	}
	return id, nil
}

// RemoveExpense deletes one expense from a channel ledger.
func (db *DB) RemoveExpense(ctx context.Context, channelID string, id int64) error {
	ct, err := db.pool.Exec(ctx,
		`DELETE FROM ledger_expenses WHERE id = $1 AND channel_id = $2`,
		id, channelID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	return nil
}

// Expenses returns a channel's ledger in insertion order.
func (db *DB) Expenses(ctx context.Context, channelID string) ([]Expense, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, guild_id, channel_id, name, total::text, subtotal::text, payer, created_by, created_at
		 FROM ledger_expenses
		 WHERE channel_id = $1
		 ORDER BY id`,
		channelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	index := make(map[int64]int)
	for rows.Next() {
		var e Expense
		var total, subtotal string
		if err := rows.Scan(&e.ID, &e.GuildID, &e.ChannelID, &e.Name, &total, &subtotal, &e.Payer, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Total, err = parseNumeric(total); err != nil {
			return nil, err
		}
		if e.Subtotal, err = parseNumeric(subtotal); err != nil {
			return nil, err
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	shares, err := db.pool.Query(ctx,
		`SELECT s.expense_id, s.participant, s.amount::text
		 FROM ledger_shares s
		 JOIN ledger_expenses e ON e.id = s.expense_id
		 WHERE e.channel_id = $1
		 ORDER BY s.expense_id, s.position`,
		channelID,
	)
	if err != nil {
		return nil, err
	}
	defer shares.Close()

	for shares.Next() {
		var expenseID int64
		var s settlement.Share
		var amount string
		if err := shares.Scan(&expenseID, &s.Participant, &amount); err != nil {
			return nil, err
		}
		if s.Amount, err = parseNumeric(amount); err != nil {
			return nil, err
		}
		i, ok := index[expenseID]
		if !ok {
			continue
		}
		out[i].Shares = append(out[i].Shares, s)
	}
	return out, shares.Err()
}

// ClearLedger removes every expense and pending transfer of a channel.
func (db *DB) ClearLedger(ctx context.Context, channelID string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM ledger_expenses WHERE channel_id = $1`, channelID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM settlement_transfers WHERE channel_id = $1 AND completed = FALSE`, channelID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LedgerChannels lists the channels of a guild that have at least one expense.
func (db *DB) LedgerChannels(ctx context.Context, guildID int64) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT channel_id FROM ledger_expenses
		 WHERE guild_id = $1
		 GROUP BY channel_id
		 ORDER BY MIN(id)`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// LedgerGuilds lists guilds with at least one recorded expense.
func (db *DB) LedgerGuilds(ctx context.Context) ([]int64, error) {
	rows, err := db.pool.Query(ctx, `SELECT DISTINCT guild_id FROM ledger_expenses ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
