// Package warikan keeps a running expense ledger per Discord channel and
// settles it on request.
package warikan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/logger"
	"github.com/susu3304/warikanbot/internal/report"
	"github.com/susu3304/warikanbot/internal/settlement"
	"go.uber.org/zap"
)

var (
	ErrEmptyLedger   = errors.New("no expenses recorded in this channel")
	ErrEmptyImport   = errors.New("imported table has no expenses")
	ErrBadInterval   = errors.New("reminder interval must not be negative")
	ErrSelfTransfer  = errors.New("cannot settle a transfer with yourself")
	ErrNoSuchExpense = errors.New("no such expense in this channel")
)

// Store is the persistence the service needs. *db.DB satisfies it.
type Store interface {
	AddExpenses(ctx context.Context, expenses []db.Expense) ([]int64, error)
	RemoveExpense(ctx context.Context, channelID string, id int64) error
	Expenses(ctx context.Context, channelID string) ([]db.Expense, error)
	ClearLedger(ctx context.Context, channelID string) error
	ReplaceTransfers(ctx context.Context, channelID, runID string, entries []settlement.PaymentEntry) error
	PendingTransfers(ctx context.Context, channelID string) ([]db.Transfer, error)
	CompleteTransfer(ctx context.Context, channelID, a, b string) (*db.Transfer, error)
	UpsertReminder(ctx context.Context, channelID string, enabled bool, intervalMinutes int, nextDueAt *time.Time) error
}

var _ Store = (*db.DB)(nil)

type Service struct {
	store  Store
	engine *settlement.Engine
	symbol string
	now    func() time.Time
}

func NewService(store Store, engine *settlement.Engine, symbol string) *Service {
	if engine == nil {
		engine = settlement.NewEngine()
	}
	return &Service{store: store, engine: engine, symbol: symbol, now: time.Now}
}

func (s *Service) Symbol() string {
	return s.symbol
}

type SettleResult struct {
	RunID    string
	Entries  []settlement.PaymentEntry
	Balances *settlement.NetBalance
	Summary  string
}

// AddExpense records one expense. The channel ledger with the new row
// appended must still validate, so a bad row is refused before it is stored.
func (s *Service) AddExpense(ctx context.Context, guildID int64, channelID, createdBy string, row settlement.LedgerRow) (int64, error) {
	if err := settlement.CheckRow(row); err != nil {
		return 0, err
	}
	rows, err := s.rows(ctx, channelID)
	if err != nil && !errors.Is(err, ErrEmptyLedger) {
		return 0, err
	}
	if _, err := s.engine.Balances(append(rows, row)); err != nil {
		return 0, err
	}
	ids, err := s.store.AddExpenses(ctx, []db.Expense{newExpense(guildID, channelID, createdBy, row)})
	if err != nil {
		return 0, fmt.Errorf("failed to store expense: %w", err)
	}
	logger.L.Info("expense added",
		zap.String("channel_id", channelID),
		zap.Int64("expense_id", ids[0]),
		zap.String("total", row.Total.String()),
	)
	return ids[0], nil
}

// ImportCSV appends every row of a CSV ledger table. The batch is validated
// as a whole and nothing is stored if any row fails.
func (s *Service) ImportCSV(ctx context.Context, guildID int64, channelID, createdBy string, r io.Reader) (int, error) {
	table, err := ledger.ReadCSV(r)
	if err != nil {
		return 0, err
	}
	rows, err := table.Clean().LedgerRows()
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, ErrEmptyImport
	}
	if _, err := s.engine.Balances(rows); err != nil {
		return 0, err
	}

	expenses := make([]db.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, newExpense(guildID, channelID, createdBy, row))
	}
	if _, err := s.store.AddExpenses(ctx, expenses); err != nil {
		return 0, fmt.Errorf("failed to store imported expenses: %w", err)
	}
	logger.L.Info("ledger imported", zap.String("channel_id", channelID), zap.Int("rows", len(rows)))
	return len(rows), nil
}

// RemoveExpense deletes one expense. The rows left behind must still
// validate: a row can be the only one giving a later payer a column, and
// dropping a participant column tightens every row's allowed error.
func (s *Service) RemoveExpense(ctx context.Context, channelID string, id int64) error {
	expenses, err := s.store.Expenses(ctx, channelID)
	if err != nil {
		return err
	}
	found := false
	rest := make([]settlement.LedgerRow, 0, len(expenses))
	for _, e := range expenses {
		if e.ID == id {
			found = true
			continue
		}
		rest = append(rest, e.Row())
	}
	if !found {
		return fmt.Errorf("#%d: %w", id, ErrNoSuchExpense)
	}
	if _, err := s.engine.Balances(rest); err != nil {
		return fmt.Errorf("removing #%d would break the ledger: %w", id, err)
	}

	if err := s.store.RemoveExpense(ctx, channelID, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("#%d: %w", id, ErrNoSuchExpense)
		}
		return err
	}
	return nil
}

// Reset clears the ledger and any transfers still pending.
func (s *Service) Reset(ctx context.Context, channelID string) error {
	if err := s.store.ClearLedger(ctx, channelID); err != nil {
		return err
	}
	logger.L.Info("ledger reset", zap.String("channel_id", channelID))
	return nil
}

func (s *Service) Expenses(ctx context.Context, channelID string) ([]db.Expense, error) {
	return s.store.Expenses(ctx, channelID)
}

// Balances validates the channel ledger and returns everyone's net position.
func (s *Service) Balances(ctx context.Context, channelID string) (*settlement.NetBalance, error) {
	rows, err := s.rows(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.engine.Balances(rows)
}

// Settle runs the engine over the channel ledger and replaces any pending
// transfers with the new result.
func (s *Service) Settle(ctx context.Context, channelID string) (*SettleResult, error) {
	rows, err := s.rows(ctx, channelID)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Settle(rows)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if err := s.store.ReplaceTransfers(ctx, channelID, runID, res.Entries); err != nil {
		return nil, fmt.Errorf("failed to store transfers: %w", err)
	}
	logger.L.Info("ledger settled",
		zap.String("channel_id", channelID),
		zap.String("run_id", runID),
		zap.Int("expenses", len(rows)),
		zap.Int("transfers", len(res.Entries)),
	)
	return &SettleResult{
		RunID:    runID,
		Entries:  res.Entries,
		Balances: res.Balances,
		Summary:  report.Summary(res.Entries, s.symbol),
	}, nil
}

// CompleteTransfer marks the first pending transfer between actor and other
// as paid, whichever of them is the debtor.
func (s *Service) CompleteTransfer(ctx context.Context, channelID, actorID, otherID string) (*db.Transfer, error) {
	if actorID == otherID {
		return nil, ErrSelfTransfer
	}
	t, err := s.store.CompleteTransfer(ctx, channelID, actorID, otherID)
	if err != nil {
		return nil, err
	}
	logger.L.Info("transfer completed",
		zap.String("channel_id", channelID),
		zap.Int64("transfer_id", t.ID),
		zap.String("actor", actorID),
	)
	return t, nil
}

func (s *Service) PendingTransfers(ctx context.Context, channelID string) ([]db.Transfer, error) {
	return s.store.PendingTransfers(ctx, channelID)
}

// ReminderMessage renders the channel's pending transfers, or "" when none remain.
func (s *Service) ReminderMessage(ctx context.Context, channelID string) (string, error) {
	pending, err := s.store.PendingTransfers(ctx, channelID)
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("Reminder: outstanding transfers\n")
	for _, t := range pending {
		b.WriteString(report.Format(t.Entry(), s.symbol))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// SetReminder schedules reminders every minutes; zero turns them off.
func (s *Service) SetReminder(ctx context.Context, channelID string, minutes int) error {
	if minutes < 0 {
		return ErrBadInterval
	}
	if minutes == 0 {
		return s.store.UpsertReminder(ctx, channelID, false, 0, nil)
	}
	next := s.now().Add(time.Duration(minutes) * time.Minute)
	return s.store.UpsertReminder(ctx, channelID, true, minutes, &next)
}

// SettleTable settles a table without touching any stored ledger.
func (s *Service) SettleTable(table *ledger.Table) (*settlement.Result, error) {
	rows, err := table.Clean().LedgerRows()
	if err != nil {
		return nil, err
	}
	return s.engine.Settle(rows)
}

// SettleRows settles rows without touching any stored ledger.
func (s *Service) SettleRows(rows []settlement.LedgerRow) (*settlement.Result, error) {
	return s.engine.Settle(rows)
}

func (s *Service) rows(ctx context.Context, channelID string) ([]settlement.LedgerRow, error) {
	expenses, err := s.store.Expenses(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, ErrEmptyLedger
	}
	rows := make([]settlement.LedgerRow, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, e.Row())
	}
	return rows, nil
}

func newExpense(guildID int64, channelID, createdBy string, row settlement.LedgerRow) db.Expense {
	shares := make([]settlement.Share, len(row.Contributions))
	copy(shares, row.Contributions)
	return db.Expense{
		GuildID:   guildID,
		ChannelID: channelID,
		Name:      row.Name,
		Total:     row.Total,
		Subtotal:  row.Subtotal,
		Payer:     row.Payer,
		Shares:    shares,
		CreatedBy: createdBy,
	}
}
