// Package warikantest provides an in-memory warikan.Store for tests.
package warikantest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/settlement"
)

type Reminder struct {
	Enabled         bool
	IntervalMinutes int
	NextDueAt       *time.Time
	LastSentAt      *time.Time
}

// Store keeps ledgers, transfers and reminders in memory. FailAdd, when set,
// is returned by AddExpenses.
type Store struct {
	mu        sync.Mutex
	nextID    int64
	expenses  []db.Expense
	transfers []db.Transfer
	reminders map[string]Reminder
	FailAdd   error
}

func NewStore() *Store {
	return &Store{reminders: make(map[string]Reminder)}
}

func (m *Store) AddExpenses(_ context.Context, expenses []db.Expense) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAdd != nil {
		return nil, m.FailAdd
	}
	ids := make([]int64, 0, len(expenses))
	for _, e := range expenses {
		m.nextID++
		e.ID = m.nextID
		m.expenses = append(m.expenses, e)
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (m *Store) RemoveExpense(_ context.Context, channelID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.expenses {
		if e.ID == id && e.ChannelID == channelID {
			m.expenses = append(m.expenses[:i], m.expenses[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("expense %d: %w", id, db.ErrNotFound)
}

func (m *Store) Expenses(_ context.Context, channelID string) ([]db.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Expense
	for _, e := range m.expenses {
		if e.ChannelID == channelID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Store) ClearLedger(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []db.Expense
	for _, e := range m.expenses {
		if e.ChannelID != channelID {
			kept = append(kept, e)
		}
	}
	m.expenses = kept
	m.dropPending(channelID)
	return nil
}

func (m *Store) ReplaceTransfers(_ context.Context, channelID, runID string, entries []settlement.PaymentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropPending(channelID)
	for _, e := range entries {
		m.nextID++
		m.transfers = append(m.transfers, db.Transfer{
			ID: m.nextID, RunID: runID, ChannelID: channelID,
			Debtor: e.Debtor, Creditor: e.Creditor, Amount: e.Amount,
		})
	}
	return nil
}

func (m *Store) dropPending(channelID string) {
	var kept []db.Transfer
	for _, t := range m.transfers {
		if t.ChannelID != channelID || t.Completed {
			kept = append(kept, t)
		}
	}
	m.transfers = kept
}

func (m *Store) PendingTransfers(_ context.Context, channelID string) ([]db.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Transfer
	for _, t := range m.transfers {
		if t.ChannelID == channelID && !t.Completed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Store) CompleteTransfer(_ context.Context, channelID, a, b string) (*db.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.transfers {
		if t.ChannelID != channelID || t.Completed {
			continue
		}
		if (t.Debtor == a && t.Creditor == b) || (t.Debtor == b && t.Creditor == a) {
			m.transfers[i].Completed = true
			done := m.transfers[i]
			return &done, nil
		}
	}
	return nil, fmt.Errorf("transfer between %s and %s: %w", a, b, db.ErrNotFound)
}

func (m *Store) UpsertReminder(_ context.Context, channelID string, enabled bool, intervalMinutes int, nextDueAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reminders[channelID]
	r.Enabled = enabled
	r.IntervalMinutes = intervalMinutes
	if nextDueAt != nil {
		r.NextDueAt = nextDueAt
	}
	m.reminders[channelID] = r
	return nil
}

// All returns every stored expense across channels.
func (m *Store) All() []db.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.Expense, len(m.expenses))
	copy(out, m.expenses)
	return out
}

func (m *Store) Reminder(channelID string) (Reminder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[channelID]
	return r, ok
}

// DueReminders mirrors the database query: enabled, due, and with pending transfers.
func (m *Store) DueReminders(_ context.Context, now time.Time) ([]db.ReminderDue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.ReminderDue
	for channelID, r := range m.reminders {
		if !r.Enabled || (r.NextDueAt != nil && r.NextDueAt.After(now)) {
			continue
		}
		for _, t := range m.transfers {
			if t.ChannelID == channelID && !t.Completed {
				out = append(out, db.ReminderDue{ChannelID: channelID, IntervalMinutes: r.IntervalMinutes})
				break
			}
		}
	}
	return out, nil
}

func (m *Store) MarkReminderSent(_ context.Context, channelID string, sentAt, nextDue time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reminders[channelID]
	r.LastSentAt = &sentAt
	r.NextDueAt = &nextDue
	m.reminders[channelID] = r
	return nil
}

func (m *Store) DelayReminder(_ context.Context, channelID string, nextDue time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reminders[channelID]
	r.NextDueAt = &nextDue
	m.reminders[channelID] = r
	return nil
}

func (m *Store) LedgerChannels(_ context.Context, guildID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, e := range m.expenses {
		if e.GuildID != guildID {
			continue
		}
		if _, ok := seen[e.ChannelID]; ok {
			continue
		}
		seen[e.ChannelID] = struct{}{}
		out = append(out, e.ChannelID)
	}
	return out, nil
}

func (m *Store) LedgerGuilds(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]struct{})
	var out []int64
	for _, e := range m.expenses {
		if _, ok := seen[e.GuildID]; ok {
			continue
		}
		seen[e.GuildID] = struct{}{}
		out = append(out, e.GuildID)
	}
	return out, nil
}
