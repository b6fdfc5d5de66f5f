package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/warikanbot/internal/report"
	"github.com/susu3304/warikanbot/internal/settlement"
	"github.com/susu3304/warikanbot/internal/warikan"
	"github.com/susu3304/warikanbot/internal/warikan/warikantest"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type fakeSession struct {
	errs []error
	sent map[string][]string
	n    int
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.n++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.sent == nil {
		f.sent = make(map[string][]string)
	}
	f.sent[channelID] = append(f.sent[channelID], content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// settledChannel returns a store with one pending transfer in channel c1 and
// reminders due every 30 minutes.
func settledChannel(t *testing.T) (*warikantest.Store, *warikan.Service) {
	t.Helper()
	ctx := context.Background()
	store := warikantest.NewStore()
	svc := warikan.NewService(store, settlement.NewEngine(), "$")

	row := settlement.LedgerRow{
		Name: "Taxi", Total: decimal.NewFromInt(10), Subtotal: decimal.NewFromInt(10), Payer: "111",
		Contributions: []settlement.Share{
			{Participant: "111", Amount: decimal.NewFromInt(6)},
			{Participant: "222", Amount: decimal.NewFromInt(4)},
		},
	}
	_, err := svc.AddExpense(ctx, 42, "c1", "111", row)
	require.NoError(t, err)
	_, err = svc.Settle(ctx, "c1")
	require.NoError(t, err)

	past := now.Add(-time.Minute)
	require.NoError(t, store.UpsertReminder(ctx, "c1", true, 30, &past))
	return store, svc
}

func newTestWorker(session reminderSession, store ReminderStore, svc reminderSource) *reminderWorker {
	w := newReminderWorker(session, store, svc)
	w.now = func() time.Time { return now }
	w.pause = func(time.Duration) {}
	return w
}

func TestReminderTickSends(t *testing.T) {
	store, svc := settledChannel(t)
	session := &fakeSession{}

	newTestWorker(session, store, svc).tick(context.Background())

	require.Len(t, session.sent["c1"], 1)
	assert.Contains(t, session.sent["c1"][0], "<@222> pays <@111> $4.00")
	assert.Contains(t, session.sent["c1"][0], "automatic reminder")

	r, _ := store.Reminder("c1")
	require.NotNil(t, r.LastSentAt)
	assert.Equal(t, now, *r.LastSentAt)
	assert.Equal(t, now.Add(30*time.Minute), *r.NextDueAt)
}

func TestReminderNotDueOrSettled(t *testing.T) {
	store, svc := settledChannel(t)
	session := &fakeSession{}
	w := newTestWorker(session, store, svc)

	later := now.Add(time.Hour)
	require.NoError(t, store.UpsertReminder(context.Background(), "c1", true, 30, &later))
	w.tick(context.Background())
	assert.Zero(t, session.n)

	require.NoError(t, store.UpsertReminder(context.Background(), "c1", true, 30, &now))
	_, err := svc.CompleteTransfer(context.Background(), "c1", "111", "222")
	require.NoError(t, err)
	w.tick(context.Background())
	assert.Zero(t, session.n)
}

func TestReminderRetriesTimeouts(t *testing.T) {
	store, svc := settledChannel(t)
	session := &fakeSession{errs: []error{timeoutErr{}}}

	newTestWorker(session, store, svc).tick(context.Background())

	assert.Equal(t, 2, session.n)
	assert.Len(t, session.sent["c1"], 1)
}

func TestReminderBacksOffOnFailure(t *testing.T) {
	store, svc := settledChannel(t)
	session := &fakeSession{errs: []error{errors.New("403 Forbidden")}}

	newTestWorker(session, store, svc).tick(context.Background())

	assert.Equal(t, 1, session.n, "permanent errors are not retried")
	r, _ := store.Reminder("c1")
	assert.Nil(t, r.LastSentAt)
	require.NotNil(t, r.NextDueAt)
	assert.Equal(t, now.Add(2*time.Minute), *r.NextDueAt)
}

func TestReminderSplitsLongMessages(t *testing.T) {
	store, svc := settledChannel(t)
	ctx := context.Background()

	var entries []settlement.PaymentEntry
	for i := 0; i < 60; i++ {
		entries = append(entries, settlement.PaymentEntry{
			Debtor:   fmt.Sprintf("1234567890123456%02d", i),
			Creditor: "876543210987654321",
			Amount:   decimal.RequireFromString("12.34"),
		})
	}
	require.NoError(t, store.ReplaceTransfers(ctx, "c1", "run", entries))
	session := &fakeSession{}

	newTestWorker(session, store, svc).tick(ctx)

	msgs := session.sent["c1"]
	require.Greater(t, len(msgs), 1)
	for _, m := range msgs {
		assert.LessOrEqual(t, len(m), report.DiscordLimit)
	}
	assert.Contains(t, msgs[len(msgs)-1], "automatic reminder")
	r, _ := store.Reminder("c1")
	require.NotNil(t, r.LastSentAt)
}

func TestReminderWorkerNilSafe(t *testing.T) {
	var w *reminderWorker
	assert.NotPanics(t, func() {
		w.start()
		w.stop()
	})
}

func TestIsTemporaryOrTimeout(t *testing.T) {
	assert.True(t, isTemporaryOrTimeout(timeoutErr{}))
	assert.False(t, isTemporaryOrTimeout(errors.New("nope")))
	assert.False(t, isTemporaryOrTimeout(nil))
}
