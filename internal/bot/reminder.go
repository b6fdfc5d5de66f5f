package bot

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/logger"
	"github.com/susu3304/warikanbot/internal/report"
	"go.uber.org/zap"
)

// ReminderStore schedules reminders. *db.DB satisfies it.
type ReminderStore interface {
	DueReminders(ctx context.Context, now time.Time) ([]db.ReminderDue, error)
	MarkReminderSent(ctx context.Context, channelID string, sentAt, nextDue time.Time) error
	DelayReminder(ctx context.Context, channelID string, nextDue time.Time) error
}

type reminderSource interface {
	ReminderMessage(ctx context.Context, channelID string) (string, error)
}

// Minimal session interface for sending channel messages.
type reminderSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// reminderWorker periodically posts outstanding transfers to channels.
type reminderWorker struct {
	store    ReminderStore
	source   reminderSource
	session  reminderSession
	stopChan chan struct{}
	ticker   *time.Ticker
	interval time.Duration
	now      func() time.Time
	pause    func(time.Duration)
}

func newReminderWorker(session reminderSession, store ReminderStore, source reminderSource) *reminderWorker {
	return &reminderWorker{
		store:    store,
		source:   source,
		session:  session,
		stopChan: make(chan struct{}),
		interval: time.Minute,
		now:      time.Now,
		pause:    time.Sleep,
	}
}

func (w *reminderWorker) start() {
	if w == nil {
		return
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

func (w *reminderWorker) stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	if w.ticker != nil {
		w.ticker.Stop()
	}
}

func (w *reminderWorker) loop() {
	ctx := context.Background()
	for {
		select {
		case <-w.ticker.C:
			w.tick(ctx)
		case <-w.stopChan:
			return
		}
	}
}

func (w *reminderWorker) tick(ctx context.Context) {
	now := w.now()
	targets, err := w.store.DueReminders(ctx, now)
	if err != nil {
		logger.L.Error("reminder: failed to load due reminders", zap.Error(err))
		return
	}

	for _, t := range targets {
		log := logger.L.With(zap.String("channel_id", t.ChannelID))
		msg, err := w.source.ReminderMessage(ctx, t.ChannelID)
		if err != nil {
			log.Error("reminder: failed to build message", zap.Error(err))
			continue
		}
		if msg == "" {
			continue
		}
		lines := strings.Split(strings.TrimRight(msg, "\n"), "\n")
		lines = append(lines, "(automatic reminder, /warikan done when paid)")
		if err := w.sendChunks(ctx, t.ChannelID, report.Chunk(lines, report.DiscordLimit)); err != nil {
			log.Warn("reminder: failed to send message", zap.Error(err))
			backoff := 2 * time.Minute
			if t.IntervalMinutes > 0 {
				max := time.Duration(t.IntervalMinutes) * time.Minute
				if backoff > max {
					backoff = max
				}
			}
			if derr := w.store.DelayReminder(ctx, t.ChannelID, now.Add(backoff)); derr != nil {
				log.Error("reminder: failed to delay reminder", zap.Error(derr))
			}
			continue
		}
		next := now.Add(time.Duration(t.IntervalMinutes) * time.Minute)
		if err := w.store.MarkReminderSent(ctx, t.ChannelID, now, next); err != nil {
			log.Error("reminder: failed to mark reminder sent", zap.Error(err))
		}
	}
}

// sendChunks posts messages in order and stops at the first failure.
func (w *reminderWorker) sendChunks(ctx context.Context, channelID string, messages []string) error {
	for _, m := range messages {
		if err := w.sendWithRetry(ctx, channelID, m); err != nil {
			return err
		}
	}
	return nil
}

func (w *reminderWorker) sendWithRetry(ctx context.Context, channelID, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := w.session.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		w.pause(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
