package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/susu3304/warikanbot/internal/commands"
	"github.com/susu3304/warikanbot/internal/logger"
	"github.com/susu3304/warikanbot/internal/report"
	"github.com/susu3304/warikanbot/internal/warikan"
	"go.uber.org/zap"
)

// SettleShortcut settles the channel ledger from a plain message.
const SettleShortcut = "!settle"

type Bot struct {
	session  *discordgo.Session
	warikan  *warikan.Service
	handler  *commands.Warikan
	reminder *reminderWorker
}

// New creates the bot. webBase is linked from /warikan list.
func New(token, webBase string, svc *warikan.Service, reminders ReminderStore) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session: session,
		warikan: svc,
		handler: commands.NewWarikan(svc, webBase, nil),
	}
	if reminders != nil {
		bot.reminder = newReminderWorker(session, reminders, svc)
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onMessageCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.reminder.start()
	logger.L.Info("discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	b.reminder.stop()
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	logger.L.Info("connected to discord", zap.String("user", event.User.Username))

	// Register commands for all guilds
	for _, guild := range event.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			logger.L.Error("failed to register commands", zap.String("guild_id", guild.ID), zap.Error(err))
		}
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	logger.L.Info("guild available, ensuring commands", zap.String("guild", event.Name), zap.String("guild_id", event.ID))
	if err := b.registerGuildCommands(event.ID); err != nil {
		logger.L.Error("failed to register commands", zap.String("guild_id", event.ID), zap.Error(err))
	}
}

func (b *Bot) registerGuildCommands(guildID string) error {
	// Delete existing commands and register new ones
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, guildID, commands.GetCommands())
	if err != nil {
		return err
	}

	logger.L.Info("registered application commands", zap.String("guild_id", guildID))
	return nil
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if !strings.EqualFold(strings.TrimSpace(m.Content), SettleShortcut) {
		return
	}
	for _, msg := range settleMessages(b.warikan, m.ChannelID) {
		if _, err := s.ChannelMessageSend(m.ChannelID, msg); err != nil {
			logger.L.Warn("failed to send settlement", zap.String("channel_id", m.ChannelID), zap.Error(err))
		}
	}
}

// settleMessages settles a channel for the text shortcut and renders the outcome.
func settleMessages(svc *warikan.Service, channelID string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := svc.Settle(ctx, channelID)
	if err != nil {
		return []string{"Settlement failed: " + err.Error()}
	}
	lines := strings.Split(strings.TrimRight(res.Summary, "\n"), "\n")
	return report.Chunk(lines, report.DiscordLimit)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name == "warikan" {
		b.handler.Handle(s, i)
	}
}
