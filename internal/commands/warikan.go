package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/logger"
	"github.com/susu3304/warikanbot/internal/report"
	"github.com/susu3304/warikanbot/internal/settlement"
	"github.com/susu3304/warikanbot/internal/warikan"
	"go.uber.org/zap"
)

// MaxAttachmentSize bounds CSV imports.
const MaxAttachmentSize = 1 << 20

// FetchFunc downloads an attachment body.
type FetchFunc func(ctx context.Context, url string) (io.ReadCloser, error)

// Responder is the part of *discordgo.Session the handler talks to.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Invocation is one /warikan call stripped of transport details.
type Invocation struct {
	GuildID    string
	ChannelID  string
	UserID     string
	Sub        string
	Options    map[string]*discordgo.ApplicationCommandInteractionDataOption
	Attachment *discordgo.MessageAttachment
}

type Warikan struct {
	svc     *warikan.Service
	webBase string
	fetch   FetchFunc
}

// NewWarikan builds the /warikan handler. webBase is the web UI root that
// /warikan list links to; empty leaves the link out.
func NewWarikan(svc *warikan.Service, webBase string, fetch FetchFunc) *Warikan {
	if fetch == nil {
		fetch = FetchAttachment
	}
	return &Warikan{svc: svc, webBase: strings.TrimRight(webBase, "/"), fetch: fetch}
}

// Handle answers a /warikan interaction. Replies longer than one Discord
// message continue as plain channel messages.
func (w *Warikan) Handle(s Responder, i *discordgo.InteractionCreate) {
	inv, ok := invocationFrom(i)
	if !ok {
		respondText(s, i, "No subcommand given")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messages := w.Execute(ctx, inv)
	if len(messages) == 0 {
		messages = []string{"Done"}
	}
	respondText(s, i, messages[0])
	for _, m := range messages[1:] {
		if _, err := s.ChannelMessageSend(i.ChannelID, m); err != nil {
			logger.L.Warn("failed to send follow-up", zap.String("channel_id", i.ChannelID), zap.Error(err))
		}
	}
}

// Execute runs a subcommand and returns the reply split into Discord-sized messages.
func (w *Warikan) Execute(ctx context.Context, inv Invocation) []string {
	symbol := w.svc.Symbol()

	switch inv.Sub {
	case "add":
		row, err := rowFromOptions(inv)
		if err != nil {
			return []string{err.Error()}
		}
		id, err := w.svc.AddExpense(ctx, ParseGuildID(inv.GuildID), inv.ChannelID, inv.UserID, row)
		if err != nil {
			return []string{errorText(err)}
		}
		return []string{fmt.Sprintf("Recorded #%d %s: %s paid by %s",
			id, row.Name, report.Money(symbol, row.Total), report.Participant(row.Payer))}

	case "import":
		if inv.Attachment == nil {
			return []string{"Attach a CSV file"}
		}
		if inv.Attachment.Size > MaxAttachmentSize {
			return []string{"That file is too large"}
		}
		body, err := w.fetch(ctx, inv.Attachment.URL)
		if err != nil {
			logger.L.Error("attachment download failed", zap.String("url", inv.Attachment.URL), zap.Error(err))
			return []string{"Could not download the attachment"}
		}
		defer body.Close()
		n, err := w.svc.ImportCSV(ctx, ParseGuildID(inv.GuildID), inv.ChannelID, inv.UserID, io.LimitReader(body, MaxAttachmentSize))
		if err != nil {
			return []string{errorText(err)}
		}
		return []string{fmt.Sprintf("Imported %d expenses from %s", n, inv.Attachment.Filename)}

	case "list":
		expenses, err := w.svc.Expenses(ctx, inv.ChannelID)
		if err != nil {
			return []string{errorText(err)}
		}
		if len(expenses) == 0 {
			return []string{"No expenses recorded yet"}
		}
		lines := make([]string, 0, len(expenses))
		for _, e := range expenses {
			lines = append(lines, expenseLine(e, symbol))
		}
		if w.webBase != "" && inv.GuildID != "" {
			lines = append(lines, fmt.Sprintf("Web UI: %s/guilds/%s", w.webBase, inv.GuildID))
		}
		return report.Chunk(lines, report.DiscordLimit)

	case "remove":
		id := intOption(inv.Options, "id")
		if err := w.svc.RemoveExpense(ctx, inv.ChannelID, id); err != nil {
			return []string{errorText(err)}
		}
		return []string{fmt.Sprintf("Removed #%d", id)}

	case "balance":
		b, err := w.svc.Balances(ctx, inv.ChannelID)
		if err != nil {
			return []string{errorText(err)}
		}
		return report.Chunk(report.BalanceLines(b, symbol), report.DiscordLimit)

	case "settle":
		res, err := w.svc.Settle(ctx, inv.ChannelID)
		if err != nil {
			return []string{errorText(err)}
		}
		return report.Chunk(strings.Split(strings.TrimRight(res.Summary, "\n"), "\n"), report.DiscordLimit)

	case "done":
		other := userOption(inv.Options, "user")
		if other == "" {
			return []string{"Pick the other side of the transfer"}
		}
		t, err := w.svc.CompleteTransfer(ctx, inv.ChannelID, inv.UserID, other)
		if err != nil {
			return []string{errorText(err)}
		}
		return []string{"Marked as paid: " + report.Format(t.Entry(), symbol)}

	case "reset":
		if err := w.svc.Reset(ctx, inv.ChannelID); err != nil {
			return []string{errorText(err)}
		}
		return []string{"Ledger cleared"}

	case "remind":
		minutes := intOption(inv.Options, "minutes")
		if err := w.svc.SetReminder(ctx, inv.ChannelID, int(minutes)); err != nil {
			return []string{errorText(err)}
		}
		if minutes == 0 {
			return []string{"Reminders turned off"}
		}
		return []string{fmt.Sprintf("Outstanding transfers will be posted every %d minutes", minutes)}
	}
	return []string{"Unknown subcommand"}
}

// rowFromOptions builds an expense row from the add subcommand's options.
func rowFromOptions(inv Invocation) (settlement.LedgerRow, error) {
	row := settlement.LedgerRow{
		Name:  strings.TrimSpace(stringOption(inv.Options, "name")),
		Payer: participantID(stringOption(inv.Options, "payer")),
	}
	if row.Payer == "" {
		row.Payer = inv.UserID
	}

	var err error
	if row.Total, err = ledger.ParseAmount(stringOption(inv.Options, "total")); err != nil {
		return row, fmt.Errorf("total: %w", err)
	}
	if row.Contributions, err = parseShares(stringOption(inv.Options, "shares")); err != nil {
		return row, fmt.Errorf("shares: %w", err)
	}
	if raw := stringOption(inv.Options, "subtotal"); strings.TrimSpace(raw) != "" {
		if row.Subtotal, err = ledger.ParseAmount(raw); err != nil {
			return row, fmt.Errorf("subtotal: %w", err)
		}
	} else {
		row.Subtotal = row.Sum()
	}
	return row, nil
}

func expenseLine(e db.Expense, symbol string) string {
	parts := make([]string, 0, len(e.Shares))
	for _, s := range e.Shares {
		parts = append(parts, report.Participant(s.Participant)+" "+s.Amount.String())
	}
	return fmt.Sprintf("#%d %s: %s (subtotal %s) paid by %s; %s",
		e.ID, e.Name, report.Money(symbol, e.Total), report.Money(symbol, e.Subtotal),
		report.Participant(e.Payer), strings.Join(parts, ", "))
}

// errorText maps service errors to something worth showing in the channel.
func errorText(err error) string {
	var cerr *settlement.ChecksumError
	switch {
	case errors.As(err, &cerr):
		return fmt.Sprintf("Expense %q does not add up: shares are off by %s after tax, at most %s allowed",
			cerr.Name, cerr.Checksum.StringFixed(4), cerr.MaxError.String())
	case errors.Is(err, warikan.ErrEmptyLedger):
		return "No expenses recorded yet"
	case errors.Is(err, settlement.ErrUnknownPayer):
		return "The payer must have a share somewhere in the ledger. Add them with a 0 share if they paid for others."
	case errors.Is(err, db.ErrNotFound):
		return "No matching pending transfer"
	case errors.Is(err, warikan.ErrNoSuchExpense),
		errors.Is(err, warikan.ErrSelfTransfer),
		errors.Is(err, warikan.ErrBadInterval),
		errors.Is(err, warikan.ErrEmptyImport),
		errors.Is(err, settlement.ErrZeroSubtotal),
		errors.Is(err, settlement.ErrDuplicateParticipant),
		errors.Is(err, settlement.ErrBlankParticipant),
		errors.Is(err, settlement.ErrNoContributions),
		errors.Is(err, ledger.ErrNoHeader),
		errors.Is(err, ledger.ErrMissingColumns),
		errors.Is(err, ledger.ErrNoParticipants),
		errors.Is(err, ledger.ErrMissingCell),
		errors.Is(err, ledger.ErrBadAmount),
		errors.Is(err, ledger.ErrExtraCell):
		return err.Error()
	}
	logger.L.Error("warikan command failed", zap.Error(err))
	return "Something went wrong, try again later"
}

func invocationFrom(i *discordgo.InteractionCreate) (Invocation, bool) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return Invocation{}, false
	}
	sub := data.Options[0]
	inv := Invocation{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Sub:       sub.Name,
		Options:   make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options)),
	}
	if i.Member != nil && i.Member.User != nil {
		inv.UserID = i.Member.User.ID
	} else if i.User != nil {
		inv.UserID = i.User.ID
	}
	for _, o := range sub.Options {
		inv.Options[o.Name] = o
	}
	if o, ok := inv.Options["file"]; ok && data.Resolved != nil {
		if id, ok := o.Value.(string); ok {
			inv.Attachment = data.Resolved.Attachments[id]
		}
	}
	return inv, true
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionString {
		return o.StringValue()
	}
	return ""
}

func intOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionInteger {
		return o.IntValue()
	}
	return 0
}

func userOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionUser {
		if id, ok := o.Value.(string); ok {
			return id
		}
	}
	return ""
}

func respondText(s Responder, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		logger.L.Warn("failed to respond to interaction", zap.Error(err))
	}
}

// FetchAttachment downloads a Discord attachment URL.
func FetchAttachment(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("attachment download returned %s", resp.Status)
	}
	return resp.Body, nil
}
