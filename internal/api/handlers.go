package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/susu3304/warikanbot/internal/logger"
	"github.com/susu3304/warikanbot/internal/settlement"
	"go.uber.org/zap"
)

type expenseView struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	Total     decimal.Decimal    `json:"total"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	Payer     string             `json:"payer"`
	Shares    []settlement.Share `json:"shares"`
	CreatedBy string             `json:"created_by"`
	CreatedAt time.Time          `json:"created_at"`
}

type transferView struct {
	ID       int64           `json:"id"`
	RunID    string          `json:"run_id"`
	Debtor   string          `json:"debtor"`
	Creditor string          `json:"creditor"`
	Amount   decimal.Decimal `json:"amount"`
}

// Protected handlers
func (a *API) handleUserGuilds(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	guilds, err := a.userGuilds(r.Context(), claims.AccessToken)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to get guilds: "+err.Error())
		return
	}

	ledgerIDs, err := a.index.LedgerGuilds(r.Context())
	if err != nil {
		logger.L.Error("failed to list ledger guilds", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get ledger guilds")
		return
	}
	withLedger := make(map[string]bool, len(ledgerIDs))
	for _, id := range ledgerIDs {
		withLedger[strconv.FormatInt(id, 10)] = true
	}

	filtered := make([]DiscordGuild, 0, len(guilds))
	for _, guild := range guilds {
		if withLedger[guild.ID] {
			filtered = append(filtered, guild)
		}
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (a *API) handleListChannels(w http.ResponseWriter, r *http.Request) {
	guildID, ok := a.authorizeGuild(w, r)
	if !ok {
		return
	}
	channels, err := a.index.LedgerChannels(r.Context(), guildID)
	if err != nil {
		logger.L.Error("failed to list ledger channels", zap.Int64("guild_id", guildID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list channels")
		return
	}
	if channels == nil {
		channels = []string{}
	}
	writeJSON(w, http.StatusOK, channels)
}

// channelAccessMiddleware lets a request through only when the caller can
// see the guild and the channel has a ledger in it.
func (a *API) channelAccessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		guildID, ok := a.authorizeGuild(w, r)
		if !ok {
			return
		}
		channelID := mux.Vars(r)["channel_id"]
		channels, err := a.index.LedgerChannels(r.Context(), guildID)
		if err != nil {
			logger.L.Error("failed to list ledger channels", zap.Int64("guild_id", guildID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list channels")
			return
		}
		for _, c := range channels {
			if c == channelID {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusNotFound, "no ledger in this channel")
	})
}

// authorizeGuild parses guild_id and checks the caller is a member. It writes
// the error response itself when the answer is no.
func (a *API) authorizeGuild(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["guild_id"]
	guildID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guild_id")
		return 0, false
	}

	claims := claimsFrom(r.Context())
	allowed, err := a.userHasGuildAccess(r.Context(), claims.AccessToken, raw)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to get guilds: "+err.Error())
		return 0, false
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "forbidden")
		return 0, false
	}
	return guildID, true
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := a.warikan.Expenses(r.Context(), mux.Vars(r)["channel_id"])
	if err != nil {
		writeSettleError(w, err)
		return
	}
	views := make([]expenseView, 0, len(expenses))
	for _, e := range expenses {
		views = append(views, expenseView{
			ID:        e.ID,
			Name:      e.Name,
			Total:     e.Total,
			Subtotal:  e.Subtotal,
			Payer:     e.Payer,
			Shares:    e.Shares,
			CreatedBy: e.CreatedBy,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleBalances(w http.ResponseWriter, r *http.Request) {
	b, err := a.warikan.Balances(r.Context(), mux.Vars(r)["channel_id"])
	if err != nil {
		writeSettleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"balances": b.Balances()})
}

func (a *API) handleChannelSettle(w http.ResponseWriter, r *http.Request) {
	res, err := a.warikan.Settle(r.Context(), mux.Vars(r)["channel_id"])
	if err != nil {
		writeSettleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   res.RunID,
		"entries":  res.Entries,
		"balances": res.Balances.Balances(),
		"summary":  res.Summary,
	})
}

func (a *API) handleTransfers(w http.ResponseWriter, r *http.Request) {
	pending, err := a.warikan.PendingTransfers(r.Context(), mux.Vars(r)["channel_id"])
	if err != nil {
		writeSettleError(w, err)
		return
	}
	views := make([]transferView, 0, len(pending))
	for _, t := range pending {
		views = append(views, transferView{ID: t.ID, RunID: t.RunID, Debtor: t.Debtor, Creditor: t.Creditor, Amount: t.Amount})
	}
	writeJSON(w, http.StatusOK, views)
}
