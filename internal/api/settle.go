package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/logger"
	"github.com/susu3304/warikanbot/internal/settlement"
	"github.com/susu3304/warikanbot/internal/warikan"
	"go.uber.org/zap"
)

const maxSettleBody = 1 << 20

type settleRequest struct {
	Tolerance *decimal.Decimal       `json:"tolerance"`
	Rows      []settlement.LedgerRow `json:"rows"`
}

type settleResponse struct {
	Entries  []settlement.PaymentEntry `json:"entries"`
	Balances []settlement.Balance      `json:"balances"`
}

type checksumResponse struct {
	Error   string `json:"error"`
	Row     int    `json:"row"`
	Expense string `json:"expense"`
}

var errBadTolerance = errors.New("tolerance must be a non-negative number")

// handlePublicSettle settles a ledger sent in the request without storing it.
// The body is either JSON rows or a CSV table.
func (a *API) handlePublicSettle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSettleBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var rows []settlement.LedgerRow
	var tolerance *decimal.Decimal
	switch mediaType {
	case "text/csv":
		table, err := ledger.ReadCSV(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if rows, err = table.Clean().LedgerRows(); err != nil {
			writeSettleError(w, err)
			return
		}
		if raw := r.URL.Query().Get("tolerance"); raw != "" {
			t, err := decimal.NewFromString(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, errBadTolerance.Error())
				return
			}
			tolerance = &t
		}
	case "application/json", "":
		var req settleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		rows, tolerance = req.Rows, req.Tolerance
	default:
		writeError(w, http.StatusUnsupportedMediaType, "send application/json or text/csv")
		return
	}

	var res *settlement.Result
	var err error
	if tolerance != nil {
		if tolerance.IsNegative() {
			writeError(w, http.StatusBadRequest, errBadTolerance.Error())
			return
		}
		res, err = settlement.NewEngine(settlement.WithTolerance(*tolerance)).Settle(rows)
	} else {
		res, err = a.warikan.SettleRows(rows)
	}
	if err != nil {
		writeSettleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settleResponse{Entries: res.Entries, Balances: res.Balances.Balances()})
}

// writeSettleError maps ledger and settlement failures to status codes.
func writeSettleError(w http.ResponseWriter, err error) {
	var cerr *settlement.ChecksumError
	switch {
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusUnprocessableEntity, checksumResponse{
			Error:   cerr.Error(),
			Row:     cerr.Row + 1,
			Expense: cerr.Name,
		})
	case errors.Is(err, warikan.ErrEmptyLedger):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settlement.ErrZeroSubtotal),
		errors.Is(err, settlement.ErrNoContributions),
		errors.Is(err, settlement.ErrDuplicateParticipant),
		errors.Is(err, settlement.ErrUnknownPayer),
		errors.Is(err, settlement.ErrBlankParticipant),
		errors.Is(err, ledger.ErrNoHeader),
		errors.Is(err, ledger.ErrMissingColumns),
		errors.Is(err, ledger.ErrNoParticipants),
		errors.Is(err, ledger.ErrMissingCell),
		errors.Is(err, ledger.ErrBadAmount),
		errors.Is(err, ledger.ErrExtraCell):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.L.Error("settlement request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
