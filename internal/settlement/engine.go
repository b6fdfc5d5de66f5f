// Package settlement turns a group expense ledger into the transfers that
// square everyone up: validate each expense against its taxed total,
// accumulate signed balances, then match debtors to creditors greedily.
package settlement

import (
	"github.com/shopspring/decimal"
)

type Engine struct {
	tolerance decimal.Decimal
}

type Option func(*Engine)

// WithTolerance sets the checksum slack allowed per participant column.
func WithTolerance(perParticipant decimal.Decimal) Option {
	return func(e *Engine) {
		e.tolerance = perParticipant
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Tolerance() decimal.Decimal {
	return e.tolerance
}

type Result struct {
	Rows     []TaxedRow
	Balances *NetBalance
	Entries  []PaymentEntry
}

// Balances validates the ledger and returns its accumulated net balance.
func (e *Engine) Balances(rows []LedgerRow) (*NetBalance, error) {
	taxed, err := Validate(rows, e.tolerance)
	if err != nil {
		return nil, err
	}
	return Accumulate(taxed), nil
}

// Settle runs all three stages. Nothing is returned when validation fails.
func (e *Engine) Settle(rows []LedgerRow) (*Result, error) {
	taxed, err := Validate(rows, e.tolerance)
	if err != nil {
		return nil, err
	}
	balances := Accumulate(taxed)
	return &Result{
		Rows:     taxed,
		Balances: balances,
		Entries:  Match(balances),
	}, nil
}

// Compute settles rows with the default tolerance and returns the transfers.
func Compute(rows []LedgerRow) ([]PaymentEntry, error) {
	res, err := NewEngine().Settle(rows)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}
