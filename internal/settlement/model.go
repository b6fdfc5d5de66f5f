package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Share is one participant's raw pre-tax contribution to an expense.
type Share struct {
	Participant string          `json:"participant"`
	Amount      decimal.Decimal `json:"amount"`
}

// LedgerRow is one expense. Contributions keep the ledger's column order.
type LedgerRow struct {
	Name          string          `json:"name"`
	Total         decimal.Decimal `json:"total"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Payer         string          `json:"payer"`
	Contributions []Share         `json:"contributions"`
}

// Sum returns the sum of the row's raw contributions.
func (r LedgerRow) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range r.Contributions {
		sum = sum.Add(s.Amount)
	}
	return sum
}

// Share returns the participant's raw contribution and whether the row has a column for them.
func (r LedgerRow) Share(participant string) (decimal.Decimal, bool) {
	for _, s := range r.Contributions {
		if s.Participant == participant {
			return s.Amount, true
		}
	}
	return decimal.Zero, false
}

// TaxedRow is a validated copy of a LedgerRow carrying its implicit tax factor.
type TaxedRow struct {
	LedgerRow
	TaxFactor decimal.Decimal
}

// PaymentEntry means Debtor pays Creditor Amount.
type PaymentEntry struct {
	Debtor   string          `json:"debtor"`
	Creditor string          `json:"creditor"`
	Amount   decimal.Decimal `json:"amount"`
}

// Equal reports whether both entries name the same pair and numerically equal amounts.
func (p PaymentEntry) Equal(other PaymentEntry) bool {
	return p.Debtor == other.Debtor && p.Creditor == other.Creditor && p.Amount.Equal(other.Amount)
}

func (p PaymentEntry) String() string {
	return fmt.Sprintf("%s pays %s %s", p.Debtor, p.Creditor, p.Amount.String())
}

// Balance is a single participant's position in a NetBalance.
type Balance struct {
	Participant string          `json:"participant"`
	Amount      decimal.Decimal `json:"amount"`
}
