package settlement

import (
	"github.com/shopspring/decimal"
)

// NetBalance maps participants to their signed position, in first-seen order.
// Negative means the participant owes money, positive means they are owed.
type NetBalance struct {
	order   []string
	amounts map[string]decimal.Decimal
}

func NewNetBalance() *NetBalance {
	return &NetBalance{amounts: make(map[string]decimal.Decimal)}
}

// Add moves participant's balance by amount, registering them on first sight.
func (b *NetBalance) Add(participant string, amount decimal.Decimal) {
	cur, ok := b.amounts[participant]
	if !ok {
		b.order = append(b.order, participant)
		cur = decimal.Zero
	}
	b.amounts[participant] = cur.Add(amount)
}

// Participants returns participants in first-seen order.
func (b *NetBalance) Participants() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Amount returns a participant's balance, zero when unknown.
func (b *NetBalance) Amount(participant string) decimal.Decimal {
	if amt, ok := b.amounts[participant]; ok {
		return amt
	}
	return decimal.Zero
}

func (b *NetBalance) Len() int {
	return len(b.order)
}

// Sum is zero, within tolerance, for any validated ledger.
func (b *NetBalance) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range b.order {
		sum = sum.Add(b.amounts[p])
	}
	return sum
}

// Balances lists every participant's position in order.
func (b *NetBalance) Balances() []Balance {
	out := make([]Balance, 0, len(b.order))
	for _, p := range b.order {
		out = append(out, Balance{Participant: p, Amount: b.amounts[p]})
	}
	return out
}

func (b *NetBalance) Clone() *NetBalance {
	c := &NetBalance{
		order:   make([]string, len(b.order)),
		amounts: make(map[string]decimal.Decimal, len(b.amounts)),
	}
	copy(c.order, b.order)
	for p, amt := range b.amounts {
		c.amounts[p] = amt
	}
	return c
}

// Apply returns a copy with the payments applied: each debtor moves up and
// each creditor moves down by the entry amount.
func (b *NetBalance) Apply(entries []PaymentEntry) *NetBalance {
	c := b.Clone()
	for _, e := range entries {
		c.Add(e.Debtor, e.Amount)
		c.Add(e.Creditor, e.Amount.Neg())
	}
	return c
}

// SignedContributions converts one validated row into signed amounts per
// participant column. The payer is credited the total they advanced less
// their own taxed share; everyone else is debited their taxed share.
// A payer with no column in the row is credited the full total last.
func SignedContributions(row TaxedRow) []Share {
	out := make([]Share, 0, len(row.Contributions)+1)
	payerSeen := false
	for _, s := range row.Contributions {
		taxed := s.Amount.Mul(row.TaxFactor)
		if s.Participant == row.Payer {
			payerSeen = true
			out = append(out, Share{Participant: s.Participant, Amount: row.Total.Sub(taxed)})
			continue
		}
		out = append(out, Share{Participant: s.Participant, Amount: taxed.Neg()})
	}
	if !payerSeen {
		out = append(out, Share{Participant: row.Payer, Amount: row.Total})
	}
	return out
}

// Accumulate sums every row's signed contributions into one NetBalance,
// ordered by the participant columns' first appearance.
func Accumulate(rows []TaxedRow) *NetBalance {
	balances := NewNetBalance()
	for _, row := range rows {
		for _, s := range row.Contributions {
			balances.Add(s.Participant, decimal.Zero)
		}
	}
	for _, row := range rows {
		for _, s := range SignedContributions(row) {
			balances.Add(s.Participant, s.Amount)
		}
	}
	return balances
}
