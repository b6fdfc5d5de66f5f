package settlement

import (
	"github.com/shopspring/decimal"
)

// Dust is the largest balance magnitude treated as settled. It absorbs the
// residue left by dividing by subtotals such as 3.
var Dust = decimal.New(1, -9)

func owes(amount decimal.Decimal) bool {
	return amount.LessThan(Dust.Neg())
}

func isOwed(amount decimal.Decimal) bool {
	return amount.GreaterThan(Dust)
}

// Match pairs debtors with creditors greedily. Both scans follow the
// balance's participant order, so the first unresolved debtor always meets
// the first unresolved creditor. The given balance is not modified.
func Match(balances *NetBalance) []PaymentEntry {
	remaining := balances.Clone()
	entries := []PaymentEntry{}

	for _, debtor := range remaining.order {
		if !owes(remaining.amounts[debtor]) {
			continue
		}
		for _, creditor := range remaining.order {
			credit := remaining.amounts[creditor]
			if !isOwed(credit) {
				continue
			}
			debt := remaining.amounts[debtor]
			transfer := decimal.Min(debt.Abs(), credit)

			remaining.amounts[debtor] = debt.Add(transfer)
			remaining.amounts[creditor] = credit.Sub(transfer)
			entries = append(entries, PaymentEntry{Debtor: debtor, Creditor: creditor, Amount: transfer})

			if !owes(remaining.amounts[debtor]) {
				break
			}
		}
	}
	return entries
}
