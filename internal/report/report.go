// Package report renders settlement results for people to read.
package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/susu3304/warikanbot/internal/settlement"
)

// DiscordLimit is the maximum length of one Discord message.
const DiscordLimit = 2000

// NoSettlement is shown when nobody owes anyone.
const NoSettlement = "No settlement needed"

// Participant renders a participant id; Discord user ids become mentions.
func Participant(id string) string {
	if allDigits(id) {
		return fmt.Sprintf("<@%s>", id)
	}
	return id
}

// Money renders an amount to two places after the currency symbol.
func Money(symbol string, amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-" + symbol + amount.Abs().StringFixed(2)
	}
	return symbol + amount.StringFixed(2)
}

// Format renders one entry as "<debtor> pays <creditor> <amount>".
func Format(e settlement.PaymentEntry, symbol string) string {
	return fmt.Sprintf("%s pays %s %s", Participant(e.Debtor), Participant(e.Creditor), Money(symbol, e.Amount))
}

func Lines(entries []settlement.PaymentEntry, symbol string) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Format(e, symbol))
	}
	return lines
}

// BalanceLines lists each participant's position in ledger order. Residue
// within settlement.Dust reads as settled.
func BalanceLines(b *settlement.NetBalance, symbol string) []string {
	var lines []string
	for _, bal := range b.Balances() {
		switch {
		case bal.Amount.GreaterThan(settlement.Dust):
			lines = append(lines, fmt.Sprintf("%s is owed %s", Participant(bal.Participant), Money(symbol, bal.Amount)))
		case bal.Amount.LessThan(settlement.Dust.Neg()):
			lines = append(lines, fmt.Sprintf("%s owes %s", Participant(bal.Participant), Money(symbol, bal.Amount.Abs())))
		default:
			lines = append(lines, fmt.Sprintf("%s is settled", Participant(bal.Participant)))
		}
	}
	return lines
}

// Summary is the full settlement text, one transfer per line.
func Summary(entries []settlement.PaymentEntry, symbol string) string {
	if len(entries) == 0 {
		return NoSettlement
	}
	var b strings.Builder
	b.WriteString("Transfers:\n")
	for _, line := range Lines(entries, symbol) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// Chunk joins lines into messages no longer than limit. A single line
// longer than limit is split on a rune boundary.
func Chunk(lines []string, limit int) []string {
	var chunks []string
	var buffer strings.Builder
	for _, line := range lines {
		for len(line) > limit {
			if buffer.Len() > 0 {
				chunks = append(chunks, buffer.String())
				buffer.Reset()
			}
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if buffer.Len() > 0 && buffer.Len()+len(line)+1 > limit {
			chunks = append(chunks, buffer.String())
			buffer.Reset()
		}
		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
	}
	if buffer.Len() > 0 {
		chunks = append(chunks, buffer.String())
	}
	return chunks
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
