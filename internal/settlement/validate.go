package settlement

import (
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the checksum slack allowed per participant column.
var DefaultTolerance = decimal.New(1, -2)

// CheckRow reports structural problems that make a row unusable on its own.
func CheckRow(row LedgerRow) error {
	if row.Subtotal.IsZero() {
		return ErrZeroSubtotal
	}
	if len(row.Contributions) == 0 {
		return ErrNoContributions
	}
	seen := make(map[string]struct{}, len(row.Contributions))
	for _, s := range row.Contributions {
		if s.Participant == "" {
			return ErrBlankParticipant
		}
		if _, dup := seen[s.Participant]; dup {
			return ErrDuplicateParticipant
		}
		seen[s.Participant] = struct{}{}
	}
	return nil
}

// Participants returns every participant column across rows in first-seen order.
func Participants(rows []LedgerRow) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		for _, s := range row.Contributions {
			if _, ok := seen[s.Participant]; ok {
				continue
			}
			seen[s.Participant] = struct{}{}
			out = append(out, s.Participant)
		}
	}
	return out
}

// MaxError is the largest checksum a row may have in a ledger with the given
// number of participant columns.
func MaxError(tolerance decimal.Decimal, participants int) decimal.Decimal {
	return tolerance.Mul(decimal.NewFromInt(int64(participants)))
}

// Validate computes each row's implicit tax factor and checks that its
// contributions, once taxed, add up to its total within tolerance per
// participant column. A single bad row rejects the whole ledger.
// The returned rows are copies; the input is left untouched.
func Validate(rows []LedgerRow, tolerance decimal.Decimal) ([]TaxedRow, error) {
	for i, row := range rows {
		if err := CheckRow(row); err != nil {
			return nil, rowError(i, row, err)
		}
	}

	participants := Participants(rows)
	known := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		known[p] = struct{}{}
	}
	maxError := MaxError(tolerance, len(participants))

	taxed := make([]TaxedRow, 0, len(rows))
	for i, row := range rows {
		if _, ok := known[row.Payer]; !ok {
			return nil, rowError(i, row, ErrUnknownPayer)
		}
		factor := row.Total.Div(row.Subtotal)
		checksum := row.Sum().Mul(factor).Sub(row.Total).Abs()
		if checksum.GreaterThan(maxError) {
			return nil, &ChecksumError{Row: i, Name: row.Name, Checksum: checksum, MaxError: maxError}
		}
		taxed = append(taxed, TaxedRow{LedgerRow: copyRow(row), TaxFactor: factor})
	}
	return taxed, nil
}

func copyRow(row LedgerRow) LedgerRow {
	shares := make([]Share, len(row.Contributions))
	copy(shares, row.Contributions)
	row.Contributions = shares
	return row
}
