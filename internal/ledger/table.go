// Package ledger reads expense tables and turns them into settlement rows.
//
// A table has four fixed leading columns (Expense Name, Total, Subtotal,
// Payer) followed by one column per participant holding that participant's
// pre-tax share of the expense.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/susu3304/warikanbot/internal/settlement"
)

var (
	ErrNoHeader       = errors.New("table has no header row")
	ErrMissingColumns = errors.New("table must start with Expense Name, Total, Subtotal and Payer columns")
	ErrNoParticipants = errors.New("table has no participant columns")
	ErrMissingCell    = errors.New("cell is empty")
	ErrBadAmount      = errors.New("not an amount")
	ErrExtraCell      = errors.New("row has more cells than the header")
)

// FixedColumns are the leading descriptive columns of every ledger table.
var FixedColumns = []string{"Expense Name", "Total", "Subtotal", "Payer"}

type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV reads a table whose first record is the header. Short records are
// padded with empty cells.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoHeader
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Header: header}
	for i, rec := range records[1:] {
		row := make([]string, len(header))
		for j, cell := range rec {
			if j >= len(header) {
				if strings.TrimSpace(cell) != "" {
					return nil, fmt.Errorf("line %d: %w", i+2, ErrExtraCell)
				}
				continue
			}
			row[j] = cell
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Clean returns a copy with cells trimmed, columns whose every data cell is
// empty removed, then rows whose every cell is empty removed.
func (t *Table) Clean() *Table {
	keep := make([]bool, len(t.Header))
	for j := range t.Header {
		for _, row := range t.Rows {
			if strings.TrimSpace(cellAt(row, j)) != "" {
				keep[j] = true
				break
			}
		}
	}

	out := &Table{}
	for j, h := range t.Header {
		if keep[j] {
			out.Header = append(out.Header, strings.TrimSpace(h))
		}
	}
	for _, row := range t.Rows {
		var cells []string
		empty := true
		for j := range t.Header {
			if !keep[j] {
				continue
			}
			cell := strings.TrimSpace(cellAt(row, j))
			if cell != "" {
				empty = false
			}
			cells = append(cells, cell)
		}
		if !empty {
			out.Rows = append(out.Rows, cells)
		}
	}
	return out
}

// Participants returns the participant column names in table order.
func (t *Table) Participants() []string {
	if len(t.Header) <= len(FixedColumns) {
		return nil
	}
	out := make([]string, len(t.Header)-len(FixedColumns))
	copy(out, t.Header[len(FixedColumns):])
	return out
}

// LedgerRows converts the table into settlement rows. Every participant cell
// must hold an amount; empty cells are rejected rather than read as zero.
func (t *Table) LedgerRows() ([]settlement.LedgerRow, error) {
	if len(t.Header) < len(FixedColumns) {
		return nil, ErrMissingColumns
	}
	for i, want := range FixedColumns {
		if !sameColumn(t.Header[i], want) {
			return nil, fmt.Errorf("column %d is %q: %w", i+1, t.Header[i], ErrMissingColumns)
		}
	}
	participants := t.Participants()
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	rows := make([]settlement.LedgerRow, 0, len(t.Rows))
	for i, cells := range t.Rows {
		line := i + 2
		row := settlement.LedgerRow{Name: strings.TrimSpace(cellAt(cells, 0))}

		var err error
		if row.Total, err = amountCell(cells, 1, t.Header, line); err != nil {
			return nil, err
		}
		if row.Subtotal, err = amountCell(cells, 2, t.Header, line); err != nil {
			return nil, err
		}
		row.Payer = strings.TrimSpace(cellAt(cells, 3))
		if row.Payer == "" {
			return nil, fmt.Errorf("line %d, column %q: %w", line, t.Header[3], ErrMissingCell)
		}

		for j, p := range participants {
			col := len(FixedColumns) + j
			amt, err := amountCell(cells, col, t.Header, line)
			if err != nil {
				return nil, err
			}
			row.Contributions = append(row.Contributions, settlement.Share{Participant: strings.TrimSpace(p), Amount: amt})
		}
		if err := settlement.CheckRow(row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func amountCell(cells []string, col int, header []string, line int) (decimal.Decimal, error) {
	raw := strings.TrimSpace(cellAt(cells, col))
	if raw == "" {
		return decimal.Zero, fmt.Errorf("line %d, column %q: %w", line, header[col], ErrMissingCell)
	}
	amt, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("line %d, column %q: %w", line, header[col], err)
	}
	return amt, nil
}

// ParseAmount parses a decimal amount, tolerating a leading currency symbol
// and thousands separators ("$1,234.50").
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimLeft(s, "$¥€£ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrBadAmount
	}
	// One leading sign only, and no exponents.
	if strings.ContainsAny(s, "+-eE") {
		return decimal.Zero, fmt.Errorf("%q: %w", s, ErrBadAmount)
	}
	amt, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", s, ErrBadAmount)
	}
	if neg {
		amt = amt.Neg()
	}
	return amt, nil
}

func cellAt(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}

func sameColumn(got, want string) bool {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
	}
	return norm(got) == norm(want)
}
