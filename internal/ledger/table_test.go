package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/warikanbot/internal/settlement"
)

const skiTrip = "\ufeffExpense Name,Total,Subtotal,Payer,Alice,Bob,Carol,Unused\n" +
	"Cabin,\"$1,150.00\",1000,Alice,400,300,300,\n" +
	",,,,,,,\n" +
	"Lift passes,240,240,Bob,80,80,80\n"

func TestReadCSV(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(skiTrip))
	require.NoError(t, err)

	assert.Equal(t, "Expense Name", table.Header[0])
	require.Len(t, table.Rows, 3)
	assert.Len(t, table.Rows[2], len(table.Header), "short rows are padded")
	assert.Equal(t, "", table.Rows[2][7])
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = ReadCSV(strings.NewReader("Expense Name,Total,Subtotal,Payer,A\nx,1,1,A,1,surprise\n"))
	assert.ErrorIs(t, err, ErrExtraCell)
}

func TestClean(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(skiTrip))
	require.NoError(t, err)

	cleaned := table.Clean()
	assert.Equal(t, []string{"Expense Name", "Total", "Subtotal", "Payer", "Alice", "Bob", "Carol"}, cleaned.Header)
	require.Len(t, cleaned.Rows, 2)
	assert.Equal(t, "Lift passes", cleaned.Rows[1][0])
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, cleaned.Participants())

	// The original table is left alone.
	assert.Len(t, table.Header, 8)
	assert.Len(t, table.Rows, 3)
}

func TestLedgerRows(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(skiTrip))
	require.NoError(t, err)

	rows, err := table.Clean().LedgerRows()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	cabin := rows[0]
	assert.Equal(t, "Cabin", cabin.Name)
	assert.Equal(t, "1150", cabin.Total.String())
	assert.Equal(t, "1000", cabin.Subtotal.String())
	assert.Equal(t, "Alice", cabin.Payer)
	require.Len(t, cabin.Contributions, 3)
	assert.Equal(t, "Bob", cabin.Contributions[1].Participant)
	assert.Equal(t, "300", cabin.Contributions[1].Amount.String())

	entries, err := settlement.Compute(rows)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Bob", entries[0].Debtor)
	assert.Equal(t, "Alice", entries[0].Creditor)
	assert.Equal(t, "185", entries[0].Amount.String())
	assert.Equal(t, "Carol", entries[1].Debtor)
	assert.Equal(t, "Alice", entries[1].Creditor)
	assert.Equal(t, "425", entries[1].Amount.String())
}

func TestLedgerRowsErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want error
	}{
		{
			name: "missing fixed columns",
			csv:  "Expense Name,Total,Payer,Alice\nx,1,Alice,1\n",
			want: ErrMissingColumns,
		},
		{
			name: "too few columns",
			csv:  "Expense Name,Total\nx,1\n",
			want: ErrMissingColumns,
		},
		{
			name: "no participants",
			csv:  "Expense Name,Total,Subtotal,Payer\nx,1,1,Alice\n",
			want: ErrNoParticipants,
		},
		{
			name: "empty participant cell",
			csv:  "Expense Name,Total,Subtotal,Payer,Alice,Bob\nx,10,10,Alice,10,\ny,5,5,Bob,0,5\n",
			want: ErrMissingCell,
		},
		{
			name: "empty payer",
			csv:  "Expense Name,Total,Subtotal,Payer,Alice\nx,10,10,,10\ny,5,5,Alice,5\n",
			want: ErrMissingCell,
		},
		{
			name: "bad amount",
			csv:  "Expense Name,Total,Subtotal,Payer,Alice\nx,ten,10,Alice,10\n",
			want: ErrBadAmount,
		},
		{
			name: "duplicate participant",
			csv:  "Expense Name,Total,Subtotal,Payer,Alice,Alice\nx,10,10,Alice,5,5\n",
			want: settlement.ErrDuplicateParticipant,
		},
		{
			name: "zero subtotal",
			csv:  "Expense Name,Total,Subtotal,Payer,Alice\nx,10,0,Alice,10\n",
			want: settlement.ErrZeroSubtotal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadCSV(strings.NewReader(tt.csv))
			require.NoError(t, err)
			_, err = table.Clean().LedgerRows()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSameColumnIsLenient(t *testing.T) {
	table := &Table{
		Header: []string{"expense_name", " TOTAL ", "Sub-total", "payer", "Alice"},
		Rows:   [][]string{{"x", "1", "1", "Alice", "1"}},
	}
	rows, err := table.LedgerRows()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "12.5", want: "12.5"},
		{in: " $1,234.50 ", want: "1234.5"},
		{in: "¥3000", want: "3000"},
		{in: "-$4", want: "-4"},
		{in: "0", want: "0"},
		{in: "$", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "--5", wantErr: true},
		{in: "-$-5", wantErr: true},
		{in: "+5", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "2E-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
