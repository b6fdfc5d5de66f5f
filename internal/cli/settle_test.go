package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/warikanbot/internal/settlement"
)

const dinnerCSV = "Expense Name,Total,Subtotal,Payer,Person1,Person2,Person3\n" +
	"Expense 1,15,10,Person1,6,3,1\n"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSettleFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(dinnerCSV), 0o600))

	out, err := execute(t, "", "settle", path)
	require.NoError(t, err)
	assert.Equal(t, "Person2 pays Person1 $4.50\nPerson3 pays Person1 $1.50\n", out)
}

func TestSettleFromStdinWithBalances(t *testing.T) {
	out, err := execute(t, dinnerCSV, "settle", "-", "--currency", "¥", "--balances")
	require.NoError(t, err)
	assert.Equal(t, "Person2 pays Person1 ¥4.50\n"+
		"Person3 pays Person1 ¥1.50\n"+
		"\nBalances:\n"+
		"Person1 is owed ¥6.00\n"+
		"Person2 owes ¥4.50\n"+
		"Person3 owes ¥1.50\n", out)
}

func TestSettleJSON(t *testing.T) {
	out, err := execute(t, dinnerCSV, "settle", "-", "--format", "json", "--balances")
	require.NoError(t, err)

	var got settleOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "Person2", got.Entries[0].Debtor)
	assert.Equal(t, "4.5", got.Entries[0].Amount.String())
	assert.Len(t, got.Balances, 3)
}

func TestSettleNothingOwed(t *testing.T) {
	out, err := execute(t, "Expense Name,Total,Subtotal,Payer,A,B\nx,10,10,A,10,0\n", "settle", "-")
	require.NoError(t, err)
	assert.Equal(t, "No settlement needed\n", out)
}

func TestSettleExitCodes(t *testing.T) {
	offCSV := "Expense Name,Total,Subtotal,Payer,A,B\nOff,10,10,A,5,4.97\n"

	tests := []struct {
		name  string
		stdin string
		args  []string
		code  int
	}{
		{name: "checksum failure", stdin: offCSV, args: []string{"settle", "-"}, code: ExitFailure},
		{name: "looser tolerance passes", stdin: offCSV, args: []string{"settle", "-", "--tolerance", "0.02"}, code: ExitSuccess},
		{name: "missing file", args: []string{"settle", filepath.Join(t.TempDir(), "nope.csv")}, code: ExitCommandError},
		{name: "malformed table", stdin: "Name,Total\nx,1\n", args: []string{"settle", "-"}, code: ExitCommandError},
		{name: "bad tolerance", stdin: offCSV, args: []string{"settle", "-", "--tolerance", "lots"}, code: ExitCommandError},
		{name: "negative tolerance", stdin: offCSV, args: []string{"settle", "-", "--tolerance", "-0.5"}, code: ExitCommandError},
		{name: "bad format", stdin: offCSV, args: []string{"settle", "-", "--format", "yaml"}, code: ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.stdin, tt.args...)
			assert.Equal(t, tt.code, GetExitCode(err), "err: %v", err)
		})
	}
}

func TestChecksumErrorSurvivesWrapping(t *testing.T) {
	_, err := execute(t, "Expense Name,Total,Subtotal,Payer,A,B\nOff,10,10,A,5,4\n", "settle", "-")
	var cerr *settlement.ChecksumError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "Off", cerr.Name)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	sub, _, err := cmd.Find([]string{"settle"})
	require.NoError(t, err)
	assert.Equal(t, "settle", sub.Name())

	for _, flag := range []string{"tolerance", "currency", "balances"} {
		assert.NotNil(t, sub.Flags().Lookup(flag), flag)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
}
