package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/report"
	"github.com/susu3304/warikanbot/internal/settlement"
	"github.com/susu3304/warikanbot/internal/warikan"
)

type SettleOptions struct {
	Tolerance string
	Currency  string
	Balances  bool
}

type settleOutput struct {
	Entries  []settlement.PaymentEntry `json:"entries"`
	Balances []settlement.Balance      `json:"balances,omitempty"`
}

func NewSettleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettleOptions{}

	cmd := &cobra.Command{
		Use:   "settle <ledger.csv|->",
		Short: "Print the transfers that settle a CSV ledger",
		Long: `Read a ledger table and print one "X pays Y N" line per transfer.

The table starts with Expense Name, Total, Subtotal and Payer columns,
followed by one column per participant holding their pre-tax share.
Use - to read from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettle(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tolerance, "tolerance", settlement.DefaultTolerance.String(), "allowed checksum error per participant")
	cmd.Flags().StringVar(&opts.Currency, "currency", "$", "currency symbol for text output")
	cmd.Flags().BoolVar(&opts.Balances, "balances", false, "also print each participant's net balance")

	return cmd
}

func runSettle(rootOpts *RootOptions, opts *SettleOptions, path string, cmd *cobra.Command) error {
	tolerance, err := decimal.NewFromString(opts.Tolerance)
	if err != nil || tolerance.IsNegative() {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid tolerance %q", opts.Tolerance))
	}

	in, closeFn, err := openInput(path, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read ledger", err)
	}
	defer closeFn()

	table, err := ledger.ReadCSV(in)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot parse ledger", err)
	}

	svc := warikan.NewService(nil, settlement.NewEngine(settlement.WithTolerance(tolerance)), opts.Currency)
	res, err := svc.SettleTable(table)
	if err != nil {
		if errors.Is(err, settlement.ErrChecksum) {
			return WrapExitError(ExitFailure, "ledger does not validate", err)
		}
		return WrapExitError(ExitCommandError, "invalid ledger", err)
	}

	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		payload := settleOutput{Entries: res.Entries}
		if opts.Balances {
			payload.Balances = res.Balances.Balances()
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	if len(res.Entries) == 0 {
		fmt.Fprintln(out, report.NoSettlement)
	}
	for _, line := range report.Lines(res.Entries, opts.Currency) {
		fmt.Fprintln(out, line)
	}
	if opts.Balances {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Balances:")
		for _, line := range report.BalanceLines(res.Balances, opts.Currency) {
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
