package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrChecksum             = errors.New("expense checksum validation failed")
	ErrZeroSubtotal         = errors.New("subtotal must be nonzero")
	ErrNoContributions      = errors.New("expense has no participant columns")
	ErrDuplicateParticipant = errors.New("participant appears twice in one expense")
	ErrUnknownPayer         = errors.New("payer is not a participant of the ledger")
	ErrBlankParticipant     = errors.New("participant name is empty")
)

// ChecksumError reports the first expense whose tax-adjusted contributions
// do not add up to its total within the ledger's tolerance.
type ChecksumError struct {
	Row      int
	Name     string
	Checksum decimal.Decimal
	MaxError decimal.Decimal
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%v: row %d (%q) is off by %s, allowed %s",
		ErrChecksum, e.Row+1, e.Name, e.Checksum.String(), e.MaxError.String())
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

// rowError wraps a structural problem with the row it was found on.
func rowError(index int, row LedgerRow, err error) error {
	return fmt.Errorf("row %d (%q): %w", index+1, row.Name, err)
}
