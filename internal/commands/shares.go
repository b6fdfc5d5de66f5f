package commands

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/settlement"
)

var (
	ErrNoShares  = errors.New("no shares given")
	ErrBadShare  = errors.New("share must look like name:amount")
	mentionRegex = regexp.MustCompile(`^<@!?([0-9]+)>$`)
)

// participantID turns a Discord mention into the bare user ID and leaves
// plain names as they are.
func participantID(s string) string {
	s = strings.TrimSpace(s)
	if m := mentionRegex.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// parseShares reads "who:amount" pairs separated by spaces or commas, in the
// order given. "=" works as the separator too.
func parseShares(text string) ([]settlement.Share, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, ErrNoShares
	}

	shares := make([]settlement.Share, 0, len(fields))
	for _, f := range fields {
		sep := strings.LastIndexAny(f, ":=")
		if sep <= 0 || sep == len(f)-1 {
			return nil, fmt.Errorf("%q: %w", f, ErrBadShare)
		}
		who := participantID(f[:sep])
		if who == "" {
			return nil, fmt.Errorf("%q: %w", f, ErrBadShare)
		}
		amt, err := ledger.ParseAmount(f[sep+1:])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, err)
		}
		shares = append(shares, settlement.Share{Participant: who, Amount: amt})
	}
	return shares, nil
}
