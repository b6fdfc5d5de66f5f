package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/warikanbot/internal/ledger"
)

func TestParseShares(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "mentions", input: "<@111>:6 <@!222>:4", want: []string{"111=6", "222=4"}},
		{name: "names with commas", input: "alice:6, bob:3,carol:1", want: []string{"alice=6", "bob=3", "carol=1"}},
		{name: "equals and currency", input: "alice=$6.50 bob=0", want: []string{"alice=6.5", "bob=0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := parseShares(tt.input)
			require.NoError(t, err)
			var got []string
			for _, s := range shares {
				got = append(got, s.Participant+"="+s.Amount.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSharesErrors(t *testing.T) {
	_, err := parseShares("   ")
	assert.ErrorIs(t, err, ErrNoShares)

	_, err = parseShares("alice")
	assert.ErrorIs(t, err, ErrBadShare)

	_, err = parseShares(":5")
	assert.ErrorIs(t, err, ErrBadShare)

	_, err = parseShares("alice:")
	assert.ErrorIs(t, err, ErrBadShare)

	_, err = parseShares("alice:six")
	assert.ErrorIs(t, err, ledger.ErrBadAmount)
}

func TestParticipantID(t *testing.T) {
	assert.Equal(t, "123", participantID("<@123>"))
	assert.Equal(t, "123", participantID(" <@!123> "))
	assert.Equal(t, "alice", participantID("alice"))
	assert.Equal(t, "<@abc>", participantID("<@abc>"))
}

func TestParseGuildID(t *testing.T) {
	assert.Equal(t, int64(123456789012345678), ParseGuildID("123456789012345678"))
	assert.Equal(t, int64(0), ParseGuildID("not-a-guild"))
}
