package report

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/warikanbot/internal/settlement"
)

func TestFormat(t *testing.T) {
	e := settlement.PaymentEntry{Debtor: "Person2", Creditor: "Person1", Amount: decimal.RequireFromString("4.5")}
	assert.Equal(t, "Person2 pays Person1 $4.50", Format(e, "$"))

	e = settlement.PaymentEntry{Debtor: "1234", Creditor: "5678", Amount: decimal.NewFromInt(3000)}
	assert.Equal(t, "<@1234> pays <@5678> ¥3000.00", Format(e, "¥"))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$0.10", Money("$", decimal.RequireFromString("0.1")))
	assert.Equal(t, "-$2.35", Money("$", decimal.RequireFromString("-2.345")))
	assert.Equal(t, "$3.33", Money("$", decimal.NewFromInt(10).Div(decimal.NewFromInt(3))))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, NoSettlement, Summary(nil, "$"))

	entries := []settlement.PaymentEntry{
		{Debtor: "Bob", Creditor: "Alice", Amount: decimal.NewFromInt(10)},
		{Debtor: "Carol", Creditor: "Alice", Amount: decimal.NewFromInt(5)},
	}
	assert.Equal(t, "Transfers:\nBob pays Alice $10.00\nCarol pays Alice $5.00\n", Summary(entries, "$"))
}

func TestBalanceLines(t *testing.T) {
	b := settlement.NewNetBalance()
	b.Add("Alice", decimal.NewFromInt(15))
	b.Add("Bob", decimal.NewFromInt(-15))
	b.Add("Carol", decimal.Zero)

	assert.Equal(t, []string{
		"Alice is owed $15.00",
		"Bob owes $15.00",
		"Carol is settled",
	}, BalanceLines(b, "$"))
}

func TestBalanceLinesIgnoresDust(t *testing.T) {
	b := settlement.NewNetBalance()
	b.Add("Alice", decimal.New(1, -16))
	b.Add("Bob", decimal.New(-1, -16))

	assert.Equal(t, []string{"Alice is settled", "Bob is settled"}, BalanceLines(b, "$"))
}

func TestChunk(t *testing.T) {
	t.Run("fits in one message", func(t *testing.T) {
		assert.Equal(t, []string{"a\nb\nc"}, Chunk([]string{"a", "b", "c"}, 10))
	})

	t.Run("splits on line boundaries", func(t *testing.T) {
		lines := []string{"aaaa", "bbbb", "cccc"}
		assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, Chunk(lines, 9))
	})

	t.Run("line exactly at limit", func(t *testing.T) {
		assert.Equal(t, []string{"aaaa", "bb"}, Chunk([]string{"aaaa", "bb"}, 4))
	})

	t.Run("overlong line is split", func(t *testing.T) {
		got := Chunk([]string{"x", strings.Repeat("y", 25)}, 10)
		require.Len(t, got, 4)
		assert.Equal(t, "x", got[0])
		assert.Equal(t, strings.Repeat("y", 10), got[1])
		assert.Equal(t, strings.Repeat("y", 5), got[3])
	})

	t.Run("overlong line keeps runes whole", func(t *testing.T) {
		line := "a" + strings.Repeat("é", 10)
		got := Chunk([]string{line}, 4)
		for _, c := range got {
			assert.True(t, utf8.ValidString(c), "%q", c)
			assert.LessOrEqual(t, len(c), 4)
		}
		assert.Equal(t, line, strings.Join(got, ""))
	})

	t.Run("discord limit", func(t *testing.T) {
		var lines []string
		for i := 0; i < 200; i++ {
			lines = append(lines, "<@123456789012345678> pays <@876543210987654321> $12.34")
		}
		for _, c := range Chunk(lines, DiscordLimit) {
			assert.LessOrEqual(t, len(c), DiscordLimit)
		}
	})

	assert.Empty(t, Chunk(nil, DiscordLimit))
}
