package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://localhost/warikan")
	t.Setenv("DISCORD_CLIENT_ID", "client")
	t.Setenv("DISCORD_CLIENT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("WEB_BIND", "")
	t.Setenv("DISCORD_REDIRECT_URI", "")
	t.Setenv("CHECKSUM_TOLERANCE", "")
	t.Setenv("CURRENCY_SYMBOL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:3000", cfg.WebBind)
	assert.Equal(t, "http://localhost:3000", cfg.WebUIBaseURL)
	assert.Equal(t, "$", cfg.CurrencySymbol)
	assert.Equal(t, "0.01", cfg.ChecksumTolerance.String())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCORD_REDIRECT_URI", "https://warikan.example.com/api/auth/callback")
	t.Setenv("CHECKSUM_TOLERANCE", "0.05")
	t.Setenv("CURRENCY_SYMBOL", "¥")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://warikan.example.com", cfg.WebUIBaseURL)
	assert.Equal(t, "0.05", cfg.ChecksumTolerance.String())
	assert.Equal(t, "¥", cfg.CurrencySymbol)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{name: "missing token", key: "DISCORD_TOKEN", value: "", want: "DISCORD_TOKEN is required"},
		{name: "missing database", key: "DATABASE_URL", value: "", want: "DATABASE_URL is required"},
		{name: "bad tolerance", key: "CHECKSUM_TOLERANCE", value: "lots", want: "CHECKSUM_TOLERANCE is not a number"},
		{name: "negative tolerance", key: "CHECKSUM_TOLERANCE", value: "-0.01", want: "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExtractBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", extractBaseURL("not a url"))
	assert.Equal(t, "https://a.example:8443", extractBaseURL("https://a.example:8443/cb?x=1"))
}
