package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pallet-ledger/pallet"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "RATES_FILE", "CORS_ALLOWED_ORIGINS", "REFRESH_INTERVAL", "METRICS_NAMESPACE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, "pallets.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, "pallet_ledger", cfg.MetricsNamespace)
	assert.Empty(t, cfg.RatesFile)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("REFRESH_INTERVAL", "30s")
	t.Setenv("RATES_FILE", " rates.yaml ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr())
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, "rates.yaml", cfg.RatesFile)
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "soon")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
}

func TestParseRates(t *testing.T) {
	rates, err := ParseRates([]byte("entry_rate: 4\nstorage_rate_per_day: \"0.5\"\nfrozen_storage_rate_per_day: \"0.75\"\n"))
	require.NoError(t, err)
	assert.True(t, rates.EntryRate.Equal(decimal.NewFromInt(4)))
	assert.True(t, rates.ExitRate.Equal(decimal.RequireFromString("3.5")), "missing keys keep defaults")
	assert.True(t, rates.StorageRatePerDay.Equal(decimal.RequireFromString("0.5")))
	require.True(t, rates.FrozenStorageRatePerDay.Valid)
	assert.True(t, rates.StorageRateFor(true).Equal(decimal.RequireFromString("0.75")))

	_, err = ParseRates([]byte("exit_rate: \"-1\"\n"))
	assert.ErrorIs(t, err, pallet.ErrInvalidRate)

	_, err = ParseRates([]byte("exit_rate: \"abc\"\n"))
	assert.ErrorIs(t, err, pallet.ErrInvalidRate)

	_, err = ParseRates([]byte("exit_rate: [1\n"))
	assert.Error(t, err)
}

func TestFileRates_HotReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entry_rate: \"1\"\n"), 0o600))

	fr, err := NewFileRates(path, zerolog.Nop())
	require.NoError(t, err)
	rates, err := fr.Rates(ctx)
	require.NoError(t, err)
	assert.True(t, rates.EntryRate.Equal(decimal.NewFromInt(1)))

	// given: the file is edited
	require.NoError(t, os.WriteFile(path, []byte("entry_rate: \"2\"\n"), 0o600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	// then: the next call sees the new tariff
	rates, err = fr.Rates(ctx)
	require.NoError(t, err)
	assert.True(t, rates.EntryRate.Equal(decimal.NewFromInt(2)))

	// given: a broken edit
	require.NoError(t, os.WriteFile(path, []byte("entry_rate: \"-5\"\n"), 0o600))
	later = later.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	// then: the last good tariff stays in service
	rates, err = fr.Rates(ctx)
	require.NoError(t, err)
	assert.True(t, rates.EntryRate.Equal(decimal.NewFromInt(2)))
}

func TestNewFileRates_MissingFile(t *testing.T) {
	_, err := NewFileRates(filepath.Join(t.TempDir(), "nope.yaml"), zerolog.Nop())
	assert.Error(t, err)
}
