package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/pallet-ledger/pallet"
)

// =============================================================================
// FILE RATES - YAML tariff re-read when the file changes
// =============================================================================

// ratesFile is the on-disk layout. Values are strings so that decimals
// survive without float rounding.
//
//	entry_rate: "3.5"
//	exit_rate: "3.5"
//	storage_rate_per_day: "0.233333"
//	frozen_rate: "5.0"
//	frozen_storage_rate_per_day: "0.3"   # optional
type ratesFile struct {
	EntryRate               string `yaml:"entry_rate"`
	ExitRate                string `yaml:"exit_rate"`
	StorageRatePerDay       string `yaml:"storage_rate_per_day"`
	FrozenRate              string `yaml:"frozen_rate"`
	FrozenStorageRatePerDay string `yaml:"frozen_storage_rate_per_day"`
}

// FileRates is a pallet.RateProvider backed by a YAML file. The file is
// stat'ed on every call and parsed again only when its modification time
// moved. A broken edit keeps the last good tariff in service.
type FileRates struct {
	Path   string
	Logger zerolog.Logger

	mu      sync.Mutex
	modTime time.Time
	loaded  bool
	current pallet.RateConfig
}

// NewFileRates loads path once so a missing or invalid file fails at start.
func NewFileRates(path string, logger zerolog.Logger) (*FileRates, error) {
	fr := &FileRates{Path: path, Logger: logger}
	if _, err := fr.Rates(context.Background()); err != nil {
		return nil, err
	}
	return fr, nil
}

// Rates returns the current tariff.
func (f *FileRates) Rates(_ context.Context) (pallet.RateConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.Path)
	if err != nil {
		if f.loaded {
			f.Logger.Warn().Err(err).Str("path", f.Path).Msg("rates file unreadable, keeping last tariff")
			return f.current, nil
		}
		return pallet.RateConfig{}, fmt.Errorf("stat rates file: %w", err)
	}
	if f.loaded && info.ModTime().Equal(f.modTime) {
		return f.current, nil
	}

	rates, err := readRatesFile(f.Path)
	if err != nil {
		if f.loaded {
			f.Logger.Warn().Err(err).Str("path", f.Path).Msg("rates file invalid, keeping last tariff")
			return f.current, nil
		}
		return pallet.RateConfig{}, err
	}

	f.current = rates
	f.modTime = info.ModTime()
	f.loaded = true
	f.Logger.Info().
		Str("path", f.Path).
		Str("entry_rate", rates.EntryRate.String()).
		Str("exit_rate", rates.ExitRate.String()).
		Str("storage_rate_per_day", rates.StorageRatePerDay.String()).
		Str("frozen_rate", rates.FrozenRate.String()).
		Msg("rates loaded")
	return rates, nil
}

func readRatesFile(path string) (pallet.RateConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pallet.RateConfig{}, fmt.Errorf("read rates file: %w", err)
	}
	return ParseRates(raw)
}

// ParseRates decodes a YAML tariff. Missing keys take the default tariff.
func ParseRates(raw []byte) (pallet.RateConfig, error) {
	var rf ratesFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return pallet.RateConfig{}, fmt.Errorf("decode rates yaml: %w", err)
	}

	rates := pallet.DefaultRates()
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"entry_rate", rf.EntryRate, &rates.EntryRate},
		{"exit_rate", rf.ExitRate, &rates.ExitRate},
		{"storage_rate_per_day", rf.StorageRatePerDay, &rates.StorageRatePerDay},
		{"frozen_rate", rf.FrozenRate, &rates.FrozenRate},
	}
	for _, fd := range fields {
		if fd.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(fd.raw)
		if err != nil {
			return pallet.RateConfig{}, fmt.Errorf("%w: %s %q", pallet.ErrInvalidRate, fd.name, fd.raw)
		}
		*fd.dst = d
	}
	if rf.FrozenStorageRatePerDay != "" {
		d, err := decimal.NewFromString(rf.FrozenStorageRatePerDay)
		if err != nil {
			return pallet.RateConfig{}, fmt.Errorf("%w: frozen_storage_rate_per_day %q", pallet.ErrInvalidRate, rf.FrozenStorageRatePerDay)
		}
		rates.FrozenStorageRatePerDay = decimal.NewNullDecimal(d)
	}

	if err := rates.Validate(); err != nil {
		return pallet.RateConfig{}, err
	}
	return rates, nil
}

var _ pallet.RateProvider = (*FileRates)(nil)
