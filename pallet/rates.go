package pallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE CONFIG - Externally owned tariff
// =============================================================================

// RateConfig holds the tariff applied by the engine. All rates are per
// equivalent pallet; StorageRatePerDay is per equivalent pallet per day.
type RateConfig struct {
	EntryRate         decimal.Decimal
	ExitRate          decimal.Decimal
	StorageRatePerDay decimal.Decimal
	FrozenRate        decimal.Decimal

	// FrozenStorageRatePerDay is billed for frozen pallets in storage when
	// set; otherwise frozen pallets pay StorageRatePerDay.
	FrozenStorageRatePerDay decimal.NullDecimal
}

// DefaultRates is the tariff the warehouse started with.
func DefaultRates() RateConfig {
	return RateConfig{
		EntryRate:         decimal.RequireFromString("3.5"),
		ExitRate:          decimal.RequireFromString("3.5"),
		StorageRatePerDay: decimal.RequireFromString("0.233333"),
		FrozenRate:        decimal.RequireFromString("5.0"),
	}
}

// Validate rejects negative rates.
func (r RateConfig) Validate() error {
	check := func(name string, d decimal.Decimal) error {
		if d.IsNegative() {
			return fmt.Errorf("%w: %s is %s", ErrInvalidRate, name, d)
		}
		return nil
	}
	if err := check("entry_rate", r.EntryRate); err != nil {
		return err
	}
	if err := check("exit_rate", r.ExitRate); err != nil {
		return err
	}
	if err := check("storage_rate_per_day", r.StorageRatePerDay); err != nil {
		return err
	}
	if err := check("frozen_rate", r.FrozenRate); err != nil {
		return err
	}
	if r.FrozenStorageRatePerDay.Valid {
		return check("frozen_storage_rate_per_day", r.FrozenStorageRatePerDay.Decimal)
	}
	return nil
}

// EntryRateFor returns the handling rate for an entry.
func (r RateConfig) EntryRateFor(frozen bool) decimal.Decimal {
	if frozen {
		return r.FrozenRate
	}
	return r.EntryRate
}

// ExitRateFor returns the handling rate for an exit.
func (r RateConfig) ExitRateFor(frozen bool) decimal.Decimal {
	if frozen {
		return r.FrozenRate
	}
	return r.ExitRate
}

// StorageRateFor returns the per-day storage rate.
func (r RateConfig) StorageRateFor(frozen bool) decimal.Decimal {
	if frozen && r.FrozenStorageRatePerDay.Valid {
		return r.FrozenStorageRatePerDay.Decimal
	}
	return r.StorageRatePerDay
}

// =============================================================================
// STATIC PROVIDER
// =============================================================================

// StaticRates is a RateProvider returning a fixed config.
type StaticRates RateConfig

func (s StaticRates) Rates(_ context.Context) (RateConfig, error) {
	return RateConfig(s), nil
}

func units(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }
