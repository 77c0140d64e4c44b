// Package config carries the explicit run configuration for the
// reconciliation engine. Everything the core needs travels in a Config
// value threaded through each call; no package reads ambient state.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/clubkas/clubkas/internal/common"
	"github.com/clubkas/clubkas/internal/model"
)

// DefaultBatchSize bounds one write batch during execution.
const DefaultBatchSize = 500

// Config is the resolved configuration for one run.
type Config struct {
	ClubID         string
	DatabasePath   string
	TrackedAccount string
	FiscalYear     int
	BatchSize      int
	OpeningBalance decimal.Decimal
}

// FromViper builds a Config from the bound viper state.
func FromViper() (Config, error) {
	opening, err := decimal.NewFromString(viper.GetString("fiscal.opening_balance"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: fiscal.opening_balance: %v", common.ErrInvalidConfig, err)
	}

	cfg := Config{
		ClubID:         viper.GetString("club.id"),
		DatabasePath:   viper.GetString("database.path"),
		TrackedAccount: viper.GetString("fiscal.tracked_account"),
		FiscalYear:     viper.GetInt("fiscal.year"),
		BatchSize:      viper.GetInt("reconcile.batch_size"),
		OpeningBalance: opening,
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return cfg, cfg.Validate()
}

// Validate checks that the required fields are present.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if c.TrackedAccount == "" {
		return fmt.Errorf("%w: fiscal.tracked_account", common.ErrMissingConfig)
	}
	if c.FiscalYear == 0 {
		return fmt.Errorf("%w: fiscal.year", common.ErrMissingConfig)
	}
	return nil
}

// Period derives the fiscal period the configuration describes. Club
// fiscal years run over the calendar year.
func (c Config) Period() model.FiscalPeriod {
	return model.FiscalPeriod{
		StartDate:            time.Date(c.FiscalYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:              time.Date(c.FiscalYear, time.December, 31, 0, 0, 0, 0, time.UTC),
		TrackedAccountNumber: c.TrackedAccount,
		OpeningBalance:       c.OpeningBalance,
	}
}
