package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ClubID:         "club-1",
		DatabasePath:   "/tmp/ledger.db",
		TrackedAccount: "BE26210016070629",
		FiscalYear:     2024,
		BatchSize:      DefaultBatchSize,
		OpeningBalance: decimal.NewFromInt(1000),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.DatabasePath = "" }, wantErr: true},
		{name: "missing tracked account", mutate: func(c *Config) { c.TrackedAccount = "" }, wantErr: true},
		{name: "missing fiscal year", mutate: func(c *Config) { c.FiscalYear = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPeriod(t *testing.T) {
	cfg := validConfig()
	period := cfg.Period()

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), period.StartDate)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), period.EndDate)
	assert.Equal(t, cfg.TrackedAccount, period.TrackedAccountNumber)
	assert.True(t, period.OpeningBalance.Equal(cfg.OpeningBalance))

	assert.True(t, period.Contains(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, period.Contains(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}
