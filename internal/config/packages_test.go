package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePackagesFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "packages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPackagesConfigFromPath(t *testing.T) {
	path := writePackagesFile(t, `
packages:
  FREE:
    name: Free
    price_points: 0
    daily_task_limit: 5
    withdrawal_fee_percent: 10
    referral_bonus_percent: 100
  GOLD:
    name: Gold
    price_points: 25000
    daily_task_limit: 60
    withdrawal_fee_percent: 3
    referral_bonus_percent: 140
    description: Custom tier
`)

	cfg, err := LoadPackagesConfigFromPath(path)
	require.NoError(t, err)
	require.Len(t, cfg.Packages, 2)

	gold := cfg.Packages["GOLD"]
	require.NotNil(t, gold)
	assert.Equal(t, "Gold", gold.Name)
	assert.Equal(t, int64(25_000), gold.PricePoints)
	assert.Equal(t, 60, gold.DailyTaskLimit)
	assert.Equal(t, 3, gold.WithdrawalFeePercent)
	assert.Equal(t, 140, gold.ReferralBonusPercent)
	assert.Equal(t, "Custom tier", gold.Description)
}

func TestLoadPackagesConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "packages:\n  FREE:\n    daily_task_limit: 5\n    withdrawal_fee_percent: 10\n",
			want: "name is required",
		},
		{
			name: "zero task limit",
			body: "packages:\n  FREE:\n    name: Free\n    daily_task_limit: 0\n    withdrawal_fee_percent: 10\n",
			want: "daily_task_limit must be positive",
		},
		{
			name: "fee over 100",
			body: "packages:\n  FREE:\n    name: Free\n    daily_task_limit: 5\n    withdrawal_fee_percent: 101\n",
			want: "withdrawal_fee_percent out of range",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writePackagesFile(t, tc.body)
			_, err := LoadPackagesConfigFromPath(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadPackagesConfigMissingFile(t *testing.T) {
	_, err := LoadPackagesConfigFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultPackagesConfig(t *testing.T) {
	cfg := DefaultPackagesConfig()
	require.Len(t, cfg.Packages, 4)

	for _, code := range []string{"FREE", "BASIC", "STANDARD", "PREMIUM"} {
		require.NotNil(t, cfg.Packages[code], "tier %s missing", code)
	}

	assert.Equal(t, int64(0), cfg.Packages["FREE"].PricePoints)
	assert.Equal(t, int64(40_000), cfg.Packages["PREMIUM"].PricePoints)
	assert.Equal(t, 2, cfg.Packages["PREMIUM"].WithdrawalFeePercent)

	// Fees must fall as the tier price rises.
	assert.Greater(t, cfg.Packages["FREE"].WithdrawalFeePercent, cfg.Packages["BASIC"].WithdrawalFeePercent)
	assert.Greater(t, cfg.Packages["BASIC"].WithdrawalFeePercent, cfg.Packages["STANDARD"].WithdrawalFeePercent)
	assert.Greater(t, cfg.Packages["STANDARD"].WithdrawalFeePercent, cfg.Packages["PREMIUM"].WithdrawalFeePercent)
}
