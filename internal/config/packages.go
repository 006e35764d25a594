package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PackageSettings describes one subscription tier as configured on disk.
type PackageSettings struct {
	Name                 string `yaml:"name"`
	PricePoints          int64  `yaml:"price_points"`
	DailyTaskLimit       int    `yaml:"daily_task_limit"`
	WithdrawalFeePercent int    `yaml:"withdrawal_fee_percent"`
	ReferralBonusPercent int    `yaml:"referral_bonus_percent"`
	Description          string `yaml:"description"`
}

// PackagesConfig holds the configured subscription tiers keyed by tier code.
type PackagesConfig struct {
	Packages map[string]*PackageSettings `yaml:"packages"`
}

// LoadPackagesConfig loads tier definitions from config/packages.yaml.
func LoadPackagesConfig() (*PackagesConfig, error) {
	return LoadPackagesConfigFromPath(filepath.Join("config", "packages.yaml"))
}

// LoadPackagesConfigFromPath loads tier definitions from a specific path.
func LoadPackagesConfigFromPath(path string) (*PackagesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read packages config: %w", err)
	}

	var cfg PackagesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse packages config: %w", err)
	}

	for code, settings := range cfg.Packages {
		if settings.Name == "" {
			return nil, fmt.Errorf("package %s: name is required", code)
		}
		if settings.DailyTaskLimit <= 0 {
			return nil, fmt.Errorf("package %s: daily_task_limit must be positive", code)
		}
		if settings.WithdrawalFeePercent < 0 || settings.WithdrawalFeePercent > 100 {
			return nil, fmt.Errorf("package %s: withdrawal_fee_percent out of range", code)
		}
	}

	return &cfg, nil
}

// LoadPackagesConfigOrDefault loads tier definitions or falls back to the
// built-in defaults when the file is absent.
func LoadPackagesConfigOrDefault() *PackagesConfig {
	cfg, err := LoadPackagesConfig()
	if err != nil {
		return DefaultPackagesConfig()
	}
	return cfg
}

// DefaultPackagesConfig returns the built-in subscription tiers.
func DefaultPackagesConfig() *PackagesConfig {
	return &PackagesConfig{
		Packages: map[string]*PackageSettings{
			"FREE": {
				Name:                 "Free",
				PricePoints:          0,
				DailyTaskLimit:       5,
				WithdrawalFeePercent: 10,
				ReferralBonusPercent: 100,
				Description:          "Starter tier",
			},
			"BASIC": {
				Name:                 "Basic",
				PricePoints:          5_000,
				DailyTaskLimit:       15,
				WithdrawalFeePercent: 7,
				ReferralBonusPercent: 110,
				Description:          "Entry paid tier",
			},
			"STANDARD": {
				Name:                 "Standard",
				PricePoints:          15_000,
				DailyTaskLimit:       40,
				WithdrawalFeePercent: 5,
				ReferralBonusPercent: 125,
				Description:          "Mid tier",
			},
			"PREMIUM": {
				Name:                 "Premium",
				PricePoints:          40_000,
				DailyTaskLimit:       100,
				WithdrawalFeePercent: 2,
				ReferralBonusPercent: 150,
				Description:          "Top tier",
			},
		},
	}
}
