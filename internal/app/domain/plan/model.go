// Package plan defines the purchasable subscription tiers.
package plan

import "time"

// Known tier codes, ordered lowest to highest.
var TierOrder = []string{"FREE", "BASIC", "STANDARD", "PREMIUM"}

// Plan is one subscription tier. Tier codes are unique.
type Plan struct {
	Tier                 string    `json:"tier"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	PricePoints          int64     `json:"price_points"`
	DailyTaskLimit       int       `json:"daily_task_limit"`
	WithdrawalFeePercent int       `json:"withdrawal_fee_percent"`
	ReferralBonusPercent int       `json:"referral_bonus_percent"` // 100 = no bonus
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Rank returns the tier's position in TierOrder, or -1 when unknown.
func Rank(tier string) int {
	for i, t := range TierOrder {
		if t == tier {
			return i
		}
	}
	return -1
}
