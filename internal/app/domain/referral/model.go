// Package referral defines the commission-level table and earning records.
package referral

import "time"

// RuleKind selects how a commission level pays out.
type RuleKind string

const (
	KindPercentage RuleKind = "percentage"
	KindFlat       RuleKind = "flat"
)

// CommissionLevel is one configured tier of the up-line cascade.
type CommissionLevel struct {
	ID        string    `json:"id"`
	Level     int       `json:"level"` // 1 is the direct referrer
	Kind      RuleKind  `json:"kind"`
	Value     int64     `json:"value"` // Percent for percentage rules, points for flat rules
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Earning records one commission credit paid to a referrer.
type Earning struct {
	ID           string    `json:"id"`
	ReferrerID   string    `json:"referrer_id"`
	SourceUserID string    `json:"source_user_id"` // The user whose earning triggered the cascade
	Level        int       `json:"level"`
	Amount       int64     `json:"amount"`
	SourceRef    string    `json:"source_ref,omitempty"` // Task/course that produced the base earning
	CreatedAt    time.Time `json:"created_at"`
}

// LeaderboardEntry is an aggregate of a referrer's total commissions.
type LeaderboardEntry struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Referrals int    `json:"referrals"`
	Earned    int64  `json:"earned"`
}

const (
	// MaxCascadeLevels bounds the up-line walk.
	MaxCascadeLevels = 10
	// DefaultLevelOnePercent applies when no levels are configured.
	DefaultLevelOnePercent = 10
)
