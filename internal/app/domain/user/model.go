// Package user defines the platform member model.
package user

import "time"

// Role controls what a user may do.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// KYCStatus is the identity-verification state gating withdrawals.
type KYCStatus string

const (
	KYCUnverified KYCStatus = "unverified"
	KYCPending    KYCStatus = "pending"
	KYCVerified   KYCStatus = "verified"
	KYCRejected   KYCStatus = "rejected"
)

// Status is the account lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// User is a platform member.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	Status        Status    `json:"status"`
	KYCStatus     KYCStatus `json:"kyc_status"`
	PackageTier   string    `json:"package_tier"`    // FREE/BASIC/STANDARD/PREMIUM
	PointsBalance int64     `json:"points_balance"`  // Earnable/spendable points
	CashBalance   int64     `json:"cash_balance"`    // Withdrawable cash in cents
	XP            int64     `json:"xp"`
	ReferralCode  string    `json:"referral_code"`   // Code others sign up with
	ReferredBy    string    `json:"referred_by"`     // ID of the direct referrer, empty at chain end
	Phone         string    `json:"phone,omitempty"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// XPPerLevel is the XP span of one level.
const XPPerLevel = 1000

// Level derives the display level from accumulated XP.
func (u User) Level() int {
	return 1 + int(u.XP/XPPerLevel)
}

// DefaultTier is the tier assigned at registration.
const DefaultTier = "FREE"
