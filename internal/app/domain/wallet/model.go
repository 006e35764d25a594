// Package wallet defines the transaction ledger and withdrawals.
package wallet

import "time"

// TxType classifies a ledger entry.
type TxType string

const (
	TxTaskReward       TxType = "task_reward"
	TxReferralBonus    TxType = "referral_bonus"
	TxLotteryTicket    TxType = "lottery_ticket"
	TxLotteryPrize     TxType = "lottery_prize"
	TxLotteryRefund    TxType = "lottery_refund"
	TxMarketPurchase   TxType = "market_purchase"
	TxMarketSale       TxType = "market_sale"
	TxMarketRefund     TxType = "market_refund"
	TxPackagePurchase  TxType = "package_purchase"
	TxCourseReward     TxType = "course_reward"
	TxCourseFee        TxType = "course_fee"
	TxWithdrawal       TxType = "withdrawal"
	TxWithdrawalRefund TxType = "withdrawal_refund"
	TxAdminAdjustment  TxType = "admin_adjustment"
)

// Transaction is one immutable ledger entry. Amount is signed: positive for
// credits, negative for debits.
type Transaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Type         TxType    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Reference    string    `json:"reference,omitempty"` // Related entity ID
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// WithdrawalStatus is the processing state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
	WithdrawalPaid     WithdrawalStatus = "paid"
)

// Withdrawal is a cash-out request. Amount and Fee are in cents; the user is
// debited Amount+Fee up front and refunded on rejection.
type Withdrawal struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Amount       int64            `json:"amount"`
	Fee          int64            `json:"fee"`
	Method       string           `json:"method"` // bank/paypal/crypto
	Destination  string           `json:"destination"`
	Status       WithdrawalStatus `json:"status"`
	DecidedBy    string           `json:"decided_by,omitempty"`
	RejectReason string           `json:"reject_reason,omitempty"`
	RequestedAt  time.Time        `json:"requested_at"`
	DecidedAt    time.Time        `json:"decided_at,omitempty"`
}

// MinWithdrawalCents is the smallest cash-out a user can request.
const MinWithdrawalCents int64 = 500
