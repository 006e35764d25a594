// Package wallet manages the transaction ledger and cash-out requests.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/metrics"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/pkg/logger"
)

// Errors
var (
	ErrKYCRequired   = errors.New("identity verification required")
	ErrBelowMinimum  = errors.New("amount below withdrawal minimum")
	ErrNotPending    = errors.New("withdrawal already decided")
	ErrNotApproved   = errors.New("withdrawal not approved")
	ErrUnknownMethod = errors.New("unknown withdrawal method")
)

var withdrawalMethods = map[string]bool{
	"bank":   true,
	"paypal": true,
	"crypto": true,
}

// Service manages balances, the ledger and withdrawals.
type Service struct {
	store    storage.WalletStore
	users    storage.UserStore
	plans    storage.PlanStore
	notifier *notifications.Service
	log      *logger.Logger
}

// New creates a configured wallet service.
func New(store storage.WalletStore, userStore storage.UserStore, notifier *notifications.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("wallet")
	}
	return &Service{store: store, users: userStore, notifier: notifier, log: log}
}

// WithPlans enables tier-based withdrawal fees.
func (s *Service) WithPlans(plans storage.PlanStore) *Service {
	s.plans = plans
	return s
}

// Transactions returns the user's ledger, newest first.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]wallet.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListTransactions(ctx, userID, limit)
}

// RequestWithdrawal debits the user's cash balance and queues the request
// for review. The fee depends on the user's package tier.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount int64, method, destination string) (wallet.Withdrawal, error) {
	if amount < wallet.MinWithdrawalCents {
		return wallet.Withdrawal{}, ErrBelowMinimum
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if !withdrawalMethods[method] {
		return wallet.Withdrawal{}, ErrUnknownMethod
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return wallet.Withdrawal{}, fmt.Errorf("destination is required")
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return wallet.Withdrawal{}, err
	}
	if u.KYCStatus != user.KYCVerified {
		return wallet.Withdrawal{}, ErrKYCRequired
	}

	fee := amount * s.feePercent(ctx, u.PackageTier) / 100
	total := amount + fee

	debited, err := s.users.AdjustCashBalance(ctx, userID, -total)
	if err != nil {
		return wallet.Withdrawal{}, fmt.Errorf("debit balance: %w", err)
	}

	w, err := s.store.CreateWithdrawal(ctx, wallet.Withdrawal{
		UserID:      userID,
		Amount:      amount,
		Fee:         fee,
		Method:      method,
		Destination: destination,
		Status:      wallet.WithdrawalPending,
	})
	if err != nil {
		// Roll back the debit so the user is not left short.
		if _, rbErr := s.users.AdjustCashBalance(ctx, userID, total); rbErr != nil {
			s.log.WithError(rbErr).WithField("user_id", userID).Error("withdrawal debit rollback failed")
		}
		return wallet.Withdrawal{}, fmt.Errorf("create withdrawal: %w", err)
	}

	if _, err := s.store.CreateTransaction(ctx, wallet.Transaction{
		UserID:       userID,
		Type:         wallet.TxWithdrawal,
		Amount:       -total,
		BalanceAfter: debited.CashBalance,
		Reference:    w.ID,
		Description:  fmt.Sprintf("withdrawal via %s (fee %d)", method, fee),
	}); err != nil {
		s.log.WithError(err).WithField("withdrawal_id", w.ID).Warn("withdrawal transaction not recorded")
	}

	s.log.WithField("withdrawal_id", w.ID).
		WithField("user_id", userID).
		WithField("amount", amount).
		WithField("fee", fee).
		Info("withdrawal requested")
	return w, nil
}

// Approve accepts a pending withdrawal for payout.
func (s *Service) Approve(ctx context.Context, id, adminID string) (wallet.Withdrawal, error) {
	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return wallet.Withdrawal{}, err
	}
	if w.Status != wallet.WithdrawalPending {
		return wallet.Withdrawal{}, ErrNotPending
	}
	w.Status = wallet.WithdrawalApproved
	w.DecidedBy = adminID
	w.DecidedAt = time.Now().UTC()
	updated, err := s.store.UpdateWithdrawal(ctx, w)
	if err != nil {
		return wallet.Withdrawal{}, err
	}
	metrics.IncWithdrawalDecision("approved")
	s.notifier.Notify(ctx, w.UserID, notification.CategoryWallet,
		"Withdrawal approved", fmt.Sprintf("Your withdrawal of %d is approved and queued for payout.", w.Amount), w.ID)
	return updated, nil
}

// Reject declines a pending withdrawal and refunds amount plus fee.
func (s *Service) Reject(ctx context.Context, id, adminID, reason string) (wallet.Withdrawal, error) {
	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return wallet.Withdrawal{}, err
	}
	if w.Status != wallet.WithdrawalPending {
		return wallet.Withdrawal{}, ErrNotPending
	}

	total := w.Amount + w.Fee
	refunded, err := s.users.AdjustCashBalance(ctx, w.UserID, total)
	if err != nil {
		return wallet.Withdrawal{}, fmt.Errorf("refund balance: %w", err)
	}
	if _, err := s.store.CreateTransaction(ctx, wallet.Transaction{
		UserID:       w.UserID,
		Type:         wallet.TxWithdrawalRefund,
		Amount:       total,
		BalanceAfter: refunded.CashBalance,
		Reference:    w.ID,
		Description:  "withdrawal rejected",
	}); err != nil {
		s.log.WithError(err).WithField("withdrawal_id", w.ID).Warn("refund transaction not recorded")
	}

	w.Status = wallet.WithdrawalRejected
	w.DecidedBy = adminID
	w.RejectReason = strings.TrimSpace(reason)
	w.DecidedAt = time.Now().UTC()
	updated, err := s.store.UpdateWithdrawal(ctx, w)
	if err != nil {
		return wallet.Withdrawal{}, err
	}
	metrics.IncWithdrawalDecision("rejected")
	s.notifier.Notify(ctx, w.UserID, notification.CategoryWallet,
		"Withdrawal rejected", fmt.Sprintf("Your withdrawal was rejected and %d was returned to your balance.", total), w.ID)
	return updated, nil
}

// MarkPaid records that an approved withdrawal was paid out.
func (s *Service) MarkPaid(ctx context.Context, id, adminID string) (wallet.Withdrawal, error) {
	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return wallet.Withdrawal{}, err
	}
	if w.Status != wallet.WithdrawalApproved {
		return wallet.Withdrawal{}, ErrNotApproved
	}
	w.Status = wallet.WithdrawalPaid
	w.DecidedBy = adminID
	w.DecidedAt = time.Now().UTC()
	updated, err := s.store.UpdateWithdrawal(ctx, w)
	if err != nil {
		return wallet.Withdrawal{}, err
	}
	s.notifier.Notify(ctx, w.UserID, notification.CategoryWallet,
		"Withdrawal paid", fmt.Sprintf("Your withdrawal of %d was paid out via %s.", w.Amount, w.Method), w.ID)
	return updated, nil
}

// UserWithdrawals returns a user's withdrawal history.
func (s *Service) UserWithdrawals(ctx context.Context, userID string, limit int) ([]wallet.Withdrawal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListWithdrawalsByUser(ctx, userID, limit)
}

// PendingWithdrawals returns the review queue.
func (s *Service) PendingWithdrawals(ctx context.Context, limit int) ([]wallet.Withdrawal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListWithdrawalsByStatus(ctx, wallet.WithdrawalPending, limit)
}

func (s *Service) feePercent(ctx context.Context, tier string) int64 {
	if s.plans == nil {
		return 0
	}
	p, err := s.plans.GetPlan(ctx, tier)
	if err != nil {
		return 0
	}
	if p.WithdrawalFeePercent < 0 || p.WithdrawalFeePercent > 100 {
		return 0
	}
	return int64(p.WithdrawalFeePercent)
}
