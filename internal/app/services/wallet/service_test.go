package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/earnhub/platform/internal/app/domain/plan"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage/memory"
)

func seedVerifiedUser(t *testing.T, store *memory.Store, cash int64) user.User {
	t.Helper()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, user.User{
		Email: "payee@example.com", Name: "Payee", KYCStatus: user.KYCVerified, ReferralCode: "PAY1",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if cash > 0 {
		if _, err := store.AdjustCashBalance(ctx, u.ID, cash); err != nil {
			t.Fatalf("fund user: %v", err)
		}
	}
	return u
}

func TestRequestWithdrawal(t *testing.T) {
	store := memory.New()
	svc := New(store, store, notifications.New(store, nil), nil)
	ctx := context.Background()

	u := seedVerifiedUser(t, store, 10_000)

	w, err := svc.RequestWithdrawal(ctx, u.ID, 2_000, "PayPal", "payee@paypal.com")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if w.Status != wallet.WithdrawalPending {
		t.Fatalf("expected pending, got %s", w.Status)
	}
	if w.Method != "paypal" {
		t.Fatalf("method not normalised: %s", w.Method)
	}
	if w.Fee != 0 {
		t.Fatalf("fee without plans should be zero: %d", w.Fee)
	}

	got, _ := store.GetUser(ctx, u.ID)
	if got.CashBalance != 8_000 {
		t.Fatalf("balance not debited: %d", got.CashBalance)
	}

	txs, _ := store.ListTransactions(ctx, u.ID, 10)
	if len(txs) != 1 || txs[0].Type != wallet.TxWithdrawal || txs[0].Amount != -2_000 {
		t.Fatalf("withdrawal transaction wrong: %+v", txs)
	}
}

func TestRequestWithdrawalValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, store, notifications.New(store, nil), nil)
	ctx := context.Background()

	u := seedVerifiedUser(t, store, 10_000)

	if _, err := svc.RequestWithdrawal(ctx, u.ID, 100, "bank", "acct"); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
	if _, err := svc.RequestWithdrawal(ctx, u.ID, 2_000, "cheque", "acct"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
	if _, err := svc.RequestWithdrawal(ctx, u.ID, 2_000, "bank", "  "); err == nil {
		t.Fatalf("expected missing destination to be rejected")
	}
	if _, err := svc.RequestWithdrawal(ctx, u.ID, 50_000, "bank", "acct"); err == nil {
		t.Fatalf("expected overdraft to be rejected")
	}

	unverified, err := store.CreateUser(ctx, user.User{
		Email: "new@example.com", Name: "New", ReferralCode: "NEW1",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.RequestWithdrawal(ctx, unverified.ID, 2_000, "bank", "acct"); !errors.Is(err, ErrKYCRequired) {
		t.Fatalf("expected ErrKYCRequired, got %v", err)
	}
}

func TestTierFee(t *testing.T) {
	store := memory.New()
	svc := New(store, store, notifications.New(store, nil), nil).WithPlans(store)
	ctx := context.Background()

	if _, err := store.UpsertPlan(ctx, plan.Plan{Tier: "FREE", Name: "Free", WithdrawalFeePercent: 10}); err != nil {
		t.Fatalf("upsert plan: %v", err)
	}
	u, err := store.CreateUser(ctx, user.User{
		Email: "fee@example.com", Name: "Fee", KYCStatus: user.KYCVerified,
		PackageTier: "FREE", ReferralCode: "FEE1",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.AdjustCashBalance(ctx, u.ID, 10_000); err != nil {
		t.Fatalf("fund: %v", err)
	}

	w, err := svc.RequestWithdrawal(ctx, u.ID, 2_000, "bank", "acct")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if w.Fee != 200 {
		t.Fatalf("expected 10%% fee, got %d", w.Fee)
	}
	got, _ := store.GetUser(ctx, u.ID)
	if got.CashBalance != 7_800 {
		t.Fatalf("amount plus fee not debited: %d", got.CashBalance)
	}
}

func TestRejectRefundsAmountPlusFee(t *testing.T) {
	store := memory.New()
	svc := New(store, store, notifications.New(store, nil), nil).WithPlans(store)
	ctx := context.Background()

	if _, err := store.UpsertPlan(ctx, plan.Plan{Tier: "FREE", Name: "Free", WithdrawalFeePercent: 5}); err != nil {
		t.Fatalf("upsert plan: %v", err)
	}
	u, err := store.CreateUser(ctx, user.User{
		Email: "rej@example.com", Name: "Rej", KYCStatus: user.KYCVerified,
		PackageTier: "FREE", ReferralCode: "REJ1",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.AdjustCashBalance(ctx, u.ID, 10_000); err != nil {
		t.Fatalf("fund: %v", err)
	}

	w, err := svc.RequestWithdrawal(ctx, u.ID, 2_000, "bank", "acct")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	rejected, err := svc.Reject(ctx, w.ID, "admin-1", "suspicious destination")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != wallet.WithdrawalRejected || rejected.RejectReason == "" {
		t.Fatalf("rejection not recorded: %+v", rejected)
	}

	got, _ := store.GetUser(ctx, u.ID)
	if got.CashBalance != 10_000 {
		t.Fatalf("refund incomplete: %d", got.CashBalance)
	}
}

func TestApproveThenMarkPaid(t *testing.T) {
	store := memory.New()
	svc := New(store, store, notifications.New(store, nil), nil)
	ctx := context.Background()

	u := seedVerifiedUser(t, store, 10_000)
	w, err := svc.RequestWithdrawal(ctx, u.ID, 2_000, "crypto", "0xabc")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := svc.MarkPaid(ctx, w.ID, "admin-1"); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved before approval, got %v", err)
	}

	approved, err := svc.Approve(ctx, w.ID, "admin-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != wallet.WithdrawalApproved || approved.DecidedBy != "admin-1" {
		t.Fatalf("approval not recorded: %+v", approved)
	}
	if _, err := svc.Approve(ctx, w.ID, "admin-2"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending on double approval, got %v", err)
	}

	paid, err := svc.MarkPaid(ctx, w.ID, "admin-1")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != wallet.WithdrawalPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}

	pending, err := svc.PendingWithdrawals(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("queue should be empty, got %d", len(pending))
	}
}
