package referrals

import (
	"context"
	"testing"

	"github.com/earnhub/platform/internal/app/domain/plan"
	"github.com/earnhub/platform/internal/app/domain/referral"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage/memory"
)

func seedChain(t *testing.T, store *memory.Store) (top, mid, earner user.User) {
	t.Helper()
	ctx := context.Background()

	var err error
	top, err = store.CreateUser(ctx, user.User{Email: "top@example.com", Name: "Top", ReferralCode: "TOP1"})
	if err != nil {
		t.Fatalf("create top: %v", err)
	}
	mid, err = store.CreateUser(ctx, user.User{Email: "mid@example.com", Name: "Mid", ReferralCode: "MID1", ReferredBy: top.ID})
	if err != nil {
		t.Fatalf("create mid: %v", err)
	}
	earner, err = store.CreateUser(ctx, user.User{Email: "earn@example.com", Name: "Earn", ReferralCode: "ERN1", ReferredBy: mid.ID})
	if err != nil {
		t.Fatalf("create earner: %v", err)
	}
	return top, mid, earner
}

func TestDistributeDefaultRate(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, notifications.New(store, nil), nil)
	ctx := context.Background()

	top, mid, earner := seedChain(t, store)

	// No configured levels: single level-1 rule at the default percentage.
	credited := svc.Distribute(ctx, earner.ID, 1000, "task-1")
	if credited != 1 {
		t.Fatalf("expected 1 credit, got %d", credited)
	}

	got, err := store.GetUser(ctx, mid.ID)
	if err != nil {
		t.Fatalf("get mid: %v", err)
	}
	if got.PointsBalance != 100 {
		t.Fatalf("level 1 commission wrong: %d", got.PointsBalance)
	}

	got, err = store.GetUser(ctx, top.ID)
	if err != nil {
		t.Fatalf("get top: %v", err)
	}
	if got.PointsBalance != 0 {
		t.Fatalf("level 2 should not pay by default: %d", got.PointsBalance)
	}
}

func TestDistributeConfiguredLevels(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, notifications.New(store, nil), nil)
	ctx := context.Background()

	top, mid, earner := seedChain(t, store)

	if _, err := svc.SetCommissionLevel(ctx, 1, referral.KindPercentage, 10); err != nil {
		t.Fatalf("set level 1: %v", err)
	}
	if _, err := svc.SetCommissionLevel(ctx, 2, referral.KindFlat, 25); err != nil {
		t.Fatalf("set level 2: %v", err)
	}

	credited := svc.Distribute(ctx, earner.ID, 2000, "task-1")
	if credited != 2 {
		t.Fatalf("expected 2 credits, got %d", credited)
	}

	got, _ := store.GetUser(ctx, mid.ID)
	if got.PointsBalance != 200 {
		t.Fatalf("percentage commission wrong: %d", got.PointsBalance)
	}
	got, _ = store.GetUser(ctx, top.ID)
	if got.PointsBalance != 25 {
		t.Fatalf("flat commission wrong: %d", got.PointsBalance)
	}

	earnings, err := svc.Earnings(ctx, mid.ID, 10)
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if len(earnings) != 1 || earnings[0].SourceUserID != earner.ID || earnings[0].Level != 1 {
		t.Fatalf("earning record wrong: %+v", earnings)
	}
}

func TestDistributeTierBonus(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, notifications.New(store, nil), nil)
	svc.WithPlans(store)
	ctx := context.Background()

	_, mid, earner := seedChain(t, store)

	if _, err := store.UpsertPlan(ctx, plan.Plan{Tier: "PREMIUM", Name: "Premium", ReferralBonusPercent: 150}); err != nil {
		t.Fatalf("upsert plan: %v", err)
	}
	mid.PackageTier = "PREMIUM"
	if _, err := store.UpdateUser(ctx, mid); err != nil {
		t.Fatalf("update mid: %v", err)
	}

	if n := svc.Distribute(ctx, earner.ID, 1000, "task-1"); n != 1 {
		t.Fatalf("expected 1 credit, got %d", n)
	}

	got, _ := store.GetUser(ctx, mid.ID)
	if got.PointsBalance != 150 {
		t.Fatalf("tier bonus not applied: %d", got.PointsBalance)
	}
}

func TestDistributeStopsAtChainEnd(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, notifications.New(store, nil), nil)
	ctx := context.Background()

	solo, err := store.CreateUser(ctx, user.User{Email: "solo@example.com", Name: "Solo", ReferralCode: "SOLO"})
	if err != nil {
		t.Fatalf("create solo: %v", err)
	}

	if n := svc.Distribute(ctx, solo.ID, 1000, "task-1"); n != 0 {
		t.Fatalf("expected no credits, got %d", n)
	}
	if n := svc.Distribute(ctx, solo.ID, 0, "task-1"); n != 0 {
		t.Fatalf("zero base must not pay, got %d", n)
	}
	if n := svc.Distribute(ctx, "missing-user", 1000, "task-1"); n != 0 {
		t.Fatalf("missing earner must not pay, got %d", n)
	}
}

func TestDistributeSparseTableMatchesByLevel(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, notifications.New(store, nil), nil)
	ctx := context.Background()

	top, mid, earner := seedChain(t, store)

	// Only level 2 is configured: the direct referrer earns nothing, the
	// referrer two hops up gets the level-2 rule.
	if _, err := svc.SetCommissionLevel(ctx, 2, referral.KindFlat, 40); err != nil {
		t.Fatalf("set level 2: %v", err)
	}

	credited := svc.Distribute(ctx, earner.ID, 1000, "task-1")
	if credited != 1 {
		t.Fatalf("expected 1 credit, got %d", credited)
	}

	got, _ := store.GetUser(ctx, mid.ID)
	if got.PointsBalance != 0 {
		t.Fatalf("direct referrer paid without a level-1 rule: %d", got.PointsBalance)
	}
	got, _ = store.GetUser(ctx, top.ID)
	if got.PointsBalance != 40 {
		t.Fatalf("level-2 commission wrong: %d", got.PointsBalance)
	}

	earnings, err := svc.Earnings(ctx, top.ID, 10)
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if len(earnings) != 1 || earnings[0].Level != 2 {
		t.Fatalf("earning record wrong: %+v", earnings)
	}
}

func TestDistributeSkipsZeroRoundedAmounts(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, notifications.New(store, nil), nil)
	ctx := context.Background()

	_, mid, earner := seedChain(t, store)

	// 10% of 5 points rounds to zero: no credit, no earning row.
	credited := svc.Distribute(ctx, earner.ID, 5, "task-1")
	if credited != 0 {
		t.Fatalf("expected 0 credits, got %d", credited)
	}

	got, _ := store.GetUser(ctx, mid.ID)
	if got.PointsBalance != 0 {
		t.Fatalf("unexpected balance: %d", got.PointsBalance)
	}
	earnings, err := svc.Earnings(ctx, mid.ID, 10)
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if len(earnings) != 0 {
		t.Fatalf("zero-amount earning recorded: %+v", earnings)
	}
}

func TestSetCommissionLevelValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, notifications.New(store, nil), nil)
	ctx := context.Background()

	if _, err := svc.SetCommissionLevel(ctx, 0, referral.KindPercentage, 10); err == nil {
		t.Fatalf("expected level 0 to be rejected")
	}
	if _, err := svc.SetCommissionLevel(ctx, 1, referral.KindPercentage, 120); err == nil {
		t.Fatalf("expected >100%% to be rejected")
	}
	if _, err := svc.SetCommissionLevel(ctx, 1, "bogus", 10); err == nil {
		t.Fatalf("expected unknown kind to be rejected")
	}

	if _, err := svc.SetCommissionLevel(ctx, 1, referral.KindPercentage, 10); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.DeleteCommissionLevel(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	levels, err := svc.CommissionLevels(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(levels) != 0 {
		t.Fatalf("expected empty table, got %d", len(levels))
	}
}
