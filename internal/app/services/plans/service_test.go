package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage/memory"
	"github.com/earnhub/platform/internal/config"
)

func testService(store *memory.Store) *Service {
	return New(store, store, store, notifications.New(store, nil), nil)
}

func seedMember(t *testing.T, store *memory.Store, points int64) user.User {
	t.Helper()
	ctx := context.Background()
	u, err := store.CreateUser(ctx, user.User{
		Email: "member@example.com", Name: "Member", PackageTier: "FREE", ReferralCode: "MBR1",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if points > 0 {
		if _, err := store.AdjustPointsBalance(ctx, u.ID, points); err != nil {
			t.Fatalf("fund user: %v", err)
		}
	}
	return u
}

func TestSeedDefaults(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	if err := svc.Seed(ctx, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tiers, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tiers) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(tiers))
	}

	p, err := svc.Get(ctx, " premium ")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Tier != "PREMIUM" || p.PricePoints != 40_000 {
		t.Fatalf("premium tier wrong: %+v", p)
	}

	// Seeding again updates in place instead of duplicating.
	if err := svc.Seed(ctx, nil); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	tiers, _ = svc.List(ctx)
	if len(tiers) != 4 {
		t.Fatalf("reseed duplicated tiers: %d", len(tiers))
	}
}

func TestSeedSkipsUnknownTier(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	cfg := &config.PackagesConfig{
		Packages: map[string]*config.PackageSettings{
			"basic":    {Name: "Basic", PricePoints: 100, DailyTaskLimit: 5},
			"PLATINUM": {Name: "Platinum", PricePoints: 999, DailyTaskLimit: 5},
		},
	}
	if err := svc.Seed(ctx, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tiers, _ := svc.List(ctx)
	if len(tiers) != 1 || tiers[0].Tier != "BASIC" {
		t.Fatalf("expected only BASIC, got %+v", tiers)
	}
}

func TestPurchaseUpgrade(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	if err := svc.Seed(ctx, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	u := seedMember(t, store, 10_000)

	if _, err := svc.Purchase(ctx, u.ID, "GOLD"); !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
	if _, err := svc.Purchase(ctx, u.ID, "FREE"); !errors.Is(err, ErrNotUpgrade) {
		t.Fatalf("expected ErrNotUpgrade for same tier, got %v", err)
	}
	if _, err := svc.Purchase(ctx, u.ID, "PREMIUM"); err == nil {
		t.Fatalf("expected debit failure, balance too low")
	}

	p, err := svc.Purchase(ctx, u.ID, "basic")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if p.Tier != "BASIC" {
		t.Fatalf("unexpected tier %s", p.Tier)
	}

	got, _ := store.GetUser(ctx, u.ID)
	if got.PackageTier != "BASIC" {
		t.Fatalf("tier not assigned: %s", got.PackageTier)
	}
	if got.PointsBalance != 5_000 {
		t.Fatalf("price not debited: %d", got.PointsBalance)
	}

	txs, _ := store.ListTransactions(ctx, u.ID, 10)
	if len(txs) != 1 || txs[0].Type != wallet.TxPackagePurchase || txs[0].Amount != -5_000 {
		t.Fatalf("purchase transaction wrong: %+v", txs)
	}

	if _, err := svc.Purchase(ctx, u.ID, "BASIC"); !errors.Is(err, ErrNotUpgrade) {
		t.Fatalf("expected ErrNotUpgrade after upgrade, got %v", err)
	}
}
