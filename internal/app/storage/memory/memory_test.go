package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/earnhub/platform/internal/app/domain/feed"
	"github.com/earnhub/platform/internal/app/domain/lottery"
	"github.com/earnhub/platform/internal/app/domain/market"
	"github.com/earnhub/platform/internal/app/domain/plan"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/storage"
)

func TestUserUniqueEmail(t *testing.T) {
	store := New()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, user.User{
		Email: "Dana@Example.com", Name: "Dana", ReferralCode: "DN1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "dana@example.com" {
		t.Fatalf("email not normalised: %s", u.Email)
	}

	if _, err := store.CreateUser(ctx, user.User{Email: " dana@example.com ", Name: "Dupe"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	byEmail, err := store.GetUserByEmail(ctx, "DANA@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Fatalf("email lookup mismatch")
	}
	byCode, err := store.GetUserByReferralCode(ctx, "DN1")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if byCode.ID != u.ID {
		t.Fatalf("code lookup mismatch")
	}
}

func TestBalanceFloor(t *testing.T) {
	store := New()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, user.User{Email: "b@example.com", Name: "B", ReferralCode: "B1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.AdjustPointsBalance(ctx, u.ID, -1); !errors.Is(err, storage.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := store.AdjustPointsBalance(ctx, "missing", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	credited, err := store.AdjustPointsBalance(ctx, u.ID, 100)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if credited.PointsBalance != 100 {
		t.Fatalf("balance wrong: %d", credited.PointsBalance)
	}
	if _, err := store.AdjustCashBalance(ctx, u.ID, -1); !errors.Is(err, storage.ErrInsufficientBalance) {
		t.Fatalf("cash floor not enforced: %v", err)
	}
}

func TestUpdateUserReindexes(t *testing.T) {
	store := New()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, user.User{Email: "old@example.com", Name: "Old", ReferralCode: "OLD1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	u.Email = "new@example.com"
	u.ReferralCode = "NEW1"
	if _, err := store.UpdateUser(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := store.GetUserByEmail(ctx, "old@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("stale email index: %v", err)
	}
	if _, err := store.GetUserByEmail(ctx, "new@example.com"); err != nil {
		t.Fatalf("new email not indexed: %v", err)
	}
	if _, err := store.GetUserByReferralCode(ctx, "NEW1"); err != nil {
		t.Fatalf("new code not indexed: %v", err)
	}
}

func TestOneOpenDisputePerPurchase(t *testing.T) {
	store := New()
	ctx := context.Background()

	p, err := store.CreatePurchase(ctx, market.Purchase{
		ListingID: "l1", BuyerID: "b1", SellerID: "s1", Price: 100, Status: market.PurchasePending,
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	d, err := store.CreateDispute(ctx, market.Dispute{
		PurchaseID: p.ID, RaisedBy: "b1", Reason: "missing", Status: market.DisputeOpen,
	})
	if err != nil {
		t.Fatalf("create dispute: %v", err)
	}
	if _, err := store.CreateDispute(ctx, market.Dispute{
		PurchaseID: p.ID, RaisedBy: "b1", Reason: "still missing", Status: market.DisputeOpen,
	}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Resolving the dispute frees the purchase for a new one.
	d.Status = market.DisputeRefunded
	if _, err := store.UpdateDispute(ctx, d); err != nil {
		t.Fatalf("update dispute: %v", err)
	}
	if _, err := store.GetOpenDisputeByPurchase(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("resolved dispute still open: %v", err)
	}
	if _, err := store.CreateDispute(ctx, market.Dispute{
		PurchaseID: p.ID, RaisedBy: "b1", Reason: "again", Status: market.DisputeOpen,
	}); err != nil {
		t.Fatalf("new dispute after resolution: %v", err)
	}
}

func TestReserveTicketEnforcesCap(t *testing.T) {
	store := New()
	ctx := context.Background()

	l, err := store.CreateLottery(ctx, lottery.Lottery{
		Title: "Weekly", TicketPrice: 10, MaxTickets: 2, Status: lottery.StatusActive,
	})
	if err != nil {
		t.Fatalf("create lottery: %v", err)
	}

	for i := 1; i <= 2; i++ {
		got, err := store.ReserveTicket(ctx, l.ID)
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		if got.TicketsSold != i {
			t.Fatalf("expected %d sold, got %d", i, got.TicketsSold)
		}
	}
	if _, err := store.ReserveTicket(ctx, l.ID); !errors.Is(err, storage.ErrSoldOut) {
		t.Fatalf("expected ErrSoldOut, got %v", err)
	}
	if _, err := store.ReserveTicket(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Releasing frees a slot; the counter never goes negative.
	if err := store.ReleaseTicket(ctx, l.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := store.ReserveTicket(ctx, l.ID); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := store.ReleaseTicket(ctx, l.ID); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}
	got, err := store.GetLottery(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TicketsSold != 0 {
		t.Fatalf("counter went negative: %d", got.TicketsSold)
	}

	// A zero cap means unlimited tickets.
	open, err := store.CreateLottery(ctx, lottery.Lottery{
		Title: "Open", TicketPrice: 10, Status: lottery.StatusActive,
	})
	if err != nil {
		t.Fatalf("create lottery: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := store.ReserveTicket(ctx, open.ID); err != nil {
			t.Fatalf("uncapped reserve %d: %v", i, err)
		}
	}
}

func TestUpsertPlanKeepsCreatedAt(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.UpsertPlan(ctx, plan.Plan{Tier: "BASIC", Name: "Basic", PricePoints: 100})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := store.UpsertPlan(ctx, plan.Plan{Tier: "BASIC", Name: "Basic v2", PricePoints: 150})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("upsert reset created_at")
	}
	if second.Name != "Basic v2" || second.PricePoints != 150 {
		t.Fatalf("upsert did not apply fields: %+v", second)
	}

	plans, err := store.ListPlans(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(plans))
	}
}

func TestLikeCounters(t *testing.T) {
	store := New()
	ctx := context.Background()

	p, err := store.CreatePost(ctx, feed.Post{UserID: "u1", Body: "hi"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	if err := store.AddLike(ctx, feed.Like{PostID: p.ID, UserID: "u2"}); err != nil {
		t.Fatalf("like: %v", err)
	}
	if err := store.AddLike(ctx, feed.Like{PostID: p.ID, UserID: "u2"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	got, _ := store.GetPost(ctx, p.ID)
	if got.Likes != 1 {
		t.Fatalf("like counter wrong: %d", got.Likes)
	}

	if err := store.RemoveLike(ctx, p.ID, "u2"); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if err := store.RemoveLike(ctx, p.ID, "u2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second unlike, got %v", err)
	}
	got, _ = store.GetPost(ctx, p.ID)
	if got.Likes != 0 {
		t.Fatalf("counter not decremented: %d", got.Likes)
	}
}
