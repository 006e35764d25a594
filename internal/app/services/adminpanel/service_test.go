package adminpanel

import (
	"context"
	"testing"

	"github.com/earnhub/platform/internal/app/domain/lottery"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/storage/memory"
)

func TestStatsFromStores(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, store, nil)
	ctx := context.Background()

	active, err := store.CreateUser(ctx, user.User{
		Email: "a@example.com", Name: "A", ReferralCode: "A1", Status: user.StatusActive,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{
		Email: "b@example.com", Name: "B", ReferralCode: "B1", Status: user.StatusSuspended,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.AdjustPointsBalance(ctx, active.ID, 750); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Tickets count across every lottery status, not only active draws.
	if _, err := store.CreateLottery(ctx, lottery.Lottery{
		Title: "Running", Status: lottery.StatusActive, TicketsSold: 3,
	}); err != nil {
		t.Fatalf("create lottery: %v", err)
	}
	if _, err := store.CreateLottery(ctx, lottery.Lottery{
		Title: "Finished", Status: lottery.StatusCompleted, TicketsSold: 5,
	}); err != nil {
		t.Fatalf("create lottery: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalUsers != 2 || stats.ActiveUsers != 1 || stats.SuspendedUsers != 1 {
		t.Fatalf("user counts wrong: %+v", stats)
	}
	if stats.PointsInCirculation != 750 {
		t.Fatalf("points in circulation wrong: %d", stats.PointsInCirculation)
	}
	if stats.ActiveLotteries != 1 {
		t.Fatalf("active lotteries wrong: %d", stats.ActiveLotteries)
	}
	if stats.TicketsSold != 8 {
		t.Fatalf("tickets sold should include completed draws: %d", stats.TicketsSold)
	}
	if stats.GeneratedAt.IsZero() {
		t.Fatalf("generated timestamp missing")
	}
}

func TestSystemStatusReportsProcess(t *testing.T) {
	svc := New(nil, nil, nil, nil, nil, nil)

	status := svc.SystemStatus(context.Background())
	if status.Goroutines <= 0 {
		t.Fatalf("goroutine count missing: %+v", status)
	}
	if status.GoVersion == "" {
		t.Fatalf("go version missing")
	}
	if status.CheckedAt.IsZero() {
		t.Fatalf("checked timestamp missing")
	}
}
