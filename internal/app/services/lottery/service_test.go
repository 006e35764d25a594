package lottery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/earnhub/platform/internal/app/domain/lottery"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage/memory"
)

func testService(store *memory.Store) *Service {
	return New(store, store, store, notifications.New(store, nil), nil)
}

func seedPlayer(t *testing.T, store *memory.Store, n int, points int64) user.User {
	t.Helper()
	ctx := context.Background()
	u, err := store.CreateUser(ctx, user.User{
		Email:        fmt.Sprintf("player%d@example.com", n),
		Name:         fmt.Sprintf("Player %d", n),
		ReferralCode: fmt.Sprintf("PLY%d", n),
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

func TestCreateValidation(t *testing.T) {
	svc := testService(memory.New())
	ctx := context.Background()

	cases := []struct {
		name string
		in   lottery.Lottery
	}{
		{"missing title", lottery.Lottery{TicketPrice: 10, Prizes: []lottery.Prize{{Amount: 100}}}},
		{"zero price", lottery.Lottery{Title: "Weekly", Prizes: []lottery.Prize{{Amount: 100}}}},
		{"no prizes", lottery.Lottery{Title: "Weekly", TicketPrice: 10}},
		{"negative prize", lottery.Lottery{Title: "Weekly", TicketPrice: 10, Prizes: []lottery.Prize{{Amount: -1}}}},
		{"more prizes than tickets", lottery.Lottery{Title: "Weekly", TicketPrice: 10, MaxTickets: 1,
			Prizes: []lottery.Prize{{Amount: 1}, {Amount: 1}}}},
		{"bad schedule", lottery.Lottery{Title: "Weekly", TicketPrice: 10, DrawSchedule: "not-cron",
			Prizes: []lottery.Prize{{Amount: 100}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.in); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestCreateNumbersPrizes(t *testing.T) {
	svc := testService(memory.New())
	ctx := context.Background()

	l, err := svc.Create(ctx, lottery.Lottery{
		Title:       "Weekly",
		TicketPrice: 10,
		Prizes:      []lottery.Prize{{Label: "Gold", Amount: 500}, {Label: "Silver", Amount: 200}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Status != lottery.StatusActive {
		t.Fatalf("expected active, got %s", l.Status)
	}
	for i, p := range l.Prizes {
		if p.Position != i+1 {
			t.Fatalf("prize %d has position %d", i, p.Position)
		}
	}
}

func TestBuyTicket(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	l, err := svc.Create(ctx, lottery.Lottery{
		Title: "Weekly", TicketPrice: 50, MaxTickets: 2, MaxTicketsPerUser: 1,
		Prizes: []lottery.Prize{{Label: "Gold", Amount: 500}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	a := seedPlayer(t, store, 1, 200)
	b := seedPlayer(t, store, 2, 200)
	c := seedPlayer(t, store, 3, 200)

	if _, err := svc.BuyTicket(ctx, l.ID, a.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	got, _ := store.GetUser(ctx, a.ID)
	if got.PointsBalance != 150 {
		t.Fatalf("ticket price not debited: %d", got.PointsBalance)
	}

	if _, err := svc.BuyTicket(ctx, l.ID, a.ID); !errors.Is(err, ErrUserTicketCap) {
		t.Fatalf("expected ErrUserTicketCap, got %v", err)
	}
	if _, err := svc.BuyTicket(ctx, l.ID, b.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := svc.BuyTicket(ctx, l.ID, c.ID); !errors.Is(err, ErrSoldOut) {
		t.Fatalf("expected ErrSoldOut, got %v", err)
	}

	refreshed, _ := svc.Get(ctx, l.ID)
	if refreshed.TicketsSold != 2 {
		t.Fatalf("expected 2 tickets sold, got %d", refreshed.TicketsSold)
	}

	broke := seedPlayer(t, store, 4, 0)
	big, err := svc.Create(ctx, lottery.Lottery{
		Title: "Open", TicketPrice: 50, Prizes: []lottery.Prize{{Amount: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.BuyTicket(ctx, big.ID, broke.ID); err == nil {
		t.Fatalf("expected debit failure for empty balance")
	}
}

func TestBuyTicketReleasesReservationOnFailedDebit(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	l, err := svc.Create(ctx, lottery.Lottery{
		Title: "Weekly", TicketPrice: 50, MaxTickets: 1,
		Prizes: []lottery.Prize{{Label: "Gold", Amount: 100}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	broke := seedPlayer(t, store, 1, 0)
	if _, err := svc.BuyTicket(ctx, l.ID, broke.ID); err == nil {
		t.Fatalf("expected debit failure for empty balance")
	}

	// The failed purchase must not hold the last ticket.
	got, _ := svc.Get(ctx, l.ID)
	if got.TicketsSold != 0 {
		t.Fatalf("reservation leaked: %d tickets sold", got.TicketsSold)
	}
	funded := seedPlayer(t, store, 2, 100)
	if _, err := svc.BuyTicket(ctx, l.ID, funded.ID); err != nil {
		t.Fatalf("buy after release: %v", err)
	}
}

func TestDraw(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	l, err := svc.Create(ctx, lottery.Lottery{
		Title: "Weekly", TicketPrice: 10,
		Prizes: []lottery.Prize{{Label: "Gold", Amount: 500}, {Label: "Silver", Amount: 200}, {Label: "Bronze", Amount: 100}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Draw(ctx, l.ID); !errors.Is(err, ErrNoTickets) {
		t.Fatalf("expected ErrNoTickets, got %v", err)
	}

	a := seedPlayer(t, store, 1, 100)
	b := seedPlayer(t, store, 2, 100)
	if _, err := svc.BuyTicket(ctx, l.ID, a.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := svc.BuyTicket(ctx, l.ID, b.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}

	drawn, err := svc.Draw(ctx, l.ID)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if drawn.Status != lottery.StatusCompleted {
		t.Fatalf("expected completed, got %s", drawn.Status)
	}
	// Two tickets, three prizes: only two winners, each a distinct ticket.
	if len(drawn.Winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(drawn.Winners))
	}
	if drawn.Winners[0].TicketID == drawn.Winners[1].TicketID {
		t.Fatalf("same ticket won twice")
	}
	if drawn.Winners[0].Position != 1 || drawn.Winners[1].Position != 2 {
		t.Fatalf("prize positions out of order: %+v", drawn.Winners)
	}
	if drawn.DrawnAt.IsZero() {
		t.Fatalf("drawn time not set")
	}

	// Both players spent 10 and between them won 500+200.
	ua, _ := store.GetUser(ctx, a.ID)
	ub, _ := store.GetUser(ctx, b.ID)
	if ua.PointsBalance+ub.PointsBalance != 200-20+700 {
		t.Fatalf("prize money not conserved: %d + %d", ua.PointsBalance, ub.PointsBalance)
	}

	if _, err := svc.Draw(ctx, l.ID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive on second draw, got %v", err)
	}
}

func TestCancelRefundsTickets(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	l, err := svc.Create(ctx, lottery.Lottery{
		Title: "Weekly", TicketPrice: 30,
		Prizes: []lottery.Prize{{Label: "Gold", Amount: 500}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a := seedPlayer(t, store, 1, 100)
	if _, err := svc.BuyTicket(ctx, l.ID, a.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, l.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != lottery.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	got, _ := store.GetUser(ctx, a.ID)
	if got.PointsBalance != 100 {
		t.Fatalf("ticket not refunded: %d", got.PointsBalance)
	}

	if _, err := svc.BuyTicket(ctx, l.ID, a.ID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive after cancel, got %v", err)
	}
}

func TestDrawScheduled(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	due, err := svc.Create(ctx, lottery.Lottery{
		Title: "Every minute", TicketPrice: 10, DrawSchedule: "* * * * *",
		Prizes: []lottery.Prize{{Label: "Gold", Amount: 100}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, lottery.Lottery{
		Title: "Manual only", TicketPrice: 10,
		Prizes: []lottery.Prize{{Label: "Gold", Amount: 100}},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	a := seedPlayer(t, store, 1, 100)
	if _, err := svc.BuyTicket(ctx, due.ID, a.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}

	drawn := svc.DrawScheduled(ctx, time.Now(), 2*time.Minute)
	if drawn != 1 {
		t.Fatalf("expected 1 scheduled draw, got %d", drawn)
	}
	got, _ := svc.Get(ctx, due.ID)
	if got.Status != lottery.StatusCompleted {
		t.Fatalf("scheduled lottery not drawn: %s", got.Status)
	}
}
