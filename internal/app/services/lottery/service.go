// Package lottery manages raffle draws over purchased tickets.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/earnhub/platform/internal/app/domain/lottery"
	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/metrics"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/pkg/logger"
)

// Errors
var (
	ErrNotActive     = errors.New("lottery is not active")
	ErrSoldOut       = errors.New("lottery is sold out")
	ErrUserTicketCap = errors.New("per-user ticket limit reached")
	ErrNoTickets     = errors.New("no tickets sold")
)

// Mailer sends the congratulation mail for a winning ticket.
type Mailer interface {
	SendLotteryWin(to, lotteryTitle, prizeLabel string) error
}

// Service manages lotteries, ticket sales and draws.
type Service struct {
	store    storage.LotteryStore
	users    storage.UserStore
	wallet   storage.WalletStore
	notifier *notifications.Service
	mailer   Mailer
	log      *logger.Logger

	mu   sync.Mutex // Serializes draws and cancellations
	rand *rand.Rand
}

// New creates a configured lottery service.
func New(store storage.LotteryStore, userStore storage.UserStore, walletStore storage.WalletStore,
	notifier *notifications.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("lottery")
	}
	return &Service{
		store:    store,
		users:    userStore,
		wallet:   walletStore,
		notifier: notifier,
		log:      log,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithMailer enables winner congratulation mail.
func (s *Service) WithMailer(m Mailer) { s.mailer = m }

// Create opens a new lottery. Prizes are ordered by position starting at 1.
func (s *Service) Create(ctx context.Context, l lottery.Lottery) (lottery.Lottery, error) {
	l.Title = strings.TrimSpace(l.Title)
	if l.Title == "" {
		return lottery.Lottery{}, fmt.Errorf("title is required")
	}
	if l.TicketPrice <= 0 {
		return lottery.Lottery{}, fmt.Errorf("ticket price must be positive")
	}
	if len(l.Prizes) == 0 {
		return lottery.Lottery{}, fmt.Errorf("at least one prize is required")
	}
	for i := range l.Prizes {
		if l.Prizes[i].Amount < 0 {
			return lottery.Lottery{}, fmt.Errorf("prize %d: amount cannot be negative", i+1)
		}
		l.Prizes[i].Position = i + 1
	}
	if l.MaxTickets < 0 || l.MaxTicketsPerUser < 0 {
		return lottery.Lottery{}, fmt.Errorf("ticket caps cannot be negative")
	}
	if l.MaxTickets > 0 && len(l.Prizes) > l.MaxTickets {
		return lottery.Lottery{}, fmt.Errorf("more prizes than sellable tickets")
	}
	if l.DrawSchedule != "" {
		if _, err := cron.ParseStandard(l.DrawSchedule); err != nil {
			return lottery.Lottery{}, fmt.Errorf("invalid draw schedule: %w", err)
		}
	}
	l.Status = lottery.StatusActive
	l.TicketsSold = 0
	l.Winners = nil

	created, err := s.store.CreateLottery(ctx, l)
	if err != nil {
		return lottery.Lottery{}, fmt.Errorf("create lottery: %w", err)
	}
	s.log.WithField("lottery_id", created.ID).
		WithField("price", created.TicketPrice).
		WithField("prizes", len(created.Prizes)).
		Info("lottery created")
	return created, nil
}

// Get returns one lottery.
func (s *Service) Get(ctx context.Context, id string) (lottery.Lottery, error) {
	return s.store.GetLottery(ctx, id)
}

// List returns lotteries filtered by status. An empty status returns all.
func (s *Service) List(ctx context.Context, status lottery.Status, limit int) ([]lottery.Lottery, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListLotteries(ctx, status, limit)
}

// BuyTicket debits the ticket price and issues a ticket.
func (s *Service) BuyTicket(ctx context.Context, lotteryID, userID string) (lottery.Ticket, error) {
	l, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return lottery.Ticket{}, err
	}
	if l.Status != lottery.StatusActive {
		return lottery.Ticket{}, ErrNotActive
	}
	if l.MaxTicketsPerUser > 0 {
		owned, err := s.store.CountTicketsByUser(ctx, lotteryID, userID)
		if err != nil {
			return lottery.Ticket{}, fmt.Errorf("count tickets: %w", err)
		}
		if owned >= l.MaxTicketsPerUser {
			return lottery.Ticket{}, ErrUserTicketCap
		}
	}

	// The sold counter is bumped in the store before any money moves, so
	// concurrent buyers cannot oversell the cap. A failed debit or ticket
	// insert hands the reservation back.
	if l, err = s.store.ReserveTicket(ctx, lotteryID); err != nil {
		if errors.Is(err, storage.ErrSoldOut) {
			return lottery.Ticket{}, ErrSoldOut
		}
		return lottery.Ticket{}, fmt.Errorf("reserve ticket: %w", err)
	}

	debited, err := s.users.AdjustPointsBalance(ctx, userID, -l.TicketPrice)
	if err != nil {
		if rlErr := s.store.ReleaseTicket(ctx, lotteryID); rlErr != nil {
			s.log.WithError(rlErr).WithField("lottery_id", lotteryID).Warn("ticket reservation not released")
		}
		return lottery.Ticket{}, fmt.Errorf("debit ticket price: %w", err)
	}

	ticket, err := s.store.CreateTicket(ctx, lottery.Ticket{
		LotteryID: lotteryID,
		UserID:    userID,
		Price:     l.TicketPrice,
	})
	if err != nil {
		if _, rbErr := s.users.AdjustPointsBalance(ctx, userID, l.TicketPrice); rbErr != nil {
			s.log.WithError(rbErr).WithField("user_id", userID).Error("ticket debit rollback failed")
		}
		if rlErr := s.store.ReleaseTicket(ctx, lotteryID); rlErr != nil {
			s.log.WithError(rlErr).WithField("lottery_id", lotteryID).Warn("ticket reservation not released")
		}
		return lottery.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}

	if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
		UserID:       userID,
		Type:         wallet.TxLotteryTicket,
		Amount:       -l.TicketPrice,
		BalanceAfter: debited.PointsBalance,
		Reference:    ticket.ID,
		Description:  fmt.Sprintf("ticket for %q", l.Title),
	}); err != nil {
		s.log.WithError(err).WithField("ticket_id", ticket.ID).Warn("ticket transaction not recorded")
	}
	metrics.IncTicketSold()

	return ticket, nil
}

// Draw closes an active lottery and selects winners. Tickets are shuffled
// and the first N take the N prize positions in order. A ticket wins at
// most one prize.
func (s *Service) Draw(ctx context.Context, lotteryID string) (lottery.Lottery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return lottery.Lottery{}, err
	}
	if l.Status != lottery.StatusActive {
		return lottery.Lottery{}, ErrNotActive
	}

	tickets, err := s.store.ListTicketsByLottery(ctx, lotteryID)
	if err != nil {
		return lottery.Lottery{}, fmt.Errorf("list tickets: %w", err)
	}
	if len(tickets) == 0 {
		return lottery.Lottery{}, ErrNoTickets
	}

	s.rand.Shuffle(len(tickets), func(i, j int) {
		tickets[i], tickets[j] = tickets[j], tickets[i]
	})

	n := len(l.Prizes)
	if n > len(tickets) {
		n = len(tickets)
	}

	winners := make([]lottery.Winner, 0, n)
	for i := 0; i < n; i++ {
		t := tickets[i]
		prize := l.Prizes[i]

		t.Winning = true
		t.Position = prize.Position
		if _, err := s.store.UpdateTicket(ctx, t); err != nil {
			s.log.WithError(err).WithField("ticket_id", t.ID).Warn("winning ticket not persisted")
		}

		if prize.Amount > 0 {
			credited, err := s.users.AdjustPointsBalance(ctx, t.UserID, prize.Amount)
			if err != nil {
				s.log.WithError(err).WithField("user_id", t.UserID).Error("prize not credited")
			} else {
				if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
					UserID:       t.UserID,
					Type:         wallet.TxLotteryPrize,
					Amount:       prize.Amount,
					BalanceAfter: credited.PointsBalance,
					Reference:    t.ID,
					Description:  fmt.Sprintf("%s in %q", prize.Label, l.Title),
				}); err != nil {
					s.log.WithError(err).WithField("ticket_id", t.ID).Warn("prize transaction not recorded")
				}
				metrics.AddPointsCredited("lottery_prize", prize.Amount)
			}
		}
		s.notifier.Notify(ctx, t.UserID, notification.CategoryLottery,
			"You won!", fmt.Sprintf("Your ticket won %s in %q.", prize.Label, l.Title), l.ID)
		if s.mailer != nil {
			if u, err := s.users.GetUser(ctx, t.UserID); err == nil {
				if err := s.mailer.SendLotteryWin(u.Email, l.Title, prize.Label); err != nil {
					s.log.WithError(err).WithField("user_id", t.UserID).Warn("winner mail not sent")
				}
			}
		}

		winners = append(winners, lottery.Winner{
			Position:    prize.Position,
			TicketID:    t.ID,
			UserID:      t.UserID,
			PrizeLabel:  prize.Label,
			PrizeAmount: prize.Amount,
		})
	}

	l.Status = lottery.StatusCompleted
	l.Winners = winners
	l.DrawnAt = time.Now().UTC()
	updated, err := s.store.UpdateLottery(ctx, l)
	if err != nil {
		return lottery.Lottery{}, fmt.Errorf("finalize draw: %w", err)
	}
	metrics.IncDraw("completed")

	s.log.WithField("lottery_id", lotteryID).
		WithField("tickets", len(tickets)).
		WithField("winners", len(winners)).
		Info("lottery drawn")
	return updated, nil
}

// Cancel voids an active lottery and refunds every ticket at its purchase
// price.
func (s *Service) Cancel(ctx context.Context, lotteryID string) (lottery.Lottery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.store.GetLottery(ctx, lotteryID)
	if err != nil {
		return lottery.Lottery{}, err
	}
	if l.Status != lottery.StatusActive {
		return lottery.Lottery{}, ErrNotActive
	}

	tickets, err := s.store.ListTicketsByLottery(ctx, lotteryID)
	if err != nil {
		return lottery.Lottery{}, fmt.Errorf("list tickets: %w", err)
	}

	for _, t := range tickets {
		refunded, err := s.users.AdjustPointsBalance(ctx, t.UserID, t.Price)
		if err != nil {
			s.log.WithError(err).WithField("ticket_id", t.ID).Error("ticket not refunded")
			continue
		}
		if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
			UserID:       t.UserID,
			Type:         wallet.TxLotteryRefund,
			Amount:       t.Price,
			BalanceAfter: refunded.PointsBalance,
			Reference:    t.ID,
			Description:  fmt.Sprintf("refund for %q", l.Title),
		}); err != nil {
			s.log.WithError(err).WithField("ticket_id", t.ID).Warn("refund transaction not recorded")
		}
		s.notifier.Notify(ctx, t.UserID, notification.CategoryLottery,
			"Lottery cancelled", fmt.Sprintf("%q was cancelled and your ticket was refunded.", l.Title), l.ID)
	}

	l.Status = lottery.StatusCancelled
	updated, err := s.store.UpdateLottery(ctx, l)
	if err != nil {
		return lottery.Lottery{}, fmt.Errorf("finalize cancellation: %w", err)
	}
	metrics.IncDraw("cancelled")

	s.log.WithField("lottery_id", lotteryID).WithField("refunds", len(tickets)).Info("lottery cancelled")
	return updated, nil
}

// UserTickets returns a user's tickets, newest first.
func (s *Service) UserTickets(ctx context.Context, userID string, limit int) ([]lottery.Ticket, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListTicketsByUser(ctx, userID, limit)
}

// DrawScheduled draws every active lottery whose cron schedule fired within
// the window ending at now. The scheduler calls this once per minute.
func (s *Service) DrawScheduled(ctx context.Context, now time.Time, window time.Duration) int {
	active, err := s.store.ListLotteries(ctx, lottery.StatusActive, 0)
	if err != nil {
		s.log.WithError(err).Warn("scheduled draw scan failed")
		return 0
	}
	drawn := 0
	for _, l := range active {
		if l.DrawSchedule == "" {
			continue
		}
		sched, err := cron.ParseStandard(l.DrawSchedule)
		if err != nil {
			s.log.WithError(err).WithField("lottery_id", l.ID).Warn("bad draw schedule")
			continue
		}
		if next := sched.Next(now.Add(-window)); next.After(now) {
			continue
		}
		if _, err := s.Draw(ctx, l.ID); err != nil {
			if !errors.Is(err, ErrNoTickets) {
				s.log.WithError(err).WithField("lottery_id", l.ID).Warn("scheduled draw failed")
			}
			continue
		}
		drawn++
	}
	return drawn
}
