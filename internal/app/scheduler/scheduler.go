// Package scheduler runs the platform's recurring jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/services/lottery"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/services/tasks"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/pkg/logger"
)

// StaleWithdrawalAge is how long a withdrawal may sit pending before the
// requester is reminded it is still in review.
const StaleWithdrawalAge = 48 * time.Hour

// Scheduler drives scheduled lottery draws, task expiry and withdrawal
// reminders. It implements the system lifecycle interface.
type Scheduler struct {
	cron     *cron.Cron
	tasks    *tasks.Service
	lottery  *lottery.Service
	wallet   storage.WalletStore
	notifier *notifications.Service
	log      *logger.Logger
}

// New creates the scheduler with its job set registered but not started.
func New(taskSvc *tasks.Service, lotterySvc *lottery.Service, walletStore storage.WalletStore,
	notifier *notifications.Service, log *logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewDefault("scheduler")
	}
	s := &Scheduler{
		cron:     cron.New(),
		tasks:    taskSvc,
		lottery:  lotterySvc,
		wallet:   walletStore,
		notifier: notifier,
		log:      log,
	}

	jobs := []struct {
		spec string
		name string
		run  func()
	}{
		{"* * * * *", "lottery draws", s.runScheduledDraws},
		{"@hourly", "task expiry", s.expireTasks},
		{"0 9 * * *", "withdrawal reminders", s.remindStaleWithdrawals},
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return nil, fmt.Errorf("register %s job: %w", job.name, err)
		}
	}
	return s, nil
}

// Name implements the system lifecycle interface.
func (s *Scheduler) Name() string { return "scheduler" }

// Start begins running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.log.Info("scheduler started")
	return nil
}

// Stop halts job execution, waiting for in-flight jobs to finish or the
// context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runScheduledDraws() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if drawn := s.lottery.DrawScheduled(ctx, time.Now(), time.Minute); drawn > 0 {
		s.log.WithField("drawn", drawn).Info("scheduled lotteries drawn")
	}
}

func (s *Scheduler) expireTasks() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	expired, err := s.tasks.ExpireOverdue(ctx)
	if err != nil {
		s.log.WithError(err).Warn("task expiry sweep failed")
		return
	}
	if expired > 0 {
		s.log.WithField("expired", expired).Info("overdue tasks expired")
	}
}

func (s *Scheduler) remindStaleWithdrawals() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pending, err := s.wallet.ListWithdrawalsByStatus(ctx, wallet.WithdrawalPending, 0)
	if err != nil {
		s.log.WithError(err).Warn("withdrawal reminder sweep failed")
		return
	}
	cutoff := time.Now().Add(-StaleWithdrawalAge)
	for _, w := range pending {
		if w.RequestedAt.After(cutoff) {
			continue
		}
		s.notifier.Notify(ctx, w.UserID, notification.CategoryWallet,
			"Withdrawal in review",
			"Your withdrawal request is still being reviewed. No action is needed.", w.ID)
	}
}
