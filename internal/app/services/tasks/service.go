// Package tasks manages earnable tasks, submissions and review payouts.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/task"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/metrics"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/services/referrals"
	"github.com/earnhub/platform/internal/app/services/users"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/pkg/logger"
)

// Errors
var (
	ErrTaskClosed       = errors.New("task is not accepting submissions")
	ErrAlreadySubmitted = errors.New("task already submitted")
	ErrDailyLimit       = errors.New("daily task limit reached")
	ErrNotPending       = errors.New("submission already reviewed")
)

// Service manages the task catalog and review pipeline.
type Service struct {
	store     storage.TaskStore
	users     storage.UserStore
	wallet    storage.WalletStore
	plans     storage.PlanStore
	accounts  *users.Service
	referrals *referrals.Service
	notifier  *notifications.Service
	log       *logger.Logger
}

// New creates a configured task service.
func New(store storage.TaskStore, userStore storage.UserStore, walletStore storage.WalletStore,
	accounts *users.Service, ref *referrals.Service, notifier *notifications.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tasks")
	}
	return &Service{
		store:     store,
		users:     userStore,
		wallet:    walletStore,
		accounts:  accounts,
		referrals: ref,
		notifier:  notifier,
		log:       log,
	}
}

// WithPlans enables tier-based daily submission limits.
func (s *Service) WithPlans(plans storage.PlanStore) *Service {
	s.plans = plans
	return s
}

// Create publishes a new task.
func (s *Service) Create(ctx context.Context, t task.Task) (task.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return task.Task{}, fmt.Errorf("title is required")
	}
	if t.RewardPoints <= 0 {
		return task.Task{}, fmt.Errorf("reward must be positive")
	}
	if t.RewardXP < 0 {
		return task.Task{}, fmt.Errorf("reward XP cannot be negative")
	}
	if t.MaxSubmissions < 0 {
		return task.Task{}, fmt.Errorf("max submissions cannot be negative")
	}
	if t.Status == "" {
		t.Status = task.StatusActive
	}
	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return task.Task{}, fmt.Errorf("create task: %w", err)
	}
	s.log.WithField("task_id", created.ID).WithField("reward", created.RewardPoints).Info("task created")
	return created, nil
}

// Update modifies a task's editable fields.
func (s *Service) Update(ctx context.Context, id string, title, description, category *string, rewardPoints, rewardXP *int64, maxSubmissions *int, expiresAt *time.Time) (task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return task.Task{}, fmt.Errorf("title cannot be empty")
		}
		t.Title = trimmed
	}
	if description != nil {
		t.Description = *description
	}
	if category != nil {
		t.Category = *category
	}
	if rewardPoints != nil {
		if *rewardPoints <= 0 {
			return task.Task{}, fmt.Errorf("reward must be positive")
		}
		t.RewardPoints = *rewardPoints
	}
	if rewardXP != nil {
		if *rewardXP < 0 {
			return task.Task{}, fmt.Errorf("reward XP cannot be negative")
		}
		t.RewardXP = *rewardXP
	}
	if maxSubmissions != nil {
		if *maxSubmissions < 0 {
			return task.Task{}, fmt.Errorf("max submissions cannot be negative")
		}
		t.MaxSubmissions = *maxSubmissions
	}
	if expiresAt != nil {
		t.ExpiresAt = *expiresAt
	}
	return s.store.UpdateTask(ctx, t)
}

// SetStatus pauses, resumes or archives a task.
func (s *Service) SetStatus(ctx context.Context, id string, status task.Status) (task.Task, error) {
	switch status {
	case task.StatusActive, task.StatusPaused, task.StatusExpired, task.StatusArchived:
	default:
		return task.Task{}, fmt.Errorf("unknown status %q", status)
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	t.Status = status
	return s.store.UpdateTask(ctx, t)
}

// Get returns one task.
func (s *Service) Get(ctx context.Context, id string) (task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// List returns tasks filtered by status. An empty status returns all.
func (s *Service) List(ctx context.Context, status task.Status, limit int) ([]task.Task, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListTasks(ctx, status, limit)
}

// Submit records the user's proof for a task. A user holds at most one
// pending or approved submission per task, and their package tier caps
// submissions per calendar day.
func (s *Service) Submit(ctx context.Context, taskID, userID, proof, proofFileKey string) (task.Submission, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return task.Submission{}, err
	}
	if t.Status != task.StatusActive || t.Expired(time.Now()) || t.Full() {
		return task.Submission{}, ErrTaskClosed
	}

	proof = strings.TrimSpace(proof)
	if proof == "" && proofFileKey == "" {
		return task.Submission{}, fmt.Errorf("proof is required")
	}

	if _, err := s.store.GetOpenSubmission(ctx, taskID, userID); err == nil {
		return task.Submission{}, ErrAlreadySubmitted
	}

	if err := s.checkDailyLimit(ctx, userID); err != nil {
		return task.Submission{}, err
	}

	sub, err := s.store.CreateSubmission(ctx, task.Submission{
		TaskID:       taskID,
		UserID:       userID,
		Proof:        proof,
		ProofFileKey: proofFileKey,
		Status:       task.SubmissionPending,
	})
	if err != nil {
		return task.Submission{}, fmt.Errorf("create submission: %w", err)
	}

	s.log.WithField("task_id", taskID).WithField("user_id", userID).Info("submission received")
	return sub, nil
}

// Review approves or rejects a pending submission. Approval credits the
// reward, grants XP and distributes referral commissions.
func (s *Service) Review(ctx context.Context, submissionID string, approve bool, reviewerID, rejectReason string) (task.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return task.Submission{}, err
	}
	if sub.Status != task.SubmissionPending {
		return task.Submission{}, ErrNotPending
	}

	t, err := s.store.GetTask(ctx, sub.TaskID)
	if err != nil {
		return task.Submission{}, err
	}

	sub.ReviewedBy = reviewerID
	sub.ReviewedAt = time.Now().UTC()
	if !approve {
		sub.Status = task.SubmissionRejected
		sub.RejectReason = strings.TrimSpace(rejectReason)
		updated, err := s.store.UpdateSubmission(ctx, sub)
		if err != nil {
			return task.Submission{}, err
		}
		s.notifier.Notify(ctx, sub.UserID, notification.CategoryTask,
			"Submission rejected", fmt.Sprintf("Your submission for %q was rejected.", t.Title), sub.TaskID)
		return updated, nil
	}

	sub.Status = task.SubmissionApproved
	updated, err := s.store.UpdateSubmission(ctx, sub)
	if err != nil {
		return task.Submission{}, err
	}

	t.Submissions++
	if t.Full() {
		t.Status = task.StatusExpired
	}
	if _, err := s.store.UpdateTask(ctx, t); err != nil {
		s.log.WithError(err).WithField("task_id", t.ID).Warn("submission count not persisted")
	}

	if err := s.payout(ctx, t, updated); err != nil {
		return task.Submission{}, err
	}

	s.log.WithField("submission_id", submissionID).
		WithField("user_id", sub.UserID).
		WithField("points", t.RewardPoints).
		Info("submission approved")
	return updated, nil
}

// ListSubmissions returns submissions for review, filtered by status.
func (s *Service) ListSubmissions(ctx context.Context, status task.SubmissionStatus, limit int) ([]task.Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListSubmissionsByStatus(ctx, status, limit)
}

// UserSubmissions returns a user's submission history.
func (s *Service) UserSubmissions(ctx context.Context, userID string, limit int) ([]task.Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListSubmissionsByUser(ctx, userID, limit)
}

// ExpireOverdue archives active tasks past their expiry. Returns how many
// tasks changed state.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	active, err := s.store.ListTasks(ctx, task.StatusActive, 0)
	if err != nil {
		return 0, fmt.Errorf("list active tasks: %w", err)
	}
	now := time.Now()
	expired := 0
	for _, t := range active {
		if !t.Expired(now) {
			continue
		}
		t.Status = task.StatusExpired
		if _, err := s.store.UpdateTask(ctx, t); err != nil {
			s.log.WithError(err).WithField("task_id", t.ID).Warn("task not expired")
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) checkDailyLimit(ctx context.Context, userID string) error {
	if s.plans == nil {
		return nil
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	p, err := s.plans.GetPlan(ctx, u.PackageTier)
	if err != nil {
		// Unknown tier falls through without a cap.
		return nil
	}
	if p.DailyTaskLimit <= 0 {
		return nil
	}
	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := s.store.CountUserSubmissionsSince(ctx, userID, startOfDay)
	if err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}
	if count >= p.DailyTaskLimit {
		return ErrDailyLimit
	}
	return nil
}

func (s *Service) payout(ctx context.Context, t task.Task, sub task.Submission) error {
	u, err := s.users.AdjustPointsBalance(ctx, sub.UserID, t.RewardPoints)
	if err != nil {
		return fmt.Errorf("credit reward: %w", err)
	}
	if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
		UserID:       sub.UserID,
		Type:         wallet.TxTaskReward,
		Amount:       t.RewardPoints,
		BalanceAfter: u.PointsBalance,
		Reference:    sub.ID,
		Description:  fmt.Sprintf("reward for %q", t.Title),
	}); err != nil {
		s.log.WithError(err).WithField("submission_id", sub.ID).Warn("reward transaction not recorded")
	}
	metrics.AddPointsCredited("task_reward", t.RewardPoints)

	s.accounts.AddXP(ctx, sub.UserID, t.RewardXP)

	s.notifier.Notify(ctx, sub.UserID, notification.CategoryTask,
		"Submission approved", fmt.Sprintf("You earned %d points for %q.", t.RewardPoints, t.Title), sub.TaskID)

	// Commission failures never fail the payout.
	if s.referrals != nil {
		s.referrals.Distribute(ctx, sub.UserID, t.RewardPoints, sub.ID)
	}
	return nil
}
