// Package courses manages the course catalog and paid completions.
package courses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/earnhub/platform/internal/app/domain/course"
	"github.com/earnhub/platform/internal/app/domain/notification"
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
	ErrNotPublished    = errors.New("course is not published")
	ErrAlreadyEnrolled = errors.New("already enrolled")
	ErrNotEnrolled     = errors.New("not enrolled")
	ErrCourseComplete  = errors.New("course already completed")
)

// Service manages courses and enrollment progress.
type Service struct {
	store     storage.CourseStore
	users     storage.UserStore
	wallet    storage.WalletStore
	accounts  *users.Service
	referrals *referrals.Service
	notifier  *notifications.Service
	log       *logger.Logger
}

// New creates a configured course service.
func New(store storage.CourseStore, userStore storage.UserStore, walletStore storage.WalletStore,
	accounts *users.Service, ref *referrals.Service, notifier *notifications.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("courses")
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

// Create adds a course to the catalog.
func (s *Service) Create(ctx context.Context, c course.Course) (course.Course, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return course.Course{}, fmt.Errorf("title is required")
	}
	if c.Lessons <= 0 {
		return course.Course{}, fmt.Errorf("lesson count must be positive")
	}
	if c.EnrollCost < 0 || c.RewardPoints < 0 || c.RewardXP < 0 {
		return course.Course{}, fmt.Errorf("costs and rewards cannot be negative")
	}
	if c.Status == "" {
		c.Status = course.StatusDraft
	}
	created, err := s.store.CreateCourse(ctx, c)
	if err != nil {
		return course.Course{}, fmt.Errorf("create course: %w", err)
	}
	s.log.WithField("course_id", created.ID).Info("course created")
	return created, nil
}

// SetStatus publishes, unpublishes or archives a course.
func (s *Service) SetStatus(ctx context.Context, id string, status course.Status) (course.Course, error) {
	switch status {
	case course.StatusPublished, course.StatusDraft, course.StatusArchived:
	default:
		return course.Course{}, fmt.Errorf("unknown status %q", status)
	}
	c, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return course.Course{}, err
	}
	c.Status = status
	return s.store.UpdateCourse(ctx, c)
}

// Get returns one course.
func (s *Service) Get(ctx context.Context, id string) (course.Course, error) {
	return s.store.GetCourse(ctx, id)
}

// List returns courses filtered by status. An empty status returns all.
func (s *Service) List(ctx context.Context, status course.Status, limit int) ([]course.Course, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListCourses(ctx, status, limit)
}

// Enroll joins the user to a published course, debiting the enrollment cost
// when the course is paid.
func (s *Service) Enroll(ctx context.Context, courseID, userID string) (course.Enrollment, error) {
	c, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return course.Enrollment{}, err
	}
	if c.Status != course.StatusPublished {
		return course.Enrollment{}, ErrNotPublished
	}
	if _, err := s.store.GetEnrollment(ctx, courseID, userID); err == nil {
		return course.Enrollment{}, ErrAlreadyEnrolled
	}

	if c.EnrollCost > 0 {
		debited, err := s.users.AdjustPointsBalance(ctx, userID, -c.EnrollCost)
		if err != nil {
			return course.Enrollment{}, fmt.Errorf("debit enrollment cost: %w", err)
		}
		if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
			UserID:       userID,
			Type:         wallet.TxCourseFee,
			Amount:       -c.EnrollCost,
			BalanceAfter: debited.PointsBalance,
			Reference:    courseID,
			Description:  fmt.Sprintf("enrollment in %q", c.Title),
		}); err != nil {
			s.log.WithError(err).WithField("course_id", courseID).Warn("enrollment transaction not recorded")
		}
	}

	e, err := s.store.CreateEnrollment(ctx, course.Enrollment{
		CourseID: courseID,
		UserID:   userID,
	})
	if err != nil {
		if c.EnrollCost > 0 {
			if _, rbErr := s.users.AdjustPointsBalance(ctx, userID, c.EnrollCost); rbErr != nil {
				s.log.WithError(rbErr).WithField("user_id", userID).Error("enrollment debit rollback failed")
			}
		}
		if errors.Is(err, storage.ErrDuplicate) {
			return course.Enrollment{}, ErrAlreadyEnrolled
		}
		return course.Enrollment{}, fmt.Errorf("create enrollment: %w", err)
	}

	s.log.WithField("course_id", courseID).WithField("user_id", userID).Info("user enrolled")
	return e, nil
}

// CompleteLesson advances the user's progress by one lesson. Finishing the
// last lesson pays the course reward once.
func (s *Service) CompleteLesson(ctx context.Context, courseID, userID string) (course.Enrollment, error) {
	c, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return course.Enrollment{}, err
	}
	e, err := s.store.GetEnrollment(ctx, courseID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return course.Enrollment{}, ErrNotEnrolled
		}
		return course.Enrollment{}, err
	}
	if e.Completed {
		return course.Enrollment{}, ErrCourseComplete
	}

	e.LessonsCompleted++
	if e.LessonsCompleted >= c.Lessons {
		e.LessonsCompleted = c.Lessons
		e.Completed = true
		e.CompletedAt = time.Now().UTC()
	}
	updated, err := s.store.UpdateEnrollment(ctx, e)
	if err != nil {
		return course.Enrollment{}, err
	}

	if updated.Completed {
		s.reward(ctx, c, updated)
	}
	return updated, nil
}

// Enrollments returns a user's enrollments, newest first.
func (s *Service) Enrollments(ctx context.Context, userID string, limit int) ([]course.Enrollment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListEnrollmentsByUser(ctx, userID, limit)
}

func (s *Service) reward(ctx context.Context, c course.Course, e course.Enrollment) {
	if c.RewardPoints > 0 {
		credited, err := s.users.AdjustPointsBalance(ctx, e.UserID, c.RewardPoints)
		if err != nil {
			s.log.WithError(err).WithField("user_id", e.UserID).Error("course reward not credited")
		} else {
			if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
				UserID:       e.UserID,
				Type:         wallet.TxCourseReward,
				Amount:       c.RewardPoints,
				BalanceAfter: credited.PointsBalance,
				Reference:    e.ID,
				Description:  fmt.Sprintf("completed %q", c.Title),
			}); err != nil {
				s.log.WithError(err).WithField("enrollment_id", e.ID).Warn("course transaction not recorded")
			}
			metrics.AddPointsCredited("course_reward", c.RewardPoints)
			if s.referrals != nil {
				s.referrals.Distribute(ctx, e.UserID, c.RewardPoints, e.ID)
			}
		}
	}
	s.accounts.AddXP(ctx, e.UserID, c.RewardXP)
	s.notifier.Notify(ctx, e.UserID, notification.CategoryCourse,
		"Course completed", fmt.Sprintf("You finished %q and earned %d points.", c.Title, c.RewardPoints), c.ID)

	s.log.WithField("course_id", c.ID).WithField("user_id", e.UserID).Info("course completed")
}
