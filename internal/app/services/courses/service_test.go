package courses

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/earnhub/platform/internal/app/domain/course"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/services/referrals"
	"github.com/earnhub/platform/internal/app/services/users"
	"github.com/earnhub/platform/internal/app/storage/memory"
)

func testService(store *memory.Store) *Service {
	notifier := notifications.New(store, nil)
	accounts := users.New(store, store, notifier, users.Config{
		JWTSecret:  []byte("test-secret"),
		TokenTTL:   time.Hour,
		Issuer:     "test",
		BcryptCost: bcrypt.MinCost,
	}, nil)
	ref := referrals.New(store, store, store, notifier, nil)
	return New(store, store, store, accounts, ref, notifier, nil)
}

func seedStudent(t *testing.T, store *memory.Store, n int, points int64) user.User {
	t.Helper()
	ctx := context.Background()
	u, err := store.CreateUser(ctx, user.User{
		Email:        fmt.Sprintf("student%d@example.com", n),
		Name:         fmt.Sprintf("Student %d", n),
		ReferralCode: fmt.Sprintf("STU%d", n),
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
		in   course.Course
	}{
		{"missing title", course.Course{Lessons: 3}},
		{"zero lessons", course.Course{Title: "Go basics"}},
		{"negative reward", course.Course{Title: "Go basics", Lessons: 3, RewardPoints: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.in); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	c, err := svc.Create(ctx, course.Course{Title: "Go basics", Lessons: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != course.StatusDraft {
		t.Fatalf("expected draft default, got %s", c.Status)
	}
}

func TestEnroll(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	c, err := svc.Create(ctx, course.Course{Title: "Go basics", Lessons: 3, EnrollCost: 200})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	u := seedStudent(t, store, 1, 500)

	if _, err := svc.Enroll(ctx, c.ID, u.ID); !errors.Is(err, ErrNotPublished) {
		t.Fatalf("expected ErrNotPublished for draft, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, c.ID, course.StatusPublished); err != nil {
		t.Fatalf("publish: %v", err)
	}

	e, err := svc.Enroll(ctx, c.ID, u.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if e.LessonsCompleted != 0 || e.Completed {
		t.Fatalf("fresh enrollment has progress: %+v", e)
	}
	got, _ := store.GetUser(ctx, u.ID)
	if got.PointsBalance != 300 {
		t.Fatalf("enrollment cost not debited: %d", got.PointsBalance)
	}

	if _, err := svc.Enroll(ctx, c.ID, u.ID); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}
	got, _ = store.GetUser(ctx, u.ID)
	if got.PointsBalance != 300 {
		t.Fatalf("double enrollment changed balance: %d", got.PointsBalance)
	}

	broke := seedStudent(t, store, 2, 0)
	if _, err := svc.Enroll(ctx, c.ID, broke.ID); err == nil {
		t.Fatalf("expected debit failure for empty balance")
	}
}

func TestCompleteLessonPaysOnce(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	c, err := svc.Create(ctx, course.Course{
		Title: "Go basics", Lessons: 2, RewardPoints: 300, RewardXP: 25, Status: course.StatusPublished,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	u := seedStudent(t, store, 1, 0)

	if _, err := svc.CompleteLesson(ctx, c.ID, u.ID); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}
	if _, err := svc.Enroll(ctx, c.ID, u.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	e, err := svc.CompleteLesson(ctx, c.ID, u.ID)
	if err != nil {
		t.Fatalf("lesson 1: %v", err)
	}
	if e.LessonsCompleted != 1 || e.Completed {
		t.Fatalf("unexpected progress: %+v", e)
	}
	got, _ := store.GetUser(ctx, u.ID)
	if got.PointsBalance != 0 {
		t.Fatalf("reward paid before completion: %d", got.PointsBalance)
	}

	e, err = svc.CompleteLesson(ctx, c.ID, u.ID)
	if err != nil {
		t.Fatalf("lesson 2: %v", err)
	}
	if !e.Completed || e.LessonsCompleted != 2 || e.CompletedAt.IsZero() {
		t.Fatalf("completion not recorded: %+v", e)
	}
	got, _ = store.GetUser(ctx, u.ID)
	if got.PointsBalance != 300 || got.XP != 25 {
		t.Fatalf("reward wrong: points=%d xp=%d", got.PointsBalance, got.XP)
	}

	if _, err := svc.CompleteLesson(ctx, c.ID, u.ID); !errors.Is(err, ErrCourseComplete) {
		t.Fatalf("expected ErrCourseComplete, got %v", err)
	}
	got, _ = store.GetUser(ctx, u.ID)
	if got.PointsBalance != 300 {
		t.Fatalf("reward paid twice: %d", got.PointsBalance)
	}
}

func TestCompletionPaysReferrer(t *testing.T) {
	store := memory.New()
	svc := testService(store)
	ctx := context.Background()

	referrer, err := store.CreateUser(ctx, user.User{
		Email: "ref@example.com", Name: "Ref", ReferralCode: "REF1",
	})
	if err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	learner, err := store.CreateUser(ctx, user.User{
		Email: "lrn@example.com", Name: "Lrn", ReferralCode: "LRN1", ReferredBy: referrer.ID,
	})
	if err != nil {
		t.Fatalf("create learner: %v", err)
	}

	c, err := svc.Create(ctx, course.Course{
		Title: "Go basics", Lessons: 1, RewardPoints: 1_000, Status: course.StatusPublished,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Enroll(ctx, c.ID, learner.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := svc.CompleteLesson(ctx, c.ID, learner.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := store.GetUser(ctx, referrer.ID)
	if got.PointsBalance != 100 {
		t.Fatalf("referrer commission wrong: %d", got.PointsBalance)
	}
}
