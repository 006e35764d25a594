// Package storage defines the persistence interfaces consumed by the
// application services. Implementations live in the memory and postgres
// subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/earnhub/platform/internal/app/domain/course"
	"github.com/earnhub/platform/internal/app/domain/feed"
	"github.com/earnhub/platform/internal/app/domain/lottery"
	"github.com/earnhub/platform/internal/app/domain/market"
	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/plan"
	"github.com/earnhub/platform/internal/app/domain/referral"
	"github.com/earnhub/platform/internal/app/domain/task"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/domain/wallet"
)

// Sentinel errors shared by all store implementations.
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicate           = errors.New("record already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSoldOut             = errors.New("ticket cap reached")
)

// UserStore persists platform members. Balance adjustments are atomic: an
// adjustment that would drive a balance negative fails with
// ErrInsufficientBalance and leaves the row unchanged.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]user.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CountReferrals(ctx context.Context, userID string) (int, error)
	AdjustPointsBalance(ctx context.Context, userID string, delta int64) (user.User, error)
	AdjustCashBalance(ctx context.Context, userID string, delta int64) (user.User, error)
}

// TaskStore persists tasks and their submissions.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, id string) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)
	ListTasks(ctx context.Context, status task.Status, limit int) ([]task.Task, error)

	CreateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error)
	GetSubmission(ctx context.Context, id string) (task.Submission, error)
	UpdateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error)
	ListSubmissionsByTask(ctx context.Context, taskID string, limit int) ([]task.Submission, error)
	ListSubmissionsByUser(ctx context.Context, userID string, limit int) ([]task.Submission, error)
	ListSubmissionsByStatus(ctx context.Context, status task.SubmissionStatus, limit int) ([]task.Submission, error)
	// GetOpenSubmission returns the user's pending or approved submission for
	// a task, or ErrNotFound.
	GetOpenSubmission(ctx context.Context, taskID, userID string) (task.Submission, error)
	CountUserSubmissionsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// WalletStore persists the transaction ledger and withdrawals.
type WalletStore interface {
	CreateTransaction(ctx context.Context, tx wallet.Transaction) (wallet.Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]wallet.Transaction, error)

	CreateWithdrawal(ctx context.Context, w wallet.Withdrawal) (wallet.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (wallet.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w wallet.Withdrawal) (wallet.Withdrawal, error)
	ListWithdrawalsByUser(ctx context.Context, userID string, limit int) ([]wallet.Withdrawal, error)
	ListWithdrawalsByStatus(ctx context.Context, status wallet.WithdrawalStatus, limit int) ([]wallet.Withdrawal, error)
}

// ReferralStore persists the commission-level table and earning records.
type ReferralStore interface {
	UpsertCommissionLevel(ctx context.Context, lvl referral.CommissionLevel) (referral.CommissionLevel, error)
	// ListCommissionLevels returns configured levels ordered ascending.
	ListCommissionLevels(ctx context.Context) ([]referral.CommissionLevel, error)
	DeleteCommissionLevel(ctx context.Context, level int) error

	CreateEarning(ctx context.Context, e referral.Earning) (referral.Earning, error)
	ListEarningsByReferrer(ctx context.Context, referrerID string, limit int) ([]referral.Earning, error)
	ReferralLeaderboard(ctx context.Context, limit int) ([]referral.LeaderboardEntry, error)
}

// LotteryStore persists lotteries and tickets.
type LotteryStore interface {
	CreateLottery(ctx context.Context, l lottery.Lottery) (lottery.Lottery, error)
	GetLottery(ctx context.Context, id string) (lottery.Lottery, error)
	UpdateLottery(ctx context.Context, l lottery.Lottery) (lottery.Lottery, error)
	ListLotteries(ctx context.Context, status lottery.Status, limit int) ([]lottery.Lottery, error)
	// ReserveTicket atomically increments the sold counter, failing with
	// ErrSoldOut once the ticket cap is reached, and returns the updated
	// lottery. The guard holds across concurrent buyers and processes.
	ReserveTicket(ctx context.Context, lotteryID string) (lottery.Lottery, error)
	// ReleaseTicket undoes a reservation after a failed purchase. The
	// counter never goes below zero.
	ReleaseTicket(ctx context.Context, lotteryID string) error

	CreateTicket(ctx context.Context, t lottery.Ticket) (lottery.Ticket, error)
	UpdateTicket(ctx context.Context, t lottery.Ticket) (lottery.Ticket, error)
	ListTicketsByLottery(ctx context.Context, lotteryID string) ([]lottery.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID string, limit int) ([]lottery.Ticket, error)
	CountTicketsByUser(ctx context.Context, lotteryID, userID string) (int, error)
}

// MarketStore persists listings, purchases and disputes.
type MarketStore interface {
	CreateListing(ctx context.Context, l market.Listing) (market.Listing, error)
	GetListing(ctx context.Context, id string) (market.Listing, error)
	UpdateListing(ctx context.Context, l market.Listing) (market.Listing, error)
	ListListings(ctx context.Context, status market.ListingStatus, limit int) ([]market.Listing, error)

	CreatePurchase(ctx context.Context, p market.Purchase) (market.Purchase, error)
	GetPurchase(ctx context.Context, id string) (market.Purchase, error)
	UpdatePurchase(ctx context.Context, p market.Purchase) (market.Purchase, error)
	ListPurchasesByBuyer(ctx context.Context, buyerID string, limit int) ([]market.Purchase, error)
	ListPurchasesBySeller(ctx context.Context, sellerID string, limit int) ([]market.Purchase, error)

	CreateDispute(ctx context.Context, d market.Dispute) (market.Dispute, error)
	GetDispute(ctx context.Context, id string) (market.Dispute, error)
	UpdateDispute(ctx context.Context, d market.Dispute) (market.Dispute, error)
	ListDisputes(ctx context.Context, status market.DisputeStatus, limit int) ([]market.Dispute, error)
	// GetOpenDisputeByPurchase returns the purchase's open dispute, or
	// ErrNotFound.
	GetOpenDisputeByPurchase(ctx context.Context, purchaseID string) (market.Dispute, error)
}

// PlanStore persists subscription tier definitions.
type PlanStore interface {
	UpsertPlan(ctx context.Context, p plan.Plan) (plan.Plan, error)
	GetPlan(ctx context.Context, tier string) (plan.Plan, error)
	ListPlans(ctx context.Context) ([]plan.Plan, error)
}

// CourseStore persists courses and enrollments.
type CourseStore interface {
	CreateCourse(ctx context.Context, c course.Course) (course.Course, error)
	GetCourse(ctx context.Context, id string) (course.Course, error)
	UpdateCourse(ctx context.Context, c course.Course) (course.Course, error)
	ListCourses(ctx context.Context, status course.Status, limit int) ([]course.Course, error)

	CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error)
	// GetEnrollment looks up by course and user, returning ErrNotFound when
	// the user never enrolled.
	GetEnrollment(ctx context.Context, courseID, userID string) (course.Enrollment, error)
	UpdateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error)
	ListEnrollmentsByUser(ctx context.Context, userID string, limit int) ([]course.Enrollment, error)
}

// FeedStore persists the social feed.
type FeedStore interface {
	CreatePost(ctx context.Context, p feed.Post) (feed.Post, error)
	GetPost(ctx context.Context, id string) (feed.Post, error)
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, limit int) ([]feed.Post, error)

	CreateComment(ctx context.Context, c feed.Comment) (feed.Comment, error)
	GetComment(ctx context.Context, id string) (feed.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, postID string, limit int) ([]feed.Comment, error)

	// AddLike fails with ErrDuplicate when the user already liked the post.
	AddLike(ctx context.Context, l feed.Like) error
	RemoveLike(ctx context.Context, postID, userID string) error
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}
