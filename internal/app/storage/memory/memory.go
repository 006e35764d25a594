// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

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
	"github.com/earnhub/platform/internal/app/storage"
)

// Store is an in-memory implementation of every storage interface.
type Store struct {
	mu sync.RWMutex

	users         map[string]user.User
	usersByEmail  map[string]string
	usersByCode   map[string]string
	tasks         map[string]task.Task
	submissions   map[string]task.Submission
	transactions  map[string][]wallet.Transaction
	withdrawals   map[string]wallet.Withdrawal
	commissions   map[int]referral.CommissionLevel
	earnings      map[string]referral.Earning
	lotteries     map[string]lottery.Lottery
	tickets       map[string]lottery.Ticket
	listings      map[string]market.Listing
	purchases     map[string]market.Purchase
	disputes      map[string]market.Dispute
	plans         map[string]plan.Plan
	courses       map[string]course.Course
	enrollments   map[string]course.Enrollment
	posts         map[string]feed.Post
	comments      map[string]feed.Comment
	likes         map[string]feed.Like
	notifications map[string]notification.Notification
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.WalletStore = (*Store)(nil)
var _ storage.ReferralStore = (*Store)(nil)
var _ storage.LotteryStore = (*Store)(nil)
var _ storage.MarketStore = (*Store)(nil)
var _ storage.PlanStore = (*Store)(nil)
var _ storage.CourseStore = (*Store)(nil)
var _ storage.FeedStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]user.User),
		usersByEmail:  make(map[string]string),
		usersByCode:   make(map[string]string),
		tasks:         make(map[string]task.Task),
		submissions:   make(map[string]task.Submission),
		transactions:  make(map[string][]wallet.Transaction),
		withdrawals:   make(map[string]wallet.Withdrawal),
		commissions:   make(map[int]referral.CommissionLevel),
		earnings:      make(map[string]referral.Earning),
		lotteries:     make(map[string]lottery.Lottery),
		tickets:       make(map[string]lottery.Ticket),
		listings:      make(map[string]market.Listing),
		purchases:     make(map[string]market.Purchase),
		disputes:      make(map[string]market.Dispute),
		plans:         make(map[string]plan.Plan),
		courses:       make(map[string]course.Course),
		enrollments:   make(map[string]course.Enrollment),
		posts:         make(map[string]feed.Post),
		comments:      make(map[string]feed.Comment),
		likes:         make(map[string]feed.Like),
		notifications: make(map[string]notification.Notification),
	}
}

func newID() string { return uuid.NewString() }

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, exists := s.usersByEmail[email]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", email, storage.ErrDuplicate)
	}
	if u.ID == "" {
		u.ID = newID()
	}
	now := time.Now().UTC()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	if u.ReferralCode != "" {
		s.usersByCode[u.ReferralCode] = u.ID
	}
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) GetUserByReferralCode(_ context.Context, code string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByCode[code]
	if !ok {
		return user.User{}, fmt.Errorf("referral code %s: %w", code, storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	if u.Email != original.Email {
		delete(s.usersByEmail, original.Email)
		s.usersByEmail[u.Email] = u.ID
	}
	if u.ReferralCode != original.ReferralCode {
		delete(s.usersByCode, original.ReferralCode)
		if u.ReferralCode != "" {
			s.usersByCode[u.ReferralCode] = u.ID
		}
	}

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) ListUsers(_ context.Context, offset, limit int) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if offset >= len(all) {
		return []user.User{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) CountUsers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *Store) CountReferrals(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, u := range s.users {
		if u.ReferredBy == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) AdjustPointsBalance(_ context.Context, userID string, delta int64) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if u.PointsBalance+delta < 0 {
		return user.User{}, storage.ErrInsufficientBalance
	}
	u.PointsBalance += delta
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return u, nil
}

func (s *Store) AdjustCashBalance(_ context.Context, userID string, delta int64) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if u.CashBalance+delta < 0 {
		return user.User{}, storage.ErrInsufficientBalance
	}
	u.CashBalance += delta
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return u, nil
}

// TaskStore implementation ----------------------------------------------------

func (s *Store) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) GetTask(_ context.Context, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	return t, nil
}

func (s *Store) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tasks[t.ID]
	if !ok {
		return task.Task{}, fmt.Errorf("task %s: %w", t.ID, storage.ErrNotFound)
	}
	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) ListTasks(_ context.Context, status task.Status, limit int) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if status != "" && t.Status != status {
			continue
		}
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) CreateSubmission(_ context.Context, sub task.Submission) (task.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = newID()
	}
	sub.SubmittedAt = time.Now().UTC()
	s.submissions[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetSubmission(_ context.Context, id string) (task.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return task.Submission{}, fmt.Errorf("submission %s: %w", id, storage.ErrNotFound)
	}
	return sub, nil
}

func (s *Store) UpdateSubmission(_ context.Context, sub task.Submission) (task.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.submissions[sub.ID]; !ok {
		return task.Submission{}, fmt.Errorf("submission %s: %w", sub.ID, storage.ErrNotFound)
	}
	s.submissions[sub.ID] = sub
	return sub, nil
}

func (s *Store) ListSubmissionsByTask(_ context.Context, taskID string, limit int) ([]task.Submission, error) {
	return s.listSubmissions(func(sub task.Submission) bool { return sub.TaskID == taskID }, limit)
}

func (s *Store) ListSubmissionsByUser(_ context.Context, userID string, limit int) ([]task.Submission, error) {
	return s.listSubmissions(func(sub task.Submission) bool { return sub.UserID == userID }, limit)
}

func (s *Store) ListSubmissionsByStatus(_ context.Context, status task.SubmissionStatus, limit int) ([]task.Submission, error) {
	return s.listSubmissions(func(sub task.Submission) bool { return sub.Status == status }, limit)
}

func (s *Store) listSubmissions(match func(task.Submission) bool, limit int) ([]task.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]task.Submission, 0)
	for _, sub := range s.submissions {
		if match(sub) {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubmittedAt.After(result[j].SubmittedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) GetOpenSubmission(_ context.Context, taskID, userID string) (task.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.submissions {
		if sub.TaskID == taskID && sub.UserID == userID && sub.Status != task.SubmissionRejected {
			return sub, nil
		}
	}
	return task.Submission{}, fmt.Errorf("submission for task %s: %w", taskID, storage.ErrNotFound)
}

func (s *Store) CountUserSubmissionsSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sub := range s.submissions {
		if sub.UserID == userID && !sub.SubmittedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// WalletStore implementation --------------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, tx wallet.Transaction) (wallet.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = newID()
	}
	tx.CreatedAt = time.Now().UTC()
	s.transactions[tx.UserID] = append(s.transactions[tx.UserID], tx)
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]wallet.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := append([]wallet.Transaction(nil), s.transactions[userID]...)
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return capSlice(txs, limit), nil
}

func (s *Store) CreateWithdrawal(_ context.Context, w wallet.Withdrawal) (wallet.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = newID()
	}
	w.RequestedAt = time.Now().UTC()
	s.withdrawals[w.ID] = w
	return w, nil
}

func (s *Store) GetWithdrawal(_ context.Context, id string) (wallet.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return wallet.Withdrawal{}, fmt.Errorf("withdrawal %s: %w", id, storage.ErrNotFound)
	}
	return w, nil
}

func (s *Store) UpdateWithdrawal(_ context.Context, w wallet.Withdrawal) (wallet.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.withdrawals[w.ID]; !ok {
		return wallet.Withdrawal{}, fmt.Errorf("withdrawal %s: %w", w.ID, storage.ErrNotFound)
	}
	s.withdrawals[w.ID] = w
	return w, nil
}

func (s *Store) ListWithdrawalsByUser(_ context.Context, userID string, limit int) ([]wallet.Withdrawal, error) {
	return s.listWithdrawals(func(w wallet.Withdrawal) bool { return w.UserID == userID }, limit)
}

func (s *Store) ListWithdrawalsByStatus(_ context.Context, status wallet.WithdrawalStatus, limit int) ([]wallet.Withdrawal, error) {
	return s.listWithdrawals(func(w wallet.Withdrawal) bool { return w.Status == status }, limit)
}

func (s *Store) listWithdrawals(match func(wallet.Withdrawal) bool, limit int) ([]wallet.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]wallet.Withdrawal, 0)
	for _, w := range s.withdrawals {
		if match(w) {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestedAt.After(result[j].RequestedAt) })
	return capSlice(result, limit), nil
}

// ReferralStore implementation ------------------------------------------------

func (s *Store) UpsertCommissionLevel(_ context.Context, lvl referral.CommissionLevel) (referral.CommissionLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.commissions[lvl.Level]; ok {
		lvl.ID = existing.ID
		lvl.CreatedAt = existing.CreatedAt
	} else {
		if lvl.ID == "" {
			lvl.ID = newID()
		}
		lvl.CreatedAt = now
	}
	lvl.UpdatedAt = now
	s.commissions[lvl.Level] = lvl
	return lvl, nil
}

func (s *Store) ListCommissionLevels(_ context.Context) ([]referral.CommissionLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]referral.CommissionLevel, 0, len(s.commissions))
	for _, lvl := range s.commissions {
		result = append(result, lvl)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Level < result[j].Level })
	return result, nil
}

func (s *Store) DeleteCommissionLevel(_ context.Context, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.commissions[level]; !ok {
		return fmt.Errorf("commission level %d: %w", level, storage.ErrNotFound)
	}
	delete(s.commissions, level)
	return nil
}

func (s *Store) CreateEarning(_ context.Context, e referral.Earning) (referral.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = newID()
	}
	e.CreatedAt = time.Now().UTC()
	s.earnings[e.ID] = e
	return e, nil
}

func (s *Store) ListEarningsByReferrer(_ context.Context, referrerID string, limit int) ([]referral.Earning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]referral.Earning, 0)
	for _, e := range s.earnings {
		if e.ReferrerID == referrerID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) ReferralLeaderboard(_ context.Context, limit int) ([]referral.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]int64)
	for _, e := range s.earnings {
		totals[e.ReferrerID] += e.Amount
	}

	entries := make([]referral.LeaderboardEntry, 0, len(totals))
	for userID, earned := range totals {
		entry := referral.LeaderboardEntry{UserID: userID, Earned: earned}
		if u, ok := s.users[userID]; ok {
			entry.Name = u.Name
		}
		for _, u := range s.users {
			if u.ReferredBy == userID {
				entry.Referrals++
			}
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Earned > entries[j].Earned })
	return capSlice(entries, limit), nil
}

// LotteryStore implementation -------------------------------------------------

func (s *Store) CreateLottery(_ context.Context, l lottery.Lottery) (lottery.Lottery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = newID()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.Prizes = append([]lottery.Prize(nil), l.Prizes...)

	s.lotteries[l.ID] = l
	return l, nil
}

func (s *Store) GetLottery(_ context.Context, id string) (lottery.Lottery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lotteries[id]
	if !ok {
		return lottery.Lottery{}, fmt.Errorf("lottery %s: %w", id, storage.ErrNotFound)
	}
	return l, nil
}

func (s *Store) UpdateLottery(_ context.Context, l lottery.Lottery) (lottery.Lottery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.lotteries[l.ID]
	if !ok {
		return lottery.Lottery{}, fmt.Errorf("lottery %s: %w", l.ID, storage.ErrNotFound)
	}
	l.CreatedAt = original.CreatedAt
	l.UpdatedAt = time.Now().UTC()
	l.Prizes = append([]lottery.Prize(nil), l.Prizes...)
	l.Winners = append([]lottery.Winner(nil), l.Winners...)
	s.lotteries[l.ID] = l
	return l, nil
}

func (s *Store) ReserveTicket(_ context.Context, lotteryID string) (lottery.Lottery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lotteries[lotteryID]
	if !ok {
		return lottery.Lottery{}, fmt.Errorf("lottery %s: %w", lotteryID, storage.ErrNotFound)
	}
	if l.MaxTickets > 0 && l.TicketsSold >= l.MaxTickets {
		return lottery.Lottery{}, fmt.Errorf("lottery %s: %w", lotteryID, storage.ErrSoldOut)
	}
	l.TicketsSold++
	l.UpdatedAt = time.Now().UTC()
	s.lotteries[lotteryID] = l
	return l, nil
}

func (s *Store) ReleaseTicket(_ context.Context, lotteryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lotteries[lotteryID]
	if !ok {
		return fmt.Errorf("lottery %s: %w", lotteryID, storage.ErrNotFound)
	}
	if l.TicketsSold > 0 {
		l.TicketsSold--
	}
	l.UpdatedAt = time.Now().UTC()
	s.lotteries[lotteryID] = l
	return nil
}

func (s *Store) ListLotteries(_ context.Context, status lottery.Status, limit int) ([]lottery.Lottery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]lottery.Lottery, 0, len(s.lotteries))
	for _, l := range s.lotteries {
		if status != "" && l.Status != status {
			continue
		}
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) CreateTicket(_ context.Context, t lottery.Ticket) (lottery.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = newID()
	}
	t.PurchasedAt = time.Now().UTC()
	s.tickets[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTicket(_ context.Context, t lottery.Ticket) (lottery.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[t.ID]; !ok {
		return lottery.Ticket{}, fmt.Errorf("ticket %s: %w", t.ID, storage.ErrNotFound)
	}
	s.tickets[t.ID] = t
	return t, nil
}

func (s *Store) ListTicketsByLottery(_ context.Context, lotteryID string) ([]lottery.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]lottery.Ticket, 0)
	for _, t := range s.tickets {
		if t.LotteryID == lotteryID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PurchasedAt.Before(result[j].PurchasedAt) })
	return result, nil
}

func (s *Store) ListTicketsByUser(_ context.Context, userID string, limit int) ([]lottery.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]lottery.Ticket, 0)
	for _, t := range s.tickets {
		if t.UserID == userID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PurchasedAt.After(result[j].PurchasedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) CountTicketsByUser(_ context.Context, lotteryID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.tickets {
		if t.LotteryID == lotteryID && t.UserID == userID {
			count++
		}
	}
	return count, nil
}

// MarketStore implementation --------------------------------------------------

func (s *Store) CreateListing(_ context.Context, l market.Listing) (market.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = newID()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	s.listings[l.ID] = l
	return l, nil
}

func (s *Store) GetListing(_ context.Context, id string) (market.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return market.Listing{}, fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	return l, nil
}

func (s *Store) UpdateListing(_ context.Context, l market.Listing) (market.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.listings[l.ID]
	if !ok {
		return market.Listing{}, fmt.Errorf("listing %s: %w", l.ID, storage.ErrNotFound)
	}
	l.CreatedAt = original.CreatedAt
	l.UpdatedAt = time.Now().UTC()
	s.listings[l.ID] = l
	return l, nil
}

func (s *Store) ListListings(_ context.Context, status market.ListingStatus, limit int) ([]market.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]market.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if status != "" && l.Status != status {
			continue
		}
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) CreatePurchase(_ context.Context, p market.Purchase) (market.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = time.Now().UTC()
	s.purchases[p.ID] = p
	return p, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (market.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.purchases[id]
	if !ok {
		return market.Purchase{}, fmt.Errorf("purchase %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) UpdatePurchase(_ context.Context, p market.Purchase) (market.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.purchases[p.ID]; !ok {
		return market.Purchase{}, fmt.Errorf("purchase %s: %w", p.ID, storage.ErrNotFound)
	}
	s.purchases[p.ID] = p
	return p, nil
}

func (s *Store) ListPurchasesByBuyer(_ context.Context, buyerID string, limit int) ([]market.Purchase, error) {
	return s.listPurchases(func(p market.Purchase) bool { return p.BuyerID == buyerID }, limit)
}

func (s *Store) ListPurchasesBySeller(_ context.Context, sellerID string, limit int) ([]market.Purchase, error) {
	return s.listPurchases(func(p market.Purchase) bool { return p.SellerID == sellerID }, limit)
}

func (s *Store) listPurchases(match func(market.Purchase) bool, limit int) ([]market.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]market.Purchase, 0)
	for _, p := range s.purchases {
		if match(p) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) CreateDispute(_ context.Context, d market.Dispute) (market.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.disputes {
		if existing.PurchaseID == d.PurchaseID && existing.Status == market.DisputeOpen {
			return market.Dispute{}, fmt.Errorf("open dispute for purchase %s: %w", d.PurchaseID, storage.ErrDuplicate)
		}
	}
	if d.ID == "" {
		d.ID = newID()
	}
	d.CreatedAt = time.Now().UTC()
	s.disputes[d.ID] = d
	return d, nil
}

func (s *Store) GetDispute(_ context.Context, id string) (market.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.disputes[id]
	if !ok {
		return market.Dispute{}, fmt.Errorf("dispute %s: %w", id, storage.ErrNotFound)
	}
	return d, nil
}

func (s *Store) UpdateDispute(_ context.Context, d market.Dispute) (market.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.disputes[d.ID]; !ok {
		return market.Dispute{}, fmt.Errorf("dispute %s: %w", d.ID, storage.ErrNotFound)
	}
	s.disputes[d.ID] = d
	return d, nil
}

func (s *Store) ListDisputes(_ context.Context, status market.DisputeStatus, limit int) ([]market.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]market.Dispute, 0)
	for _, d := range s.disputes {
		if status != "" && d.Status != status {
			continue
		}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) GetOpenDisputeByPurchase(_ context.Context, purchaseID string) (market.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.disputes {
		if d.PurchaseID == purchaseID && d.Status == market.DisputeOpen {
			return d, nil
		}
	}
	return market.Dispute{}, fmt.Errorf("dispute for purchase %s: %w", purchaseID, storage.ErrNotFound)
}

// PlanStore implementation ----------------------------------------------------

func (s *Store) UpsertPlan(_ context.Context, p plan.Plan) (plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.plans[p.Tier]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.plans[p.Tier] = p
	return p, nil
}

func (s *Store) GetPlan(_ context.Context, tier string) (plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[tier]
	if !ok {
		return plan.Plan{}, fmt.Errorf("plan %s: %w", tier, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPlans(_ context.Context) ([]plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]plan.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return plan.Rank(result[i].Tier) < plan.Rank(result[j].Tier) })
	return result, nil
}

// CourseStore implementation --------------------------------------------------

func (s *Store) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.courses[c.ID] = c
	return c, nil
}

func (s *Store) GetCourse(_ context.Context, id string) (course.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return course.Course{}, fmt.Errorf("course %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.courses[c.ID]
	if !ok {
		return course.Course{}, fmt.Errorf("course %s: %w", c.ID, storage.ErrNotFound)
	}
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.courses[c.ID] = c
	return c, nil
}

func (s *Store) ListCourses(_ context.Context, status course.Status, limit int) ([]course.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]course.Course, 0, len(s.courses))
	for _, c := range s.courses {
		if status != "" && c.Status != status {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) CreateEnrollment(_ context.Context, e course.Enrollment) (course.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.enrollments {
		if existing.CourseID == e.CourseID && existing.UserID == e.UserID {
			return course.Enrollment{}, fmt.Errorf("enrollment: %w", storage.ErrDuplicate)
		}
	}
	if e.ID == "" {
		e.ID = newID()
	}
	e.EnrolledAt = time.Now().UTC()
	s.enrollments[e.ID] = e
	return e, nil
}

func (s *Store) GetEnrollment(_ context.Context, courseID, userID string) (course.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.enrollments {
		if e.CourseID == courseID && e.UserID == userID {
			return e, nil
		}
	}
	return course.Enrollment{}, fmt.Errorf("enrollment for course %s: %w", courseID, storage.ErrNotFound)
}

func (s *Store) UpdateEnrollment(_ context.Context, e course.Enrollment) (course.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.enrollments[e.ID]; !ok {
		return course.Enrollment{}, fmt.Errorf("enrollment %s: %w", e.ID, storage.ErrNotFound)
	}
	s.enrollments[e.ID] = e
	return e, nil
}

func (s *Store) ListEnrollmentsByUser(_ context.Context, userID string, limit int) ([]course.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]course.Enrollment, 0)
	for _, e := range s.enrollments {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EnrolledAt.After(result[j].EnrolledAt) })
	return capSlice(result, limit), nil
}

// FeedStore implementation ----------------------------------------------------

func (s *Store) CreatePost(_ context.Context, p feed.Post) (feed.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = time.Now().UTC()
	s.posts[p.ID] = p
	return p, nil
}

func (s *Store) GetPost(_ context.Context, id string) (feed.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return feed.Post{}, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	delete(s.posts, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	for key, l := range s.likes {
		if l.PostID == id {
			delete(s.likes, key)
		}
	}
	return nil
}

func (s *Store) ListPosts(_ context.Context, limit int) ([]feed.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]feed.Post, 0, len(s.posts))
	for _, p := range s.posts {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) CreateComment(_ context.Context, c feed.Comment) (feed.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[c.PostID]
	if !ok {
		return feed.Comment{}, fmt.Errorf("post %s: %w", c.PostID, storage.ErrNotFound)
	}
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = time.Now().UTC()
	s.comments[c.ID] = c
	post.Comments++
	s.posts[post.ID] = post
	return c, nil
}

func (s *Store) GetComment(_ context.Context, id string) (feed.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return feed.Comment{}, fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	delete(s.comments, id)
	if post, ok := s.posts[c.PostID]; ok && post.Comments > 0 {
		post.Comments--
		s.posts[post.ID] = post
	}
	return nil
}

func (s *Store) ListComments(_ context.Context, postID string, limit int) ([]feed.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]feed.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func likeKey(postID, userID string) string { return postID + "/" + userID }

func (s *Store) AddLike(_ context.Context, l feed.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[l.PostID]
	if !ok {
		return fmt.Errorf("post %s: %w", l.PostID, storage.ErrNotFound)
	}
	key := likeKey(l.PostID, l.UserID)
	if _, exists := s.likes[key]; exists {
		return fmt.Errorf("like: %w", storage.ErrDuplicate)
	}
	l.CreatedAt = time.Now().UTC()
	s.likes[key] = l
	post.Likes++
	s.posts[post.ID] = post
	return nil
}

func (s *Store) RemoveLike(_ context.Context, postID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := likeKey(postID, userID)
	if _, ok := s.likes[key]; !ok {
		return fmt.Errorf("like: %w", storage.ErrNotFound)
	}
	delete(s.likes, key)
	if post, ok := s.posts[postID]; ok && post.Likes > 0 {
		post.Likes--
		s.posts[postID] = post
	}
	return nil
}

// NotificationStore implementation --------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = newID()
	}
	n.CreatedAt = time.Now().UTC()
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notification.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capSlice(result, limit), nil
}

func (s *Store) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %s: %w", id, storage.ErrNotFound)
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
		}
	}
	return nil
}

func capSlice[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
