// Package postgres implements the storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

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

// Store implements every storage interface backed by PostgreSQL.
type Store struct {
	db *sql.DB
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

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

// mapError folds driver errors into the shared storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

// nullTime maps zero times to NULL.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}

// limitArg maps non-positive limits to LIMIT NULL (no limit).
func limitArg(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}

// --- UserStore --------------------------------------------------------------

const userColumns = `id, email, password_hash, name, role, status, kyc_status, package_tier,
	points_balance, cash_balance, xp, referral_code, referred_by, phone, phone_verified,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Status, &u.KYCStatus,
		&u.PackageTier, &u.PointsBalance, &u.CashBalance, &u.XP, &u.ReferralCode, &u.ReferredBy,
		&u.Phone, &u.PhoneVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.Status, u.KYCStatus, u.PackageTier,
		u.PointsBalance, u.CashBalance, u.XP, u.ReferralCode, u.ReferredBy, u.Phone, u.PhoneVerified,
		u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email))
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE referral_code = $1
	`, code))
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, password_hash = $3, name = $4, role = $5, status = $6, kyc_status = $7,
			package_tier = $8, xp = $9, referral_code = $10, referred_by = $11, phone = $12,
			phone_verified = $13, updated_at = $14
		WHERE id = $1
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.Status, u.KYCStatus, u.PackageTier,
		u.XP, u.ReferralCode, u.ReferredBy, u.Phone, u.PhoneVerified, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2
	`, offset, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *Store) CountReferrals(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE referred_by = $1
	`, userID).Scan(&n)
	return n, err
}

func (s *Store) AdjustPointsBalance(ctx context.Context, userID string, delta int64) (user.User, error) {
	return s.adjustBalance(ctx, userID, "points_balance", delta)
}

func (s *Store) AdjustCashBalance(ctx context.Context, userID string, delta int64) (user.User, error) {
	return s.adjustBalance(ctx, userID, "cash_balance", delta)
}

func (s *Store) adjustBalance(ctx context.Context, userID, column string, delta int64) (user.User, error) {
	// column is one of two constants above, never caller input.
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users
		SET `+column+` = `+column+` + $2, updated_at = $3
		WHERE id = $1 AND `+column+` + $2 >= 0
		RETURNING `+userColumns+`
	`, userID, delta, time.Now().UTC()))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, err
	}
	// No row updated: distinguish a missing user from a short balance.
	if _, getErr := s.GetUser(ctx, userID); getErr != nil {
		return user.User{}, getErr
	}
	return user.User{}, storage.ErrInsufficientBalance
}

// --- TaskStore --------------------------------------------------------------

const taskColumns = `id, title, description, category, reward_points, reward_xp,
	max_submissions, submissions, status, expires_at, created_by, created_at, updated_at`

func scanTask(row rowScanner) (task.Task, error) {
	var (
		t         task.Task
		expiresAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &t.RewardPoints, &t.RewardXP,
		&t.MaxSubmissions, &t.Submissions, &t.Status, &expiresAt, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return task.Task{}, mapError(err)
	}
	t.ExpiresAt = fromNullTime(expiresAt)
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, t.ID, t.Title, t.Description, t.Category, t.RewardPoints, t.RewardXP,
		t.MaxSubmissions, t.Submissions, t.Status, nullTime(t.ExpiresAt), t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return task.Task{}, mapError(err)
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1
	`, id))
}

func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, category = $4, reward_points = $5, reward_xp = $6,
			max_submissions = $7, submissions = $8, status = $9, expires_at = $10, updated_at = $11
		WHERE id = $1
	`, t.ID, t.Title, t.Description, t.Category, t.RewardPoints, t.RewardXP,
		t.MaxSubmissions, t.Submissions, t.Status, nullTime(t.ExpiresAt), t.UpdatedAt)
	if err != nil {
		return task.Task{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return task.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, status task.Status, limit int) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

const submissionColumns = `id, task_id, user_id, proof, proof_file_key, status,
	reviewed_by, reject_reason, submitted_at, reviewed_at`

func scanSubmission(row rowScanner) (task.Submission, error) {
	var (
		sub        task.Submission
		reviewedAt sql.NullTime
	)
	err := row.Scan(&sub.ID, &sub.TaskID, &sub.UserID, &sub.Proof, &sub.ProofFileKey, &sub.Status,
		&sub.ReviewedBy, &sub.RejectReason, &sub.SubmittedAt, &reviewedAt)
	if err != nil {
		return task.Submission{}, mapError(err)
	}
	sub.ReviewedAt = fromNullTime(reviewedAt)
	return sub, nil
}

func (s *Store) CreateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sub.ID, sub.TaskID, sub.UserID, sub.Proof, sub.ProofFileKey, sub.Status,
		sub.ReviewedBy, sub.RejectReason, sub.SubmittedAt, nullTime(sub.ReviewedAt))
	if err != nil {
		return task.Submission{}, mapError(err)
	}
	return sub, nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (task.Submission, error) {
	return scanSubmission(s.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM task_submissions WHERE id = $1
	`, id))
}

func (s *Store) UpdateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_submissions
		SET proof = $2, proof_file_key = $3, status = $4, reviewed_by = $5,
			reject_reason = $6, reviewed_at = $7
		WHERE id = $1
	`, sub.ID, sub.Proof, sub.ProofFileKey, sub.Status, sub.ReviewedBy,
		sub.RejectReason, nullTime(sub.ReviewedAt))
	if err != nil {
		return task.Submission{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return task.Submission{}, storage.ErrNotFound
	}
	return sub, nil
}

func (s *Store) listSubmissions(ctx context.Context, where string, args ...interface{}) ([]task.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+` FROM task_submissions
		WHERE `+where+`
		ORDER BY submitted_at DESC
		LIMIT $2
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []task.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func (s *Store) ListSubmissionsByTask(ctx context.Context, taskID string, limit int) ([]task.Submission, error) {
	return s.listSubmissions(ctx, `task_id = $1`, taskID, limitArg(limit))
}

func (s *Store) ListSubmissionsByUser(ctx context.Context, userID string, limit int) ([]task.Submission, error) {
	return s.listSubmissions(ctx, `user_id = $1`, userID, limitArg(limit))
}

func (s *Store) ListSubmissionsByStatus(ctx context.Context, status task.SubmissionStatus, limit int) ([]task.Submission, error) {
	return s.listSubmissions(ctx, `status = $1`, string(status), limitArg(limit))
}

func (s *Store) GetOpenSubmission(ctx context.Context, taskID, userID string) (task.Submission, error) {
	return scanSubmission(s.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM task_submissions
		WHERE task_id = $1 AND user_id = $2 AND status IN ('pending', 'approved')
		LIMIT 1
	`, taskID, userID))
}

func (s *Store) CountUserSubmissionsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM task_submissions
		WHERE user_id = $1 AND submitted_at >= $2
	`, userID, since).Scan(&n)
	return n, err
}

// --- WalletStore ------------------------------------------------------------

func (s *Store) CreateTransaction(ctx context.Context, tx wallet.Transaction) (wallet.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, balance_after, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tx.ID, tx.UserID, tx.Type, tx.Amount, tx.BalanceAfter, tx.Reference, tx.Description, tx.CreatedAt)
	if err != nil {
		return wallet.Transaction{}, mapError(err)
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]wallet.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, balance_after, reference, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []wallet.Transaction
	for rows.Next() {
		var tx wallet.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.BalanceAfter,
			&tx.Reference, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

const withdrawalColumns = `id, user_id, amount, fee, method, destination, status,
	decided_by, reject_reason, requested_at, decided_at`

func scanWithdrawal(row rowScanner) (wallet.Withdrawal, error) {
	var (
		w         wallet.Withdrawal
		decidedAt sql.NullTime
	)
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Fee, &w.Method, &w.Destination, &w.Status,
		&w.DecidedBy, &w.RejectReason, &w.RequestedAt, &decidedAt)
	if err != nil {
		return wallet.Withdrawal{}, mapError(err)
	}
	w.DecidedAt = fromNullTime(decidedAt)
	return w, nil
}

func (s *Store) CreateWithdrawal(ctx context.Context, w wallet.Withdrawal) (wallet.Withdrawal, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.RequestedAt.IsZero() {
		w.RequestedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO withdrawals (`+withdrawalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, w.ID, w.UserID, w.Amount, w.Fee, w.Method, w.Destination, w.Status,
		w.DecidedBy, w.RejectReason, w.RequestedAt, nullTime(w.DecidedAt))
	if err != nil {
		return wallet.Withdrawal{}, mapError(err)
	}
	return w, nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id string) (wallet.Withdrawal, error) {
	return scanWithdrawal(s.db.QueryRowContext(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1
	`, id))
}

func (s *Store) UpdateWithdrawal(ctx context.Context, w wallet.Withdrawal) (wallet.Withdrawal, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE withdrawals
		SET status = $2, decided_by = $3, reject_reason = $4, decided_at = $5
		WHERE id = $1
	`, w.ID, w.Status, w.DecidedBy, w.RejectReason, nullTime(w.DecidedAt))
	if err != nil {
		return wallet.Withdrawal{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return wallet.Withdrawal{}, storage.ErrNotFound
	}
	return w, nil
}

func (s *Store) ListWithdrawalsByUser(ctx context.Context, userID string, limit int) ([]wallet.Withdrawal, error) {
	return s.listWithdrawals(ctx, `user_id = $1`, userID, limitArg(limit))
}

func (s *Store) ListWithdrawalsByStatus(ctx context.Context, status wallet.WithdrawalStatus, limit int) ([]wallet.Withdrawal, error) {
	return s.listWithdrawals(ctx, `status = $1`, string(status), limitArg(limit))
}

func (s *Store) listWithdrawals(ctx context.Context, where string, args ...interface{}) ([]wallet.Withdrawal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE `+where+`
		ORDER BY requested_at ASC
		LIMIT $2
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []wallet.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// --- ReferralStore ----------------------------------------------------------

func (s *Store) UpsertCommissionLevel(ctx context.Context, lvl referral.CommissionLevel) (referral.CommissionLevel, error) {
	if lvl.ID == "" {
		lvl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lvl.CreatedAt = now
	lvl.UpdatedAt = now

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO referral_levels (id, level, kind, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (level) DO UPDATE
		SET kind = EXCLUDED.kind, value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, lvl.ID, lvl.Level, lvl.Kind, lvl.Value, lvl.CreatedAt, lvl.UpdatedAt)
	if err := row.Scan(&lvl.ID, &lvl.CreatedAt); err != nil {
		return referral.CommissionLevel{}, mapError(err)
	}
	return lvl, nil
}

func (s *Store) ListCommissionLevels(ctx context.Context) ([]referral.CommissionLevel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, kind, value, created_at, updated_at
		FROM referral_levels
		ORDER BY level ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []referral.CommissionLevel
	for rows.Next() {
		var lvl referral.CommissionLevel
		if err := rows.Scan(&lvl.ID, &lvl.Level, &lvl.Kind, &lvl.Value, &lvl.CreatedAt, &lvl.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, lvl)
	}
	return result, rows.Err()
}

func (s *Store) DeleteCommissionLevel(ctx context.Context, level int) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM referral_levels WHERE level = $1
	`, level)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateEarning(ctx context.Context, e referral.Earning) (referral.Earning, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO referral_earnings (id, referrer_id, source_user_id, level, amount, source_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.ReferrerID, e.SourceUserID, e.Level, e.Amount, e.SourceRef, e.CreatedAt)
	if err != nil {
		return referral.Earning{}, mapError(err)
	}
	return e, nil
}

func (s *Store) ListEarningsByReferrer(ctx context.Context, referrerID string, limit int) ([]referral.Earning, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, referrer_id, source_user_id, level, amount, source_ref, created_at
		FROM referral_earnings
		WHERE referrer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, referrerID, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []referral.Earning
	for rows.Next() {
		var e referral.Earning
		if err := rows.Scan(&e.ID, &e.ReferrerID, &e.SourceUserID, &e.Level, &e.Amount, &e.SourceRef, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) ReferralLeaderboard(ctx context.Context, limit int) ([]referral.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name,
			(SELECT COUNT(*) FROM users r WHERE r.referred_by = u.id) AS referrals,
			COALESCE(SUM(e.amount), 0) AS earned
		FROM referral_earnings e
		JOIN users u ON u.id = e.referrer_id
		GROUP BY u.id, u.name
		ORDER BY earned DESC
		LIMIT $1
	`, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []referral.LeaderboardEntry
	for rows.Next() {
		var entry referral.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Name, &entry.Referrals, &entry.Earned); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// --- LotteryStore -----------------------------------------------------------

const lotteryColumns = `id, title, description, ticket_price, max_tickets, max_tickets_per_user,
	tickets_sold, prizes, status, draw_schedule, winners, created_by, drawn_at, created_at, updated_at`

func scanLottery(row rowScanner) (lottery.Lottery, error) {
	var (
		l          lottery.Lottery
		prizesRaw  []byte
		winnersRaw []byte
		drawnAt    sql.NullTime
	)
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.TicketPrice, &l.MaxTickets, &l.MaxTicketsPerUser,
		&l.TicketsSold, &prizesRaw, &l.Status, &l.DrawSchedule, &winnersRaw, &l.CreatedBy,
		&drawnAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return lottery.Lottery{}, mapError(err)
	}
	if len(prizesRaw) > 0 {
		_ = json.Unmarshal(prizesRaw, &l.Prizes)
	}
	if len(winnersRaw) > 0 {
		_ = json.Unmarshal(winnersRaw, &l.Winners)
	}
	l.DrawnAt = fromNullTime(drawnAt)
	return l, nil
}

func (s *Store) CreateLottery(ctx context.Context, l lottery.Lottery) (lottery.Lottery, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	prizesJSON, err := json.Marshal(l.Prizes)
	if err != nil {
		return lottery.Lottery{}, err
	}
	winnersJSON, err := json.Marshal(l.Winners)
	if err != nil {
		return lottery.Lottery{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lotteries (`+lotteryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, l.ID, l.Title, l.Description, l.TicketPrice, l.MaxTickets, l.MaxTicketsPerUser,
		l.TicketsSold, prizesJSON, l.Status, l.DrawSchedule, winnersJSON, l.CreatedBy,
		nullTime(l.DrawnAt), l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return lottery.Lottery{}, mapError(err)
	}
	return l, nil
}

func (s *Store) GetLottery(ctx context.Context, id string) (lottery.Lottery, error) {
	return scanLottery(s.db.QueryRowContext(ctx, `
		SELECT `+lotteryColumns+` FROM lotteries WHERE id = $1
	`, id))
}

func (s *Store) UpdateLottery(ctx context.Context, l lottery.Lottery) (lottery.Lottery, error) {
	l.UpdatedAt = time.Now().UTC()

	prizesJSON, err := json.Marshal(l.Prizes)
	if err != nil {
		return lottery.Lottery{}, err
	}
	winnersJSON, err := json.Marshal(l.Winners)
	if err != nil {
		return lottery.Lottery{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE lotteries
		SET title = $2, description = $3, ticket_price = $4, max_tickets = $5,
			max_tickets_per_user = $6, tickets_sold = $7, prizes = $8, status = $9,
			draw_schedule = $10, winners = $11, drawn_at = $12, updated_at = $13
		WHERE id = $1
	`, l.ID, l.Title, l.Description, l.TicketPrice, l.MaxTickets, l.MaxTicketsPerUser,
		l.TicketsSold, prizesJSON, l.Status, l.DrawSchedule, winnersJSON,
		nullTime(l.DrawnAt), l.UpdatedAt)
	if err != nil {
		return lottery.Lottery{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return lottery.Lottery{}, storage.ErrNotFound
	}
	return l, nil
}

func (s *Store) ReserveTicket(ctx context.Context, lotteryID string) (lottery.Lottery, error) {
	l, err := scanLottery(s.db.QueryRowContext(ctx, `
		UPDATE lotteries
		SET tickets_sold = tickets_sold + 1, updated_at = $2
		WHERE id = $1 AND (max_tickets = 0 OR tickets_sold < max_tickets)
		RETURNING `+lotteryColumns+`
	`, lotteryID, time.Now().UTC()))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return lottery.Lottery{}, err
	}
	// No row updated: distinguish a missing lottery from a reached cap.
	if _, getErr := s.GetLottery(ctx, lotteryID); getErr != nil {
		return lottery.Lottery{}, getErr
	}
	return lottery.Lottery{}, storage.ErrSoldOut
}

func (s *Store) ReleaseTicket(ctx context.Context, lotteryID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE lotteries
		SET tickets_sold = GREATEST(tickets_sold - 1, 0), updated_at = $2
		WHERE id = $1
	`, lotteryID, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListLotteries(ctx context.Context, status lottery.Status, limit int) ([]lottery.Lottery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lotteryColumns+` FROM lotteries
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []lottery.Lottery
	for rows.Next() {
		l, err := scanLottery(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

const ticketColumns = `id, lottery_id, user_id, price, winning, position, purchased_at`

func scanTicket(row rowScanner) (lottery.Ticket, error) {
	var t lottery.Ticket
	err := row.Scan(&t.ID, &t.LotteryID, &t.UserID, &t.Price, &t.Winning, &t.Position, &t.PurchasedAt)
	if err != nil {
		return lottery.Ticket{}, mapError(err)
	}
	return t, nil
}

func (s *Store) CreateTicket(ctx context.Context, t lottery.Ticket) (lottery.Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.PurchasedAt.IsZero() {
		t.PurchasedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lottery_tickets (`+ticketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.LotteryID, t.UserID, t.Price, t.Winning, t.Position, t.PurchasedAt)
	if err != nil {
		return lottery.Ticket{}, mapError(err)
	}
	return t, nil
}

func (s *Store) UpdateTicket(ctx context.Context, t lottery.Ticket) (lottery.Ticket, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE lottery_tickets
		SET winning = $2, position = $3
		WHERE id = $1
	`, t.ID, t.Winning, t.Position)
	if err != nil {
		return lottery.Ticket{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return lottery.Ticket{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTicketsByLottery(ctx context.Context, lotteryID string) ([]lottery.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ticketColumns+` FROM lottery_tickets
		WHERE lottery_id = $1
		ORDER BY purchased_at ASC
	`, lotteryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []lottery.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) ListTicketsByUser(ctx context.Context, userID string, limit int) ([]lottery.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ticketColumns+` FROM lottery_tickets
		WHERE user_id = $1
		ORDER BY purchased_at DESC
		LIMIT $2
	`, userID, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []lottery.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) CountTicketsByUser(ctx context.Context, lotteryID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lottery_tickets
		WHERE lottery_id = $1 AND user_id = $2
	`, lotteryID, userID).Scan(&n)
	return n, err
}

// --- MarketStore ------------------------------------------------------------

const listingColumns = `id, seller_id, title, description, category, price, image_key,
	quantity, status, created_at, updated_at`

func scanListing(row rowScanner) (market.Listing, error) {
	var l market.Listing
	err := row.Scan(&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Category, &l.Price,
		&l.ImageKey, &l.Quantity, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return market.Listing{}, mapError(err)
	}
	return l, nil
}

func (s *Store) CreateListing(ctx context.Context, l market.Listing) (market.Listing, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, l.ID, l.SellerID, l.Title, l.Description, l.Category, l.Price, l.ImageKey,
		l.Quantity, l.Status, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return market.Listing{}, mapError(err)
	}
	return l, nil
}

func (s *Store) GetListing(ctx context.Context, id string) (market.Listing, error) {
	return scanListing(s.db.QueryRowContext(ctx, `
		SELECT `+listingColumns+` FROM market_listings WHERE id = $1
	`, id))
}

func (s *Store) UpdateListing(ctx context.Context, l market.Listing) (market.Listing, error) {
	l.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE market_listings
		SET title = $2, description = $3, category = $4, price = $5, image_key = $6,
			quantity = $7, status = $8, updated_at = $9
		WHERE id = $1
	`, l.ID, l.Title, l.Description, l.Category, l.Price, l.ImageKey, l.Quantity, l.Status, l.UpdatedAt)
	if err != nil {
		return market.Listing{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return market.Listing{}, storage.ErrNotFound
	}
	return l, nil
}

func (s *Store) ListListings(ctx context.Context, status market.ListingStatus, limit int) ([]market.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listingColumns+` FROM market_listings
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []market.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

const purchaseColumns = `id, listing_id, buyer_id, seller_id, price, fee, status,
	created_at, delivered_at, completed_at`

func scanPurchase(row rowScanner) (market.Purchase, error) {
	var (
		p           market.Purchase
		deliveredAt sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.ListingID, &p.BuyerID, &p.SellerID, &p.Price, &p.Fee, &p.Status,
		&p.CreatedAt, &deliveredAt, &completedAt)
	if err != nil {
		return market.Purchase{}, mapError(err)
	}
	p.DeliveredAt = fromNullTime(deliveredAt)
	p.CompletedAt = fromNullTime(completedAt)
	return p, nil
}

func (s *Store) CreatePurchase(ctx context.Context, p market.Purchase) (market.Purchase, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_purchases (`+purchaseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.ListingID, p.BuyerID, p.SellerID, p.Price, p.Fee, p.Status,
		p.CreatedAt, nullTime(p.DeliveredAt), nullTime(p.CompletedAt))
	if err != nil {
		return market.Purchase{}, mapError(err)
	}
	return p, nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (market.Purchase, error) {
	return scanPurchase(s.db.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+` FROM market_purchases WHERE id = $1
	`, id))
}

func (s *Store) UpdatePurchase(ctx context.Context, p market.Purchase) (market.Purchase, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE market_purchases
		SET status = $2, delivered_at = $3, completed_at = $4
		WHERE id = $1
	`, p.ID, p.Status, nullTime(p.DeliveredAt), nullTime(p.CompletedAt))
	if err != nil {
		return market.Purchase{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return market.Purchase{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) listPurchases(ctx context.Context, where string, args ...interface{}) ([]market.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+` FROM market_purchases
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT $2
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []market.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) ListPurchasesByBuyer(ctx context.Context, buyerID string, limit int) ([]market.Purchase, error) {
	return s.listPurchases(ctx, `buyer_id = $1`, buyerID, limitArg(limit))
}

func (s *Store) ListPurchasesBySeller(ctx context.Context, sellerID string, limit int) ([]market.Purchase, error) {
	return s.listPurchases(ctx, `seller_id = $1`, sellerID, limitArg(limit))
}

const disputeColumns = `id, purchase_id, raised_by, reason, status, resolved_by,
	resolution, created_at, resolved_at`

func scanDispute(row rowScanner) (market.Dispute, error) {
	var (
		d          market.Dispute
		resolvedAt sql.NullTime
	)
	err := row.Scan(&d.ID, &d.PurchaseID, &d.RaisedBy, &d.Reason, &d.Status, &d.ResolvedBy,
		&d.Resolution, &d.CreatedAt, &resolvedAt)
	if err != nil {
		return market.Dispute{}, mapError(err)
	}
	d.ResolvedAt = fromNullTime(resolvedAt)
	return d, nil
}

func (s *Store) CreateDispute(ctx context.Context, d market.Dispute) (market.Dispute, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	// The partial unique index on open disputes enforces one per purchase.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_disputes (`+disputeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, d.ID, d.PurchaseID, d.RaisedBy, d.Reason, d.Status, d.ResolvedBy,
		d.Resolution, d.CreatedAt, nullTime(d.ResolvedAt))
	if err != nil {
		return market.Dispute{}, mapError(err)
	}
	return d, nil
}

func (s *Store) GetDispute(ctx context.Context, id string) (market.Dispute, error) {
	return scanDispute(s.db.QueryRowContext(ctx, `
		SELECT `+disputeColumns+` FROM market_disputes WHERE id = $1
	`, id))
}

func (s *Store) UpdateDispute(ctx context.Context, d market.Dispute) (market.Dispute, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE market_disputes
		SET status = $2, resolved_by = $3, resolution = $4, resolved_at = $5
		WHERE id = $1
	`, d.ID, d.Status, d.ResolvedBy, d.Resolution, nullTime(d.ResolvedAt))
	if err != nil {
		return market.Dispute{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return market.Dispute{}, storage.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListDisputes(ctx context.Context, status market.DisputeStatus, limit int) ([]market.Dispute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+disputeColumns+` FROM market_disputes
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at ASC
		LIMIT $2
	`, string(status), limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []market.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) GetOpenDisputeByPurchase(ctx context.Context, purchaseID string) (market.Dispute, error) {
	return scanDispute(s.db.QueryRowContext(ctx, `
		SELECT `+disputeColumns+` FROM market_disputes
		WHERE purchase_id = $1 AND status = 'open'
		LIMIT 1
	`, purchaseID))
}

// --- PlanStore --------------------------------------------------------------

const planColumns = `tier, name, description, price_points, daily_task_limit,
	withdrawal_fee_percent, referral_bonus_percent, created_at, updated_at`

func scanPlan(row rowScanner) (plan.Plan, error) {
	var p plan.Plan
	err := row.Scan(&p.Tier, &p.Name, &p.Description, &p.PricePoints, &p.DailyTaskLimit,
		&p.WithdrawalFeePercent, &p.ReferralBonusPercent, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return plan.Plan{}, mapError(err)
	}
	return p, nil
}

func (s *Store) UpsertPlan(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tier) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
			price_points = EXCLUDED.price_points, daily_task_limit = EXCLUDED.daily_task_limit,
			withdrawal_fee_percent = EXCLUDED.withdrawal_fee_percent,
			referral_bonus_percent = EXCLUDED.referral_bonus_percent,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`, p.Tier, p.Name, p.Description, p.PricePoints, p.DailyTaskLimit,
		p.WithdrawalFeePercent, p.ReferralBonusPercent, p.CreatedAt, p.UpdatedAt)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return plan.Plan{}, mapError(err)
	}
	return p, nil
}

func (s *Store) GetPlan(ctx context.Context, tier string) (plan.Plan, error) {
	return scanPlan(s.db.QueryRowContext(ctx, `
		SELECT `+planColumns+` FROM plans WHERE tier = $1
	`, tier))
}

func (s *Store) ListPlans(ctx context.Context) ([]plan.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+planColumns+` FROM plans ORDER BY price_points ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// --- CourseStore ------------------------------------------------------------

const courseColumns = `id, title, description, lessons, enroll_cost, reward_points,
	reward_xp, status, created_by, created_at, updated_at`

func scanCourse(row rowScanner) (course.Course, error) {
	var c course.Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Lessons, &c.EnrollCost, &c.RewardPoints,
		&c.RewardXP, &c.Status, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return course.Course{}, mapError(err)
	}
	return c, nil
}

func (s *Store) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.Title, c.Description, c.Lessons, c.EnrollCost, c.RewardPoints,
		c.RewardXP, c.Status, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return course.Course{}, mapError(err)
	}
	return c, nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (course.Course, error) {
	return scanCourse(s.db.QueryRowContext(ctx, `
		SELECT `+courseColumns+` FROM courses WHERE id = $1
	`, id))
}

func (s *Store) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	c.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE courses
		SET title = $2, description = $3, lessons = $4, enroll_cost = $5,
			reward_points = $6, reward_xp = $7, status = $8, updated_at = $9
		WHERE id = $1
	`, c.ID, c.Title, c.Description, c.Lessons, c.EnrollCost, c.RewardPoints,
		c.RewardXP, c.Status, c.UpdatedAt)
	if err != nil {
		return course.Course{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return course.Course{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCourses(ctx context.Context, status course.Status, limit int) ([]course.Course, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+courseColumns+` FROM courses
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []course.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

const enrollmentColumns = `id, course_id, user_id, lessons_completed, completed, enrolled_at, completed_at`

func scanEnrollment(row rowScanner) (course.Enrollment, error) {
	var (
		e           course.Enrollment
		completedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.CourseID, &e.UserID, &e.LessonsCompleted, &e.Completed,
		&e.EnrolledAt, &completedAt)
	if err != nil {
		return course.Enrollment{}, mapError(err)
	}
	e.CompletedAt = fromNullTime(completedAt)
	return e, nil
}

func (s *Store) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO course_enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.CourseID, e.UserID, e.LessonsCompleted, e.Completed, e.EnrolledAt, nullTime(e.CompletedAt))
	if err != nil {
		return course.Enrollment{}, mapError(err)
	}
	return e, nil
}

func (s *Store) GetEnrollment(ctx context.Context, courseID, userID string) (course.Enrollment, error) {
	return scanEnrollment(s.db.QueryRowContext(ctx, `
		SELECT `+enrollmentColumns+` FROM course_enrollments
		WHERE course_id = $1 AND user_id = $2
	`, courseID, userID))
}

func (s *Store) UpdateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE course_enrollments
		SET lessons_completed = $2, completed = $3, completed_at = $4
		WHERE id = $1
	`, e.ID, e.LessonsCompleted, e.Completed, nullTime(e.CompletedAt))
	if err != nil {
		return course.Enrollment{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return course.Enrollment{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEnrollmentsByUser(ctx context.Context, userID string, limit int) ([]course.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+enrollmentColumns+` FROM course_enrollments
		WHERE user_id = $1
		ORDER BY enrolled_at DESC
		LIMIT $2
	`, userID, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []course.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// --- FeedStore --------------------------------------------------------------

func scanPost(row rowScanner) (feed.Post, error) {
	var p feed.Post
	err := row.Scan(&p.ID, &p.UserID, &p.Body, &p.ImageKey, &p.Likes, &p.Comments, &p.CreatedAt)
	if err != nil {
		return feed.Post{}, mapError(err)
	}
	return p, nil
}

func (s *Store) CreatePost(ctx context.Context, p feed.Post) (feed.Post, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_posts (id, user_id, body, image_key, likes, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.UserID, p.Body, p.ImageKey, p.Likes, p.Comments, p.CreatedAt)
	if err != nil {
		return feed.Post{}, mapError(err)
	}
	return p, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (feed.Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, body, image_key, likes, comments, created_at
		FROM feed_posts WHERE id = $1
	`, id))
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM feed_posts WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, limit int) ([]feed.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, body, image_key, likes, comments, created_at
		FROM feed_posts
		ORDER BY created_at DESC
		LIMIT $1
	`, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []feed.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) CreateComment(ctx context.Context, c feed.Comment) (feed.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_comments (id, post_id, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.PostID, c.UserID, c.Body, c.CreatedAt)
	if err != nil {
		return feed.Comment{}, mapError(err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE feed_posts SET comments = comments + 1 WHERE id = $1
	`, c.PostID)
	if err != nil {
		return feed.Comment{}, mapError(err)
	}
	return c, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (feed.Comment, error) {
	var c feed.Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, user_id, body, created_at
		FROM feed_comments WHERE id = $1
	`, id).Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt)
	if err != nil {
		return feed.Comment{}, mapError(err)
	}
	return c, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	var postID string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM feed_comments WHERE id = $1 RETURNING post_id
	`, id).Scan(&postID)
	if err != nil {
		return mapError(err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE feed_posts SET comments = comments - 1 WHERE id = $1 AND comments > 0
	`, postID)
	return mapError(err)
}

func (s *Store) ListComments(ctx context.Context, postID string, limit int) ([]feed.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, user_id, body, created_at
		FROM feed_comments
		WHERE post_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, postID, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []feed.Comment
	for rows.Next() {
		var c feed.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) AddLike(ctx context.Context, l feed.Like) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_likes (post_id, user_id, created_at)
		VALUES ($1, $2, $3)
	`, l.PostID, l.UserID, l.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE feed_posts SET likes = likes + 1 WHERE id = $1
	`, l.PostID)
	return mapError(err)
}

func (s *Store) RemoveLike(ctx context.Context, postID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM feed_likes WHERE post_id = $1 AND user_id = $2
	`, postID, userID)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE feed_posts SET likes = likes - 1 WHERE id = $1 AND likes > 0
	`, postID)
	return mapError(err)
}

// --- NotificationStore ------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, category, title, body, reference, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, n.Category, n.Title, n.Body, n.Reference, n.Read, n.CreatedAt)
	if err != nil {
		return notification.Notification{}, mapError(err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category, title, body, reference, read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Category, &n.Title, &n.Body,
			&n.Reference, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE
	`, userID).Scan(&n)
	return n, err
}

func (s *Store) MarkRead(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE
	`, userID)
	return mapError(err)
}
