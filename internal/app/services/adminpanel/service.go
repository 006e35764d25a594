// Package adminpanel aggregates platform statistics for operators.
package adminpanel

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/earnhub/platform/internal/app/domain/lottery"
	"github.com/earnhub/platform/internal/app/domain/market"
	"github.com/earnhub/platform/internal/app/domain/task"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/pkg/admin"
	"github.com/earnhub/platform/pkg/logger"
)

// Service builds dashboard stats and host status. With a SQL handle the
// aggregates come from one query; otherwise they are counted through the
// stores.
type Service struct {
	db      *sqlx.DB
	users   storage.UserStore
	tasks   storage.TaskStore
	wallet  storage.WalletStore
	lottery storage.LotteryStore
	market  storage.MarketStore
	log     *logger.Logger
}

// New creates the panel service backed by stores.
func New(users storage.UserStore, tasks storage.TaskStore, walletStore storage.WalletStore,
	lotteryStore storage.LotteryStore, marketStore storage.MarketStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("adminpanel")
	}
	return &Service{
		users:   users,
		tasks:   tasks,
		wallet:  walletStore,
		lottery: lotteryStore,
		market:  marketStore,
		log:     log,
	}
}

// WithDB enables SQL-side aggregation.
func (s *Service) WithDB(db *sqlx.DB) *Service {
	s.db = db
	return s
}

const statsQuery = `
SELECT
  (SELECT COUNT(*) FROM users)                                            AS total_users,
  (SELECT COUNT(*) FROM users WHERE status = 'active')                    AS active_users,
  (SELECT COUNT(*) FROM users WHERE status = 'suspended')                 AS suspended_users,
  (SELECT COUNT(*) FROM users WHERE kyc_status = 'pending')               AS pending_kyc,
  (SELECT COUNT(*) FROM tasks WHERE status = 'active')                    AS active_tasks,
  (SELECT COUNT(*) FROM task_submissions WHERE status = 'pending')        AS pending_submissions,
  (SELECT COUNT(*) FROM task_submissions WHERE status = 'approved')       AS approved_submissions,
  (SELECT COUNT(*) FROM withdrawals WHERE status = 'pending')             AS pending_withdrawals,
  (SELECT COALESCE(SUM(amount), 0) FROM withdrawals WHERE status = 'paid') AS withdrawal_volume,
  (SELECT COALESCE(SUM(points_balance), 0) FROM users)                    AS points_in_circulation,
  (SELECT COUNT(*) FROM lotteries WHERE status = 'active')                AS active_lotteries,
  (SELECT COUNT(*) FROM lottery_tickets)                                  AS tickets_sold,
  (SELECT COUNT(*) FROM market_listings WHERE status = 'active')          AS active_listings,
  (SELECT COUNT(*) FROM market_disputes WHERE status = 'open')            AS open_disputes`

// Stats returns the dashboard aggregates.
func (s *Service) Stats(ctx context.Context) (admin.DashboardStats, error) {
	if s.db != nil {
		var stats admin.DashboardStats
		if err := s.db.GetContext(ctx, &stats, statsQuery); err != nil {
			return admin.DashboardStats{}, fmt.Errorf("query stats: %w", err)
		}
		stats.GeneratedAt = time.Now().UTC()
		return stats, nil
	}
	return s.statsFromStores(ctx)
}

func (s *Service) statsFromStores(ctx context.Context) (admin.DashboardStats, error) {
	stats := admin.DashboardStats{GeneratedAt: time.Now().UTC()}

	allUsers, err := s.users.ListUsers(ctx, 0, 0)
	if err != nil {
		return admin.DashboardStats{}, fmt.Errorf("list users: %w", err)
	}
	stats.TotalUsers = len(allUsers)
	for _, u := range allUsers {
		switch u.Status {
		case user.StatusActive:
			stats.ActiveUsers++
		case user.StatusSuspended:
			stats.SuspendedUsers++
		}
		if u.KYCStatus == user.KYCPending {
			stats.PendingKYC++
		}
		stats.PointsInCirculation += u.PointsBalance
	}

	activeTasks, err := s.tasks.ListTasks(ctx, task.StatusActive, 0)
	if err != nil {
		return admin.DashboardStats{}, fmt.Errorf("list tasks: %w", err)
	}
	stats.ActiveTasks = len(activeTasks)

	pending, err := s.tasks.ListSubmissionsByStatus(ctx, task.SubmissionPending, 0)
	if err != nil {
		return admin.DashboardStats{}, fmt.Errorf("list submissions: %w", err)
	}
	stats.PendingSubmissions = len(pending)
	approved, err := s.tasks.ListSubmissionsByStatus(ctx, task.SubmissionApproved, 0)
	if err != nil {
		return admin.DashboardStats{}, fmt.Errorf("list submissions: %w", err)
	}
	stats.ApprovedSubmissions = len(approved)

	pendingW, err := s.wallet.ListWithdrawalsByStatus(ctx, wallet.WithdrawalPending, 0)
	if err != nil {
		return admin.DashboardStats{}, fmt.Errorf("list withdrawals: %w", err)
	}
	stats.PendingWithdrawals = len(pendingW)
	paid, err := s.wallet.ListWithdrawalsByStatus(ctx, wallet.WithdrawalPaid, 0)
	if err != nil {
		return admin.DashboardStats{}, fmt.Errorf("list withdrawals: %w", err)
	}
	for _, w := range paid {
		stats.WithdrawalVolume += w.Amount
	}

	// Count tickets across every lottery, matching the SQL aggregate.
	allL, err := s.lottery.ListLotteries(ctx, "", 0)
	if err != nil {
		return admin.DashboardStats{}, fmt.Errorf("list lotteries: %w", err)
	}
	for _, l := range allL {
		if l.Status == lottery.StatusActive {
			stats.ActiveLotteries++
		}
		stats.TicketsSold += l.TicketsSold
	}

	listings, err := s.market.ListListings(ctx, market.ListingActive, 0)
	if err != nil {
		return admin.DashboardStats{}, fmt.Errorf("list listings: %w", err)
	}
	stats.ActiveListings = len(listings)
	disputes, err := s.market.ListDisputes(ctx, market.DisputeOpen, 0)
	if err != nil {
		return admin.DashboardStats{}, fmt.Errorf("list disputes: %w", err)
	}
	stats.OpenDisputes = len(disputes)

	return stats, nil
}

// SystemStatus reports host CPU, memory and process health.
func (s *Service) SystemStatus(ctx context.Context) admin.SystemStatus {
	status := admin.SystemStatus{
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
		CheckedAt:  time.Now().UTC(),
	}
	if hostname, err := os.Hostname(); err == nil {
		status.Hostname = hostname
	}
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		status.UptimeSeconds = uptime
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		status.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		status.MemTotalBytes = vm.Total
		status.MemUsedBytes = vm.Used
		status.MemPercent = vm.UsedPercent
	}
	return status
}
