// Package admin provides administrative dashboard types.
package admin

import "time"

// DashboardStats aggregates platform activity for the admin dashboard.
type DashboardStats struct {
	TotalUsers          int       `json:"total_users" db:"total_users"`
	ActiveUsers         int       `json:"active_users" db:"active_users"`
	SuspendedUsers      int       `json:"suspended_users" db:"suspended_users"`
	PendingKYC          int       `json:"pending_kyc" db:"pending_kyc"`
	ActiveTasks         int       `json:"active_tasks" db:"active_tasks"`
	PendingSubmissions  int       `json:"pending_submissions" db:"pending_submissions"`
	ApprovedSubmissions int       `json:"approved_submissions" db:"approved_submissions"`
	PendingWithdrawals  int       `json:"pending_withdrawals" db:"pending_withdrawals"`
	WithdrawalVolume    int64     `json:"withdrawal_volume" db:"withdrawal_volume"` // Paid out, cents
	PointsInCirculation int64     `json:"points_in_circulation" db:"points_in_circulation"`
	ActiveLotteries     int       `json:"active_lotteries" db:"active_lotteries"`
	TicketsSold         int       `json:"tickets_sold" db:"tickets_sold"`
	ActiveListings      int       `json:"active_listings" db:"active_listings"`
	OpenDisputes        int       `json:"open_disputes" db:"open_disputes"`
	GeneratedAt         time.Time `json:"generated_at" db:"-"`
}

// SystemStatus reports host-level health for the admin panel.
type SystemStatus struct {
	Hostname      string    `json:"hostname"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemTotalBytes uint64    `json:"mem_total_bytes"`
	MemUsedBytes  uint64    `json:"mem_used_bytes"`
	MemPercent    float64   `json:"mem_percent"`
	Goroutines    int       `json:"goroutines"`
	GoVersion     string    `json:"go_version"`
	CheckedAt     time.Time `json:"checked_at"`
}
