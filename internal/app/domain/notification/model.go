// Package notification defines user notifications.
package notification

import "time"

// Category groups notifications for filtering.
type Category string

const (
	CategoryTask     Category = "task"
	CategoryReferral Category = "referral"
	CategoryLottery  Category = "lottery"
	CategoryWallet   Category = "wallet"
	CategoryMarket   Category = "market"
	CategoryCourse   Category = "course"
	CategorySystem   Category = "system"
)

// Notification is a message delivered to one user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Reference string    `json:"reference,omitempty"` // Related entity ID
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
