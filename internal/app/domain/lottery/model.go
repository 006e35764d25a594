// Package lottery defines point lotteries, tickets and draw results.
package lottery

import "time"

// Status is the lottery lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Prize is one ordered prize position.
type Prize struct {
	Position int    `json:"position"` // 1-based
	Label    string `json:"label"`
	Amount   int64  `json:"amount"` // Points credited to the winner
}

// Lottery is a raffle-style draw over sold tickets.
type Lottery struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	TicketPrice       int64     `json:"ticket_price"`         // Points per ticket
	MaxTickets        int       `json:"max_tickets"`          // 0 means uncapped
	MaxTicketsPerUser int       `json:"max_tickets_per_user"` // 0 means uncapped
	TicketsSold       int       `json:"tickets_sold"`
	Prizes            []Prize   `json:"prizes"`
	Status            Status    `json:"status"`
	DrawSchedule      string    `json:"draw_schedule,omitempty"` // Optional cron expression
	Winners           []Winner  `json:"winners,omitempty"`
	CreatedBy         string    `json:"created_by"`
	DrawnAt           time.Time `json:"drawn_at,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Ticket is one entry into a lottery.
type Ticket struct {
	ID          string    `json:"id"`
	LotteryID   string    `json:"lottery_id"`
	UserID      string    `json:"user_id"`
	Price       int64     `json:"price"` // Price paid, kept for refunds
	Winning     bool      `json:"winning"`
	Position    int       `json:"position,omitempty"` // Prize position when winning
	PurchasedAt time.Time `json:"purchased_at"`
}

// Winner pairs a winning ticket with its prize.
type Winner struct {
	Position    int    `json:"position"`
	TicketID    string `json:"ticket_id"`
	UserID      string `json:"user_id"`
	PrizeLabel  string `json:"prize_label"`
	PrizeAmount int64  `json:"prize_amount"`
}
