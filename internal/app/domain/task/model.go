// Package task defines earnable tasks and their submissions.
package task

import "time"

// Status is the task lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusExpired  Status = "expired"
	StatusArchived Status = "archived"
)

// Task is an activity users complete for points.
type Task struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	RewardPoints   int64     `json:"reward_points"`
	RewardXP       int64     `json:"reward_xp"`
	MaxSubmissions int       `json:"max_submissions"` // 0 means unlimited
	Submissions    int       `json:"submissions"`     // Approved submission count
	Status         Status    `json:"status"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SubmissionStatus is the review state of a submission.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Submission is a user's proof of completing a task.
type Submission struct {
	ID           string           `json:"id"`
	TaskID       string           `json:"task_id"`
	UserID       string           `json:"user_id"`
	Proof        string           `json:"proof"`
	ProofFileKey string           `json:"proof_file_key,omitempty"` // Object-storage key
	Status       SubmissionStatus `json:"status"`
	ReviewedBy   string           `json:"reviewed_by,omitempty"`
	RejectReason string           `json:"reject_reason,omitempty"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	ReviewedAt   time.Time        `json:"reviewed_at,omitempty"`
}

// Expired reports whether the task is past its expiry.
func (t Task) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Full reports whether the task reached its approved-submission cap.
func (t Task) Full() bool {
	return t.MaxSubmissions > 0 && t.Submissions >= t.MaxSubmissions
}
