// Package course defines learnable courses and enrollments.
package course

import "time"

// Status is the course lifecycle state.
type Status string

const (
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
	StatusArchived  Status = "archived"
)

// Course is a lesson sequence that pays out on completion.
type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Lessons      int       `json:"lessons"`
	EnrollCost   int64     `json:"enroll_cost"`   // Points, 0 for free courses
	RewardPoints int64     `json:"reward_points"` // Paid once on completion
	RewardXP     int64     `json:"reward_xp"`
	Status       Status    `json:"status"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Enrollment tracks one user's progress through a course.
type Enrollment struct {
	ID               string    `json:"id"`
	CourseID         string    `json:"course_id"`
	UserID           string    `json:"user_id"`
	LessonsCompleted int       `json:"lessons_completed"`
	Completed        bool      `json:"completed"`
	EnrolledAt       time.Time `json:"enrolled_at"`
	CompletedAt      time.Time `json:"completed_at,omitempty"`
}
