package model

import "time"

// Task status constants.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Task priority constants.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Statuses lists all task statuses in workflow order.
var Statuses = []string{StatusNotStarted, StatusInProgress, StatusDone}

// Priorities lists all task priorities from least to most urgent.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

// Task is a work item on the shared board.
type Task struct {
	// ID is the unique identifier assigned at creation.
	ID string `json:"id" db:"id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title" db:"title"`

	// Description is the full body text.
	Description string `json:"description,omitempty" db:"description"`

	// Status is the workflow state (use Status* constants).
	Status string `json:"status" db:"status"`

	// Priority is the urgency level (use Priority* constants).
	Priority string `json:"priority" db:"priority"`

	// DueAt is the optional deadline.
	DueAt *time.Time `json:"due_at,omitempty" db:"due_at"`

	// CreatedAt is set once when the task is inserted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is stamped on every edit; nil until the first one.
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`

	// CreatorID is the id of the user who created the task. Immutable.
	CreatorID string `json:"creator_id" db:"creator_id"`

	// AssigneeID is the id of the user the task is assigned to, if any.
	AssigneeID string `json:"assignee_id,omitempty" db:"assignee_id"`

	// CreatorName and AssigneeName are denormalized display names.
	CreatorName  string `json:"creator_name,omitempty" db:"creator_name"`
	AssigneeName string `json:"assignee_name,omitempty" db:"assignee_name"`
}

// IsDone reports whether the task reached its terminal status.
func (t Task) IsDone() bool { return t.Status == StatusDone }

// IsOverdue reports whether the task has a deadline in the past and is
// not yet done.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueAt != nil && t.DueAt.Before(now) && !t.IsDone()
}

// DueWithin reports whether the task is due inside the given window from
// now. Done tasks and tasks without a deadline never match.
func (t Task) DueWithin(now time.Time, window time.Duration) bool {
	if t.DueAt == nil || t.IsDone() {
		return false
	}
	return !t.DueAt.Before(now) && t.DueAt.Before(now.Add(window))
}

// PriorityWeight maps a priority constant to a sortable rank
// (higher = more urgent). Unknown priorities sort last.
func PriorityWeight(p string) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ValidStatus reports whether s is one of the Status* constants.
func ValidStatus(s string) bool {
	return s == StatusNotStarted || s == StatusInProgress || s == StatusDone
}

// ValidPriority reports whether p is one of the Priority* constants.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}
