package model

import "time"

// Notification type tags written by this client. The field is free-form
// on the wire; other writers may use their own tags.
const (
	NotificationTaskAssigned  = "task_assigned"
	NotificationTaskCompleted = "task_completed"
)

// Notification is an alert addressed to a single user about activity
// on the board.
type Notification struct {
	// ID is the unique identifier assigned at creation.
	ID string `json:"id" db:"id"`

	// UserID is the id of the user this notification is addressed to.
	// Immutable.
	UserID string `json:"user_id" db:"user_id"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// Type tags the kind of event (use Notification* constants).
	Type string `json:"type" db:"type"`

	// Read indicates whether the user has seen this notification.
	// Transitions false to true only.
	Read bool `json:"read" db:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// TaskID optionally references the originating task. The reference
	// is for lookup only; deleting the task does not remove the
	// notification, so the target may no longer exist.
	TaskID string `json:"task_id,omitempty" db:"task_id"`
}
