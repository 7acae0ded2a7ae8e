package sync

import (
	"strings"
	"time"

	"github.com/ldiaz/taskboard/internal/model"
)

// TaskFilter selects tasks from the local view. Zero-valued fields
// match everything; set fields combine with AND.
type TaskFilter struct {
	// Status and Priority match exactly when non-empty.
	Status   string
	Priority string

	// AssigneeID matches exactly when non-empty.
	AssigneeID string

	// Query matches case-insensitively against title and description.
	Query string

	// OverdueOnly keeps tasks whose deadline has passed and that are
	// not done.
	OverdueOnly bool

	// DueWithin keeps tasks due inside the window from now.
	DueWithin time.Duration
}

func (f TaskFilter) matches(t model.Task, now time.Time) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
		return false
	}
	if f.OverdueOnly && !t.IsOverdue(now) {
		return false
	}
	if f.DueWithin > 0 && !t.DueWithin(now, f.DueWithin) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

// NotificationFilter selects notifications from the local view.
type NotificationFilter struct {
	// UnreadOnly keeps notifications not yet read.
	UnreadOnly bool

	// Type matches the notification tag exactly when non-empty.
	Type string
}

func (f NotificationFilter) matches(n model.Notification) bool {
	if f.UnreadOnly && n.Read {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	return true
}
