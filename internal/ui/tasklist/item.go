package tasklist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldiaz/taskboard/internal/model"
	"github.com/ldiaz/taskboard/internal/theme"
)

// TaskItem wraps a model.Task so it can be used in a bubbles/list.
type TaskItem struct {
	Task model.Task
}

// FilterValue returns the string used for fuzzy filtering.
func (i TaskItem) FilterValue() string { return i.Task.Title }

// ItemDelegate implements list.ItemDelegate for rendering task lines.
type ItemDelegate struct {
	// userID marks tasks assigned to the current user.
	userID string
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single task line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	taskItem, ok := item.(TaskItem)
	if !ok {
		return
	}

	t := taskItem.Task
	isSelected := index == m.Index()

	var prefix string
	if t.IsDone() {
		prefix = "✓"
	} else {
		prefix = "○"
	}

	statusBadge := theme.StatusStyle(t.Status).Render(statusLabel(t.Status))
	priBadge := theme.PriorityStyle(t.Priority).Render(priorityLabel(t.Priority))

	assignee := ""
	if t.AssigneeID != "" && t.AssigneeID != d.userID {
		name := t.AssigneeName
		if name == "" {
			name = t.AssigneeID
		}
		assignee = lipgloss.NewStyle().
			Foreground(theme.ColorMagenta).
			Render(" @" + name)
	}

	dueStr := ""
	if t.DueAt != nil {
		dueStr = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Render(" due " + t.DueAt.Format("Jan 02"))
	}

	overdueStr := ""
	if t.IsOverdue(time.Now()) {
		overdueStr = theme.OverdueStyle.Render(" OVERDUE")
	}

	touched := t.CreatedAt
	if t.UpdatedAt != nil {
		touched = *t.UpdatedAt
	}
	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(touched))

	line := fmt.Sprintf(
		"%s %s %s %s%s%s%s  %s",
		prefix, statusBadge, priBadge, t.Title, assignee, dueStr, overdueStr, timeStr,
	)

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// statusLabel returns a short display label for a task status.
func statusLabel(status string) string {
	switch status {
	case model.StatusNotStarted:
		return "todo"
	case model.StatusInProgress:
		return "doing"
	case model.StatusDone:
		return "done"
	default:
		return status
	}
}

// priorityLabel returns a short label for the given priority.
func priorityLabel(p string) string {
	switch p {
	case model.PriorityHigh:
		return "P1"
	case model.PriorityMedium:
		return "P2"
	case model.PriorityLow:
		return "P3"
	default:
		return "P?"
	}
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	}
}
