package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/model"
	appsync "github.com/ldiaz/taskboard/internal/sync"
)

// opTimeout bounds every platform call issued from the UI.
const opTimeout = 15 * time.Second

// initializedMsg reports the outcome of a full fetch of both views.
type initializedMsg struct {
	tasksErr  error
	notifsErr error
}

// subscribedMsg reports the outcome of starting the push feeds.
type subscribedMsg struct {
	err error
}

// changedMsg says one of the synchronizers changed state.
type changedMsg struct{}

// refreshTickMsg drives the periodic reconciling refetch.
type refreshTickMsg time.Time

// profilesLoadedMsg carries the user directory for the assignee
// selector.
type profilesLoadedMsg struct {
	profiles []model.Profile
}

// opDoneMsg reports the outcome of a single user-triggered operation.
type opDoneMsg struct {
	op  string
	err error
}

// snapshotSavedMsg reports a snapshot write. Failures are already
// logged; the message exists so the command has something to return.
type snapshotSavedMsg struct{}

// initialize refetches both views from the platform.
func (m Model) initialize() tea.Cmd {
	tasks := m.tasks
	notifications := m.notifications
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		return initializedMsg{
			tasksErr:  tasks.Initialize(ctx),
			notifsErr: notifications.Initialize(ctx),
		}
	}
}

// subscribe opens both push feeds. Already-running feeds are left
// alone.
func (m Model) subscribe() tea.Cmd {
	tasks := m.tasks
	notifications := m.notifications
	return func() tea.Msg {
		ctx := context.Background()

		if !tasks.Running() {
			if err := tasks.Start(ctx); err != nil && !errors.Is(err, appsync.ErrStarted) {
				return subscribedMsg{err: err}
			}
		}
		if !notifications.Running() {
			if err := notifications.Start(ctx); err != nil && !errors.Is(err, appsync.ErrStarted) {
				return subscribedMsg{err: err}
			}
		}
		return subscribedMsg{}
	}
}

// waitForChange blocks until either synchronizer signals a change.
// Re-armed after every delivery.
func (m Model) waitForChange() tea.Cmd {
	tasksCh := m.tasks.Changes()
	notifsCh := m.notifications.Changes()
	return func() tea.Msg {
		select {
		case <-tasksCh:
		case <-notifsCh:
		}
		return changedMsg{}
	}
}

// scheduleRefresh arms the next periodic refetch.
func (m Model) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.refreshEvery, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

// loadProfiles fetches the user directory. A failure leaves the
// selector with just "Unassigned"; not worth a banner.
func (m Model) loadProfiles() tea.Cmd {
	svc := m.svc
	logger := m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		records, err := svc.Query(ctx, model.TableProfiles, dataservice.Query{
			OrderBy: "display_name",
		})
		if err != nil {
			logger.Warn("profile directory fetch failed", "error", err)
			return profilesLoadedMsg{}
		}

		profiles := make([]model.Profile, 0, len(records))
		for _, rec := range records {
			if rec.Profile != nil {
				profiles = append(profiles, *rec.Profile)
			}
		}
		return profilesLoadedMsg{profiles: profiles}
	}
}

// createTask files a new task through the synchronizer.
func (m Model) createTask(t model.Task) tea.Cmd {
	tasks := m.tasks
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		_, err := tasks.Create(ctx, t)
		return opDoneMsg{op: "create", err: err}
	}
}

// editTask applies a field patch and, separately, a status change.
func (m Model) editTask(id string, patch appsync.TaskPatch, newStatus string) tea.Cmd {
	tasks := m.tasks
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		if patch != (appsync.TaskPatch{}) {
			if err := tasks.UpdateFields(ctx, id, patch); err != nil {
				return opDoneMsg{op: "edit", err: err}
			}
		}
		if newStatus != "" {
			if err := tasks.UpdateStatus(ctx, id, newStatus); err != nil {
				return opDoneMsg{op: "edit", err: err}
			}
		}
		return opDoneMsg{op: "edit"}
	}
}

// advanceTaskStatus moves a task one step along the status cycle.
func (m Model) advanceTaskStatus(id string) tea.Cmd {
	tasks := m.tasks
	return func() tea.Msg {
		t, ok := tasks.Get(id)
		if !ok {
			return opDoneMsg{op: "status", err: dataservice.ErrNotFound}
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		err := tasks.UpdateStatus(ctx, id, nextStatus(t.Status))
		return opDoneMsg{op: "status", err: err}
	}
}

// deleteTask removes a task, remote first.
func (m Model) deleteTask(id string) tea.Cmd {
	tasks := m.tasks
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		err := tasks.Delete(ctx, id)
		return opDoneMsg{op: "delete", err: err}
	}
}

// markNotificationRead marks one notification read. Remote failures
// are logged inside the synchronizer, never surfaced.
func (m Model) markNotificationRead(id string) tea.Cmd {
	notifications := m.notifications
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		notifications.MarkRead(ctx, id)
		return opDoneMsg{op: "mark-read"}
	}
}

// markAllNotificationsRead clears the whole unread set.
func (m Model) markAllNotificationsRead() tea.Cmd {
	notifications := m.notifications
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		notifications.MarkAllRead(ctx)
		return opDoneMsg{op: "mark-all-read"}
	}
}

// saveSnapshot writes the current views to the local cache. Best
// effort; a failed save costs only the next warm start.
func (m Model) saveSnapshot() tea.Cmd {
	if m.snapshots == nil {
		return nil
	}

	snapshots := m.snapshots
	logger := m.logger
	userID := m.sess.UserID
	tasks := m.tasks.Tasks()
	notifications := m.notifications.Notifications()

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		if err := snapshots.SaveTasks(ctx, userID, tasks); err != nil {
			logger.Warn("task snapshot save failed", "error", err)
		}
		if err := snapshots.SaveNotifications(ctx, userID, notifications); err != nil {
			logger.Warn("notification snapshot save failed", "error", err)
		}
		return snapshotSavedMsg{}
	}
}

// nextStatus returns the status after the given one in the working
// cycle. Done wraps around to reopen.
func nextStatus(status string) string {
	switch status {
	case model.StatusNotStarted:
		return model.StatusInProgress
	case model.StatusInProgress:
		return model.StatusDone
	default:
		return model.StatusNotStarted
	}
}

// describeError turns a platform error into a status bar banner.
func describeError(err error) string {
	if dataservice.IsAuthError(err) {
		return "Session expired. Run 'taskboard token set' to sign in again."
	}
	if errors.Is(err, dataservice.ErrNotFound) {
		return "That item no longer exists on the platform."
	}
	return err.Error()
}
