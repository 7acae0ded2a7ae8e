// Package app wires the synchronizers, the snapshot cache, and the
// Bubble Tea views into the root terminal application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/keys"
	"github.com/ldiaz/taskboard/internal/session"
	"github.com/ldiaz/taskboard/internal/store"
	appsync "github.com/ldiaz/taskboard/internal/sync"
	"github.com/ldiaz/taskboard/internal/ui"
	"github.com/ldiaz/taskboard/internal/ui/command"
	"github.com/ldiaz/taskboard/internal/ui/dashboard"
	"github.com/ldiaz/taskboard/internal/ui/detail"
	"github.com/ldiaz/taskboard/internal/ui/help"
	"github.com/ldiaz/taskboard/internal/ui/notiflist"
	"github.com/ldiaz/taskboard/internal/ui/taskform"
	"github.com/ldiaz/taskboard/internal/ui/tasklist"
)

// ViewState identifies which view currently owns the content area.
type ViewState int

const (
	ViewTasks ViewState = iota
	ViewNotifications
	ViewDashboard
	ViewDetail
	ViewTaskCreate
	ViewTaskEdit
	ViewHelp
	ViewCommand
)

// Deps carries everything the root model needs. Snapshots may be nil;
// the app then runs without a local cache.
type Deps struct {
	Tasks         *appsync.TaskSync
	Notifications *appsync.NotificationSync
	Service       dataservice.Service
	Snapshots     *store.SnapshotStore
	Session       session.Session
	Logger        *slog.Logger
	RefreshEvery  time.Duration
}

// Model is the root application model.
type Model struct {
	tasks         *appsync.TaskSync
	notifications *appsync.NotificationSync
	svc           dataservice.Service
	snapshots     *store.SnapshotStore
	sess          session.Session
	logger        *slog.Logger
	refreshEvery  time.Duration

	layout ui.Layout
	keys   *keys.KeyMap

	currentView  ViewState
	previousView ViewState
	detailReturn ViewState

	taskList    tasklist.Model
	notifList   notiflist.Model
	board       dashboard.Model
	taskDetail  detail.Model
	taskForm    taskform.Model
	helpView    help.Model
	commandView command.Model

	ready         bool
	initializing  bool
	statusMessage string
	authBanner    string
}

// New builds the root model. The synchronizers should already be
// seeded from the snapshot cache when one exists; the first fetch and
// the push subscriptions start from Init.
func New(deps Deps) Model {
	k := keys.DefaultKeyMap()
	refreshEvery := deps.RefreshEvery
	if refreshEvery <= 0 {
		refreshEvery = 5 * time.Minute
	}

	const w, h = 80, 24
	return Model{
		tasks:         deps.Tasks,
		notifications: deps.Notifications,
		svc:           deps.Service,
		snapshots:     deps.Snapshots,
		sess:          deps.Session,
		logger:        deps.Logger,
		refreshEvery:  refreshEvery,

		layout: ui.NewLayout(w, h),
		keys:   k,

		currentView:  ViewTasks,
		detailReturn: ViewTasks,

		taskList:    tasklist.New(deps.Tasks, deps.Session.UserID, k, w, h),
		notifList:   notiflist.New(deps.Notifications, k, w, h),
		board:       dashboard.New(deps.Tasks, deps.Notifications, w, h),
		taskDetail:  detail.New(k, w, h),
		taskForm:    taskform.New(w, h),
		helpView:    help.New(k, w, h),
		commandView: command.New(w, h),

		initializing: true,
	}
}

// Init seeds the views from whatever the synchronizers already hold,
// kicks off the first full fetch, and opens the push feeds.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.reloadData(),
		m.initialize(),
		m.subscribe(),
		m.waitForChange(),
		m.scheduleRefresh(),
		m.loadProfiles(),
	)
}

// Update routes messages to the application state and the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Width = msg.Width
		m.layout.Height = msg.Height
		m.ready = true

		w := m.layout.ContentWidth()
		h := m.layout.ContentHeight()
		m.taskList.SetSize(w, h)
		m.notifList.SetSize(w, h)
		m.board.SetSize(w, h)
		m.taskDetail.SetSize(w, h)
		m.taskForm.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		return m, nil

	case initializedMsg:
		return m.handleInitialized(msg)

	case subscribedMsg:
		if msg.err != nil {
			m.logger.Error("starting push feeds failed", "error", msg.err)
			if dataservice.IsAuthError(msg.err) {
				m.authBanner = describeError(msg.err)
			} else {
				m.statusMessage = "Live updates unavailable: " + describeError(msg.err)
			}
		}
		return m, nil

	case changedMsg:
		return m.handleChanged()

	case refreshTickMsg:
		cmds := []tea.Cmd{m.scheduleRefresh()}
		if !m.initializing {
			m.initializing = true
			cmds = append(cmds, m.initialize())
		}
		return m, tea.Batch(cmds...)

	case profilesLoadedMsg:
		m.taskForm.SetProfiles(msg.profiles)
		return m, nil

	case opDoneMsg:
		return m.handleOpDone(msg)

	case snapshotSavedMsg:
		return m, nil

	case tasklist.TasksLoadedMsg:
		var cmd tea.Cmd
		m.taskList, cmd = m.taskList.Update(msg)
		return m, cmd

	case tasklist.SelectedTaskMsg:
		return m.openDetail(msg.TaskID, m.currentView)

	case notiflist.NotificationsLoadedMsg:
		var cmd tea.Cmd
		m.notifList, cmd = m.notifList.Update(msg)
		return m, cmd

	case notiflist.OpenTaskMsg:
		return m.openFromNotification(msg)

	case notiflist.MarkReadMsg:
		return m, m.markNotificationRead(msg.NotificationID)

	case notiflist.MarkAllReadMsg:
		return m, m.markAllNotificationsRead()

	case dashboard.LoadedMsg:
		var cmd tea.Cmd
		m.board, cmd = m.board.Update(msg)
		return m, cmd

	case taskform.TaskCreatedMsg:
		m.currentView = ViewTasks
		m.statusMessage = "Creating task..."
		return m, m.createTask(msg.Task)

	case taskform.TaskEditedMsg:
		m.currentView = m.previousView
		m.statusMessage = "Saving task..."
		return m, m.editTask(msg.TaskID, msg.Patch, msg.NewStatus)

	case taskform.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case detail.BackMsg:
		m.currentView = m.detailReturn
		return m, m.reloadView(m.currentView)

	case detail.AdvanceStatusMsg:
		return m, m.advanceTaskStatus(msg.TaskID)

	case detail.EditRequestMsg:
		return m.openEditForm(msg.TaskID, ViewDetail)

	case detail.DeleteRequestMsg:
		return m, m.deleteTask(msg.TaskID)

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

// handleInitialized folds the result of a full fetch into the model.
func (m Model) handleInitialized(msg initializedMsg) (tea.Model, tea.Cmd) {
	m.initializing = false

	err := msg.tasksErr
	if err == nil {
		err = msg.notifsErr
	}
	switch {
	case err == nil:
		m.authBanner = ""
		m.statusMessage = ""
	case dataservice.IsAuthError(err):
		m.authBanner = describeError(err)
	default:
		m.statusMessage = "Refresh failed: " + describeError(err)
	}

	cmds := []tea.Cmd{m.reloadData(), m.saveSnapshot()}
	if err == nil {
		cmds = append(cmds, m.subscribe())
	}
	if m.currentView == ViewDetail {
		if !m.taskDetail.Refresh(m.tasks.Get) {
			m.currentView = m.detailReturn
			m.statusMessage = "The task you were viewing is gone."
		}
	}
	return m, tea.Batch(cmds...)
}

// handleChanged reacts to a synchronizer state change: refresh every
// view and persist the new state.
func (m Model) handleChanged() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.reloadData(), m.saveSnapshot(), m.waitForChange()}
	if m.currentView == ViewDetail {
		if !m.taskDetail.Refresh(m.tasks.Get) {
			m.currentView = m.detailReturn
			m.statusMessage = "The task you were viewing is gone."
		}
	}
	return m, tea.Batch(cmds...)
}

// handleOpDone folds a finished user operation into the model.
func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		switch {
		case dataservice.IsAuthError(msg.err):
			m.authBanner = describeError(msg.err)
		case errors.Is(msg.err, dataservice.ErrNotFound):
			// The view was stale. Tell the user and refetch so it
			// stops being stale.
			m.statusMessage = describeError(msg.err)
			m.initializing = true
			return m, m.initialize()
		default:
			m.statusMessage = describeError(msg.err)
		}
		return m, nil
	}

	switch msg.op {
	case "create":
		m.statusMessage = "Task created."
	case "edit":
		m.statusMessage = "Task saved."
	case "delete":
		m.statusMessage = "Task deleted."
		if m.currentView == ViewDetail {
			m.currentView = m.detailReturn
			return m, m.reloadView(m.currentView)
		}
	default:
		m.statusMessage = ""
	}
	return m, nil
}

// handleKey applies global key bindings, then falls through to the
// active view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	// A transient status line lives until the next keypress.
	m.statusMessage = ""

	// Text-entry views own the keyboard.
	switch m.currentView {
	case ViewTaskCreate, ViewTaskEdit:
		if msg.String() == "esc" {
			m.currentView = m.previousView
			return m, nil
		}
		return m.updateActiveView(msg)
	case ViewCommand:
		if msg.String() == "esc" {
			m.currentView = m.previousView
			return m, nil
		}
		return m.updateActiveView(msg)
	}
	if m.currentView == ViewTasks && m.taskList.Searching() {
		return m.updateActiveView(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
		} else {
			m.previousView = m.currentView
			m.currentView = ViewHelp
		}
		return m, nil

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus()

	case key.Matches(msg, m.keys.Back) && m.currentView == ViewHelp:
		m.currentView = m.previousView
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m.manualRefresh()

	case key.Matches(msg, m.keys.ViewTasks):
		return m.switchView(ViewTasks)

	case key.Matches(msg, m.keys.ViewNotifications):
		return m.switchView(ViewNotifications)

	case key.Matches(msg, m.keys.ViewDashboard):
		return m.switchView(ViewDashboard)

	case key.Matches(msg, m.keys.NewTask) &&
		(m.currentView == ViewTasks || m.currentView == ViewDashboard):
		m.previousView = m.currentView
		m.currentView = ViewTaskCreate
		return m, m.taskForm.StartCreate()

	case key.Matches(msg, m.keys.EditTask) && m.currentView == ViewTasks:
		if t, ok := m.taskList.SelectedTask(); ok {
			return m.openEditForm(t.ID, ViewTasks)
		}
		return m, nil

	case key.Matches(msg, m.keys.DeleteTask) && m.currentView == ViewTasks:
		if t, ok := m.taskList.SelectedTask(); ok {
			return m, m.deleteTask(t.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.CycleStatus) && m.currentView == ViewTasks:
		if t, ok := m.taskList.SelectedTask(); ok {
			return m, m.advanceTaskStatus(t.ID)
		}
		return m, nil
	}

	return m.updateActiveView(msg)
}

// updateActiveView forwards a message to whichever view owns the
// content area.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewTasks:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewNotifications:
		m.notifList, cmd = m.notifList.Update(msg)
	case ViewDashboard:
		m.board, cmd = m.board.Update(msg)
	case ViewDetail:
		m.taskDetail, cmd = m.taskDetail.Update(msg)
	case ViewTaskCreate, ViewTaskEdit:
		m.taskForm, cmd = m.taskForm.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}
	return m, cmd
}

// switchView changes the active list view and reloads its contents.
func (m Model) switchView(v ViewState) (tea.Model, tea.Cmd) {
	if m.currentView == v {
		return m, nil
	}
	m.previousView = m.currentView
	m.currentView = v
	return m, m.reloadView(v)
}

// reloadView re-reads the synchronizer state behind a single view.
func (m Model) reloadView(v ViewState) tea.Cmd {
	switch v {
	case ViewTasks:
		return m.taskList.LoadTasks()
	case ViewNotifications:
		return m.notifList.LoadNotifications()
	case ViewDashboard:
		return m.board.Load()
	}
	return nil
}

// reloadData re-reads the synchronizer state behind every view.
func (m Model) reloadData() tea.Cmd {
	return tea.Batch(
		m.taskList.LoadTasks(),
		m.notifList.LoadNotifications(),
		m.board.Load(),
	)
}

// manualRefresh runs a full fetch now without disturbing the periodic
// schedule.
func (m Model) manualRefresh() (tea.Model, tea.Cmd) {
	if m.initializing {
		return m, nil
	}
	m.initializing = true
	m.statusMessage = "Refreshing..."
	return m, m.initialize()
}

// openDetail shows a task in the detail view, remembering which list
// to return to.
func (m Model) openDetail(taskID string, from ViewState) (tea.Model, tea.Cmd) {
	t, ok := m.tasks.Get(taskID)
	if !ok {
		m.statusMessage = "That task is no longer in the view."
		return m, m.reloadView(m.currentView)
	}
	m.taskDetail.SetTask(t)
	m.detailReturn = from
	m.currentView = ViewDetail
	return m, nil
}

// openFromNotification marks the notification read and follows its
// task reference. The reference is weak: when the task is gone the
// user stays on the list with a note saying so.
func (m Model) openFromNotification(msg notiflist.OpenTaskMsg) (tea.Model, tea.Cmd) {
	markCmd := m.markNotificationRead(msg.NotificationID)

	if msg.TaskID == "" {
		m.statusMessage = "This notification has no task attached."
		return m, markCmd
	}
	t, ok := m.tasks.Get(msg.TaskID)
	if !ok {
		m.statusMessage = "The task behind this notification is gone."
		return m, markCmd
	}
	m.taskDetail.SetTask(t)
	m.detailReturn = ViewNotifications
	m.currentView = ViewDetail
	return m, markCmd
}

// openEditForm loads a task into the form view.
func (m Model) openEditForm(taskID string, from ViewState) (tea.Model, tea.Cmd) {
	t, ok := m.tasks.Get(taskID)
	if !ok {
		m.statusMessage = "That task is no longer in the view."
		return m, nil
	}
	m.previousView = from
	m.currentView = ViewTaskEdit
	return m, m.taskForm.StartEdit(t)
}

// quit stops the push feeds, saves a final snapshot, and exits.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.tasks.Stop()
	m.notifications.Stop()

	if m.snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := m.snapshots.SaveTasks(ctx, m.sess.UserID, m.tasks.Tasks()); err != nil {
			m.logger.Warn("task snapshot save failed", "error", err)
		}
		if err := m.snapshots.SaveNotifications(ctx, m.sess.UserID, m.notifications.Notifications()); err != nil {
			m.logger.Warn("notification snapshot save failed", "error", err)
		}
	}
	return m, tea.Quit
}

// View renders the full terminal frame.
func (m Model) View() string {
	if !m.ready {
		return "Starting taskboard..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.unreadBadge(), m.feedStatus())
	statusBar := m.layout.RenderStatusBar(m.statusLine())
	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent renders whichever view owns the content area.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewTasks:
		return m.taskList.View()
	case ViewNotifications:
		return m.notifList.View()
	case ViewDashboard:
		return m.board.View()
	case ViewDetail:
		return m.taskDetail.View()
	case ViewTaskCreate, ViewTaskEdit:
		return m.taskForm.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	}
	return ""
}

// headerTitle names the application and the active view.
func (m Model) headerTitle() string {
	name := " Taskboard"
	switch m.currentView {
	case ViewTasks:
		return name + " · Tasks "
	case ViewNotifications:
		return name + " · Notifications "
	case ViewDashboard:
		return name + " · Board "
	case ViewDetail:
		return name + " · Task "
	case ViewTaskCreate:
		return name + " · New task "
	case ViewTaskEdit:
		return name + " · Edit task "
	case ViewHelp:
		return name + " · Help "
	case ViewCommand:
		return name + " · Command "
	}
	return name + " "
}

// unreadBadge renders the unread notification count, or "" when the
// inbox is clear.
func (m Model) unreadBadge() string {
	n := m.notifications.UnreadCount()
	if n == 0 {
		return ""
	}
	return fmt.Sprintf(" %d unread ", n)
}

// feedStatus summarizes the push feed state for the header.
func (m Model) feedStatus() string {
	if m.initializing {
		return "syncing... "
	}
	tasksLive := m.tasks.Running()
	notifsLive := m.notifications.Running()
	switch {
	case tasksLive && notifsLive:
		return "live "
	case tasksLive || notifsLive:
		return "partial feed "
	default:
		return "offline "
	}
}

// statusLine picks what the status bar shows: a sticky auth problem, a
// transient message, or the key hints for the active view.
func (m Model) statusLine() string {
	if m.authBanner != "" {
		return " " + m.authBanner
	}
	if m.statusMessage != "" {
		return " " + m.statusMessage
	}
	return " " + m.keyHints()
}

// keyHints returns the hint string for the active view.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewTasks:
		hints := "j/k move · enter open · n new · e edit · t status · x delete · / search · f filter · tab sort · ? help"
		if summary := m.taskList.FilterSummary(); summary != "" {
			hints = "[" + summary + "] · " + hints
		}
		return hints
	case ViewNotifications:
		return "j/k move · enter open task · m read · M all read · u unread only · 1/3 views · ? help"
	case ViewDashboard:
		return "1 tasks · 2 notifications · n new · r refresh · ? help · q quit"
	case ViewDetail:
		return "t status · e edit · x delete · esc back"
	case ViewTaskCreate, ViewTaskEdit:
		return "tab/shift+tab fields · enter submit · esc cancel"
	case ViewCommand:
		return "enter run · esc close"
	case ViewHelp:
		return "esc back · q quit"
	}
	return ""
}

// executeCommand dispatches a command palette entry.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "q", "quit", "exit":
		return m.quit()
	case "refresh", "sync":
		return m.manualRefresh()
	case "tasks":
		return m.switchView(ViewTasks)
	case "notifications", "inbox":
		return m.switchView(ViewNotifications)
	case "dashboard", "board":
		return m.switchView(ViewDashboard)
	case "new", "new task":
		m.previousView = m.currentView
		m.currentView = ViewTaskCreate
		return m, m.taskForm.StartCreate()
	case "read all", "mark all read":
		return m, m.markAllNotificationsRead()
	case "overdue":
		loadCmd := m.taskList.SetOverdueOnly(true)
		if m.currentView != ViewTasks {
			m.previousView = m.currentView
			m.currentView = ViewTasks
		}
		return m, loadCmd
	case "clear", "clear filters":
		return m, m.taskList.ClearFilters()
	case "help":
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil
	default:
		m.statusMessage = fmt.Sprintf("Unknown command: %s", cmd)
		return m, nil
	}
}
