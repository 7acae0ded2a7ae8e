package tasklist

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldiaz/taskboard/internal/keys"
	"github.com/ldiaz/taskboard/internal/model"
	appsync "github.com/ldiaz/taskboard/internal/sync"
	"github.com/ldiaz/taskboard/internal/theme"
)

// TasksLoadedMsg is sent when the task view has been re-read from the
// synchronizer.
type TasksLoadedMsg struct {
	Tasks []model.Task
}

// SelectedTaskMsg is sent when a user selects a task to view details.
type SelectedTaskMsg struct {
	TaskID string
}

// sortModes defines the available sort modes cycled by Tab.
var sortModes = []string{
	"created",
	"due",
	"priority",
	"title",
}

// statusCycle defines the status filter states cycled by f. The empty
// string means no status filter.
var statusCycle = []string{
	"",
	model.StatusNotStarted,
	model.StatusInProgress,
	model.StatusDone,
}

// Model is the main task list view component.
type Model struct {
	list        list.Model
	tasks       *appsync.TaskSync
	keys        *keys.KeyMap
	filter      appsync.TaskFilter
	statusIndex int
	sortIndex   int
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new task list model reading from the given
// synchronizer.
func New(tasks *appsync.TaskSync, userID string, k *keys.KeyMap, width, height int) Model {
	delegate := ItemDelegate{userID: userID}
	l := list.New([]list.Item{}, delegate, width, height-2)
	l.Title = "Tasks"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search tasks..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		tasks:       tasks,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init returns a command that loads the initial set of tasks.
func (m Model) Init() tea.Cmd {
	return m.LoadTasks()
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TasksLoadedMsg:
		items := make([]list.Item, len(msg.Tasks))
		for i, task := range msg.Tasks {
			items[i] = TaskItem{Task: task}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	// Delegate to list model for other messages
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.filter.Query = m.searchInput.Value()
		return m, m.LoadTasks()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.filter.Query = ""
		return m, m.LoadTasks()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(TaskItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedTaskMsg{TaskID: item.Task.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.FilterStatus):
		m.statusIndex = (m.statusIndex + 1) % len(statusCycle)
		m.filter.Status = statusCycle[m.statusIndex]
		return m, m.LoadTasks()

	case key.Matches(msg, m.keys.CycleSort):
		m.sortIndex = (m.sortIndex + 1) % len(sortModes)
		return m, m.LoadTasks()
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the task list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no tasks are visible.
func (m Model) renderEmptyState() string {
	hasFilters := m.filter.Status != "" || m.filter.Query != "" || m.filter.OverdueOnly

	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if hasFilters {
		return style.Render("No matching tasks.\nTry adjusting your filters.")
	}

	return style.Render("No tasks yet.\n\nPress n to create one.")
}

// Searching reports whether the search input currently has focus, in
// which case every key belongs to it.
func (m Model) Searching() bool {
	return m.searchMode
}

// SelectedTask returns the task under the cursor.
func (m Model) SelectedTask() (model.Task, bool) {
	item, ok := m.list.SelectedItem().(TaskItem)
	if !ok {
		return model.Task{}, false
	}
	return item.Task, true
}

// FilterSummary describes the active filters for the status bar, or ""
// when none are active.
func (m Model) FilterSummary() string {
	var parts []string
	if m.filter.Status != "" {
		parts = append(parts, "status:"+statusLabel(m.filter.Status))
	}
	if m.filter.Query != "" {
		parts = append(parts, "search:"+m.filter.Query)
	}
	if m.filter.OverdueOnly {
		parts = append(parts, "overdue")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " | ")
}

// SetOverdueOnly switches the overdue-only filter and reloads.
func (m *Model) SetOverdueOnly(on bool) tea.Cmd {
	m.filter.OverdueOnly = on
	return m.LoadTasks()
}

// ClearFilters resets every filter and reloads.
func (m *Model) ClearFilters() tea.Cmd {
	m.filter = appsync.TaskFilter{}
	m.statusIndex = 0
	m.searchInput.Reset()
	return m.LoadTasks()
}

// LoadTasks returns a tea.Cmd that re-reads the synchronizer with the
// current filter and sort mode.
func (m Model) LoadTasks() tea.Cmd {
	filter := m.filter
	mode := sortModes[m.sortIndex]
	s := m.tasks
	return func() tea.Msg {
		tasks := s.Filter(filter)
		sortTasks(tasks, mode)
		return TasksLoadedMsg{Tasks: tasks}
	}
}

// sortTasks orders tasks in place for display. "created" keeps the
// synchronizer's view order, which is newest first.
func sortTasks(tasks []model.Task, mode string) {
	switch mode {
	case "due":
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].DueAt, tasks[j].DueAt
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Before(*b)
		})
	case "priority":
		sort.SliceStable(tasks, func(i, j int) bool {
			return model.PriorityWeight(tasks[i].Priority) > model.PriorityWeight(tasks[j].Priority)
		})
	case "title":
		sort.SliceStable(tasks, func(i, j int) bool {
			return strings.ToLower(tasks[i].Title) < strings.ToLower(tasks[j].Title)
		})
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
