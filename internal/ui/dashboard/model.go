package dashboard

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldiaz/taskboard/internal/model"
	appsync "github.com/ldiaz/taskboard/internal/sync"
	"github.com/ldiaz/taskboard/internal/theme"
)

// dueSoonWindow bounds the "coming up" panel.
const dueSoonWindow = 7 * 24 * time.Hour

// LoadedMsg carries a fresh snapshot of the numbers the dashboard
// shows.
type LoadedMsg struct {
	Counts  map[string]int
	DueSoon []model.Task
	Overdue int
	Unread  int
}

// Model is the dashboard view component.
type Model struct {
	tasks         *appsync.TaskSync
	notifications *appsync.NotificationSync
	counts        map[string]int
	dueSoon       []model.Task
	overdue       int
	unread        int
	width         int
	height        int
}

// New creates a dashboard reading from both synchronizers.
func New(tasks *appsync.TaskSync, notifications *appsync.NotificationSync, width, height int) Model {
	return Model{
		tasks:         tasks,
		notifications: notifications,
		counts:        make(map[string]int),
		width:         width,
		height:        height,
	}
}

// Init returns a command that loads the dashboard numbers.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Update handles messages for the dashboard.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if loaded, ok := msg.(LoadedMsg); ok {
		m.counts = loaded.Counts
		m.dueSoon = loaded.DueSoon
		m.overdue = loaded.Overdue
		m.unread = loaded.Unread
	}
	return m, nil
}

// Load returns a tea.Cmd that re-reads both synchronizers.
func (m Model) Load() tea.Cmd {
	tasks := m.tasks
	notifications := m.notifications
	return func() tea.Msg {
		overdue := len(tasks.Filter(appsync.TaskFilter{OverdueOnly: true}))
		return LoadedMsg{
			Counts:  tasks.StatusCounts(),
			DueSoon: tasks.DueSoon(dueSoonWindow),
			Overdue: overdue,
			Unread:  notifications.UnreadCount(),
		}
	}
}

// View renders the dashboard.
func (m Model) View() string {
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render("Board"), "")
	sections = append(sections, m.renderCounts(), "")
	sections = append(sections, titleStyle.Render("Coming up (7 days)"), "")
	sections = append(sections, m.renderDueSoon())

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Render(content)
}

// renderCounts draws the status buckets plus the overdue and unread
// tallies.
func (m Model) renderCounts() string {
	total := 0
	for _, c := range m.counts {
		total += c
	}

	cell := func(label string, count int, style lipgloss.Style) string {
		return theme.BorderStyle.
			Padding(0, 2).
			Render(fmt.Sprintf("%s\n%s", style.Render(fmt.Sprintf("%d", count)), label))
	}

	countStyle := lipgloss.NewStyle().Bold(true)

	cells := []string{
		cell("total", total, countStyle.Foreground(theme.ColorWhite)),
		cell("todo", m.counts[model.StatusNotStarted], countStyle.Foreground(theme.ColorBlue)),
		cell("doing", m.counts[model.StatusInProgress], countStyle.Foreground(theme.ColorYellow)),
		cell("done", m.counts[model.StatusDone], countStyle.Foreground(theme.ColorGreen)),
		cell("overdue", m.overdue, countStyle.Foreground(theme.ColorRed)),
		cell("unread", m.unread, countStyle.Foreground(theme.ColorMagenta)),
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// renderDueSoon draws the tasks with a deadline inside the window,
// soonest first.
func (m Model) renderDueSoon() string {
	if len(m.dueSoon) == 0 {
		return lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Render("Nothing due this week.")
	}

	dateStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var lines []string
	for _, t := range m.dueSoon {
		pri := theme.PriorityStyle(t.Priority).Render("▪")
		line := fmt.Sprintf("%s %s  %s", pri, t.Title, dateStyle.Render(t.DueAt.Format("Mon Jan 02")))
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
