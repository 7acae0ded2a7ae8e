package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldiaz/taskboard/internal/keys"
	"github.com/ldiaz/taskboard/internal/model"
	"github.com/ldiaz/taskboard/internal/theme"
)

// BackMsg signals the parent to navigate back to the previous view.
type BackMsg struct{}

// AdvanceStatusMsg asks the parent to move the shown task to the next
// status.
type AdvanceStatusMsg struct {
	TaskID string
}

// EditRequestMsg asks the parent to open the edit form for the shown
// task.
type EditRequestMsg struct {
	TaskID string
}

// DeleteRequestMsg asks the parent to delete the shown task.
type DeleteRequestMsg struct {
	TaskID string
}

// Model is the task detail view component.
type Model struct {
	task     *model.Task
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(keyMsg, m.keys.CycleStatus):
			if m.task != nil {
				id := m.task.ID
				return m, func() tea.Msg {
					return AdvanceStatusMsg{TaskID: id}
				}
			}

		case key.Matches(keyMsg, m.keys.EditTask):
			if m.task != nil {
				id := m.task.ID
				return m, func() tea.Msg {
					return EditRequestMsg{TaskID: id}
				}
			}

		case key.Matches(keyMsg, m.keys.DeleteTask):
			if m.task != nil {
				id := m.task.ID
				return m, func() tea.Msg {
					return DeleteRequestMsg{TaskID: id}
				}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.task == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No task selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.task == nil {
		return ""
	}

	t := m.task
	var sections []string

	// Title
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(t.Title))

	// Badges line: status + priority
	statusBadge := theme.StatusStyle(t.Status).Render(t.Status)
	priBadge := theme.PriorityStyle(t.Priority).Render(priorityName(t.Priority))

	badgeLine := lipgloss.JoinHorizontal(lipgloss.Top, statusBadge, "  ", priBadge)
	sections = append(sections, badgeLine)
	sections = append(sections, "")

	// Metadata table
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", metaStyle.Render(label), valStyle.Render(value))
	}

	if name := personLabel(t.CreatorName, t.CreatorID); name != "" {
		sections = append(sections, row("Creator: ", name))
	}
	if name := personLabel(t.AssigneeName, t.AssigneeID); name != "" {
		sections = append(sections, row("Assignee:", name))
	}
	if !t.CreatedAt.IsZero() {
		sections = append(sections, row("Created: ", t.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	if t.UpdatedAt != nil {
		sections = append(sections, row("Updated: ", t.UpdatedAt.Local().Format("2006-01-02 15:04")))
	}
	if t.DueAt != nil {
		due := t.DueAt.Local().Format("2006-01-02")
		if t.IsOverdue(time.Now()) {
			due += theme.OverdueStyle.Render("  OVERDUE")
		}
		sections = append(sections, row("Due:     ", due))
	}

	// Separator
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
	sections = append(sections, "", separator, "")

	// Description
	descHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections = append(sections, descHeaderStyle.Render("Description"))

	body := t.Description
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetTask updates the task being displayed and re-renders the content.
func (m *Model) SetTask(t model.Task) {
	m.task = &t
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Refresh re-renders the content if the shown task changed underneath
// us. Returns false when the task is gone from the view.
func (m *Model) Refresh(lookup func(id string) (model.Task, bool)) bool {
	if m.task == nil {
		return true
	}
	t, ok := lookup(m.task.ID)
	if !ok {
		return false
	}
	m.task = &t
	m.viewport.SetContent(m.renderContent())
	return true
}

// TaskID returns the id of the task being shown, or "".
func (m Model) TaskID() string {
	if m.task == nil {
		return ""
	}
	return m.task.ID
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

// personLabel prefers the display name, falling back to the id.
func personLabel(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

// priorityName returns a human-readable name for the priority.
func priorityName(p string) string {
	switch p {
	case model.PriorityHigh:
		return "High"
	case model.PriorityMedium:
		return "Medium"
	case model.PriorityLow:
		return "Low"
	default:
		return p
	}
}
