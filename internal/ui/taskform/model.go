package taskform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldiaz/taskboard/internal/model"
	appsync "github.com/ldiaz/taskboard/internal/sync"
	"github.com/ldiaz/taskboard/internal/theme"
)

// TaskCreatedMsg is dispatched when a new task is submitted via the
// form. The task still needs to go through the synchronizer.
type TaskCreatedMsg struct {
	Task model.Task
}

// TaskEditedMsg is dispatched when an edit is submitted. Patch holds
// the changed fields; NewStatus is empty when the status did not
// change.
type TaskEditedMsg struct {
	TaskID    string
	Patch     appsync.TaskPatch
	NewStatus string
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's
// Value() pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	priority    string
	dueDate     string
	assigneeID  string
	status      string
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editMode bool
	original model.Task
	profiles []model.Profile
	width    int
	height   int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{priority: model.PriorityMedium},
		width:  width,
		height: height,
	}
}

// SetProfiles sets the user directory used by the assignee selector.
func (m *Model) SetProfiles(profiles []model.Profile) {
	m.profiles = profiles
}

// StartCreate initializes the form for creating a new task.
func (m *Model) StartCreate() tea.Cmd {
	m.editMode = false
	m.original = model.Task{}
	m.fb.title = ""
	m.fb.description = ""
	m.fb.priority = model.PriorityMedium
	m.fb.dueDate = ""
	m.fb.assigneeID = ""
	m.fb.status = model.StatusNotStarted
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form for editing an existing task.
func (m *Model) StartEdit(t model.Task) tea.Cmd {
	m.editMode = true
	m.original = t
	m.fb.title = t.Title
	m.fb.description = t.Description
	m.fb.priority = t.Priority
	m.fb.status = t.Status
	m.fb.assigneeID = t.AssigneeID
	if t.DueAt != nil {
		m.fb.dueDate = t.DueAt.Format("2006-01-02")
	} else {
		m.fb.dueDate = ""
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	if m.editMode {
		titleText = "Edit Task"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("What needs doing?").
			Value(&m.fb.title).
			Validate(validateRequired("Title")),
		huh.NewText().
			Title("Description").
			Placeholder("Optional details...").
			Value(&m.fb.description),
		huh.NewSelect[string]().
			Title("Priority").
			Options(
				huh.NewOption("High", model.PriorityHigh),
				huh.NewOption("Medium", model.PriorityMedium),
				huh.NewOption("Low", model.PriorityLow),
			).
			Value(&m.fb.priority),
		huh.NewInput().
			Title("Due Date").
			Placeholder("YYYY-MM-DD (optional)").
			Value(&m.fb.dueDate).
			Validate(validateOptionalDate),
		m.assigneeField(),
	}

	if m.editMode {
		fields = append(fields,
			huh.NewSelect[string]().
				Title("Status").
				Options(
					huh.NewOption("Not started", model.StatusNotStarted),
					huh.NewOption("In progress", model.StatusInProgress),
					huh.NewOption("Done", model.StatusDone),
				).
				Value(&m.fb.status),
		)
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m *Model) assigneeField() huh.Field {
	opts := []huh.Option[string]{
		huh.NewOption("Unassigned", ""),
	}
	for _, p := range m.profiles {
		opts = append(opts, huh.NewOption(p.DisplayName, p.ID))
	}
	return huh.NewSelect[string]().
		Title("Assignee").
		Options(opts...).
		Value(&m.fb.assigneeID)
}

func (m Model) handleSubmit() tea.Cmd {
	if m.editMode {
		return m.submitEdit()
	}
	return m.submitCreate()
}

func (m Model) submitCreate() tea.Cmd {
	t := model.Task{
		Title:        m.fb.title,
		Description:  m.fb.description,
		Priority:     m.fb.priority,
		AssigneeID:   m.fb.assigneeID,
		AssigneeName: m.profileName(m.fb.assigneeID),
	}

	if due, ok := parseDue(m.fb.dueDate); ok {
		t.DueAt = &due
	}

	return func() tea.Msg { return TaskCreatedMsg{Task: t} }
}

// submitEdit diffs the bindings against the task being edited and
// emits only the changed fields.
func (m Model) submitEdit() tea.Cmd {
	var patch appsync.TaskPatch

	if m.fb.title != m.original.Title {
		v := m.fb.title
		patch.Title = &v
	}
	if m.fb.description != m.original.Description {
		v := m.fb.description
		patch.Description = &v
	}
	if m.fb.priority != m.original.Priority {
		v := m.fb.priority
		patch.Priority = &v
	}
	if m.fb.assigneeID != m.original.AssigneeID {
		id := m.fb.assigneeID
		name := m.profileName(id)
		patch.AssigneeID = &id
		patch.AssigneeName = &name
	}

	due, hasDue := parseDue(m.fb.dueDate)
	switch {
	case hasDue && (m.original.DueAt == nil || !m.original.DueAt.Equal(due)):
		patch.DueAt = &due
	case !hasDue && m.original.DueAt != nil:
		patch.ClearDue = true
	}

	newStatus := ""
	if m.fb.status != m.original.Status {
		newStatus = m.fb.status
	}

	taskID := m.original.ID
	return func() tea.Msg {
		return TaskEditedMsg{TaskID: taskID, Patch: patch, NewStatus: newStatus}
	}
}

// profileName resolves an assignee id against the loaded directory.
func (m Model) profileName(id string) string {
	if id == "" {
		return ""
	}
	for _, p := range m.profiles {
		if p.ID == id {
			return p.DisplayName
		}
	}
	return ""
}

func parseDue(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	_, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}
