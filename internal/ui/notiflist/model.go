package notiflist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldiaz/taskboard/internal/keys"
	"github.com/ldiaz/taskboard/internal/model"
	appsync "github.com/ldiaz/taskboard/internal/sync"
	"github.com/ldiaz/taskboard/internal/theme"
)

// NotificationsLoadedMsg is sent when the feed view has been re-read
// from the synchronizer.
type NotificationsLoadedMsg struct {
	Notifications []model.Notification
}

// OpenTaskMsg asks the parent to open the task a notification points
// at. The reference is weak; the task may no longer exist.
type OpenTaskMsg struct {
	NotificationID string
	TaskID         string
}

// MarkReadMsg asks the parent to mark one notification read.
type MarkReadMsg struct {
	NotificationID string
}

// MarkAllReadMsg asks the parent to mark the whole feed read.
type MarkAllReadMsg struct{}

// Model is the notification feed view component.
type Model struct {
	list          list.Model
	notifications *appsync.NotificationSync
	keys          *keys.KeyMap
	unreadOnly    bool
	width         int
	height        int
}

// New creates a new notification feed model reading from the given
// synchronizer.
func New(notifications *appsync.NotificationSync, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:          l,
		notifications: notifications,
		keys:          k,
		width:         width,
		height:        height,
	}
}

// Init returns a command that loads the feed.
func (m Model) Init() tea.Cmd {
	return m.LoadNotifications()
}

// Update handles messages for the notification feed view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case NotificationsLoadedMsg:
		items := make([]list.Item, len(msg.Notifications))
		for i, n := range msg.Notifications {
			items[i] = NotificationItem{Notification: n}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Select):
			item, ok := m.list.SelectedItem().(NotificationItem)
			if !ok {
				return m, nil
			}
			n := item.Notification
			return m, func() tea.Msg {
				return OpenTaskMsg{NotificationID: n.ID, TaskID: n.TaskID}
			}

		case key.Matches(msg, m.keys.MarkRead):
			item, ok := m.list.SelectedItem().(NotificationItem)
			if !ok {
				return m, nil
			}
			id := item.Notification.ID
			return m, func() tea.Msg {
				return MarkReadMsg{NotificationID: id}
			}

		case key.Matches(msg, m.keys.MarkAllRead):
			return m, func() tea.Msg {
				return MarkAllReadMsg{}
			}

		case key.Matches(msg, m.keys.FilterUnread):
			m.unreadOnly = !m.unreadOnly
			return m, m.LoadNotifications()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the notification feed.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		style := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)

		if m.unreadOnly {
			return style.Render("No unread notifications.")
		}
		return style.Render("No notifications.")
	}

	return m.list.View()
}

// UnreadOnly reports whether the unread-only filter is active.
func (m Model) UnreadOnly() bool {
	return m.unreadOnly
}

// LoadNotifications returns a tea.Cmd that re-reads the synchronizer
// with the current filter.
func (m Model) LoadNotifications() tea.Cmd {
	unreadOnly := m.unreadOnly
	s := m.notifications
	return func() tea.Msg {
		items := s.Filter(appsync.NotificationFilter{UnreadOnly: unreadOnly})
		return NotificationsLoadedMsg{Notifications: items}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
