// Package dropdown is the bubbletea view of the notification inbox: a bell
// with an unread badge that opens into the newest notifications.
package dropdown

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/01moynul/servehub/internal/inbox"
	"github.com/01moynul/servehub/internal/models"
	"github.com/01moynul/servehub/internal/theme"
)

// renderInterval re-renders so poller updates and relative times show up.
const renderInterval = time.Second

type (
	// inboxDoneMsg is sent when an inbox operation returns.
	inboxDoneMsg struct{}
	clickedMsg   struct{ outcome inbox.ClickOutcome }
	renderMsg    time.Time
	loggedOutMsg struct{ err error }
)

// Options configures the model.
type Options struct {
	// Navigate is called with the action URL of a clicked notification.
	Navigate func(url string)
	// Logout clears the stored session.
	Logout func() error
	// Now is the clock used for relative timestamps.
	Now func() time.Time
}

// Model is the dropdown.
type Model struct {
	inbox  *inbox.Inbox
	poller *inbox.Poller
	opts   Options

	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	cursor    int
	status    string
	width     int
	loggedOut bool
	expired   bool
}

// New creates the dropdown model. The poller's lifecycle belongs to the caller.
func New(box *inbox.Inbox, poller *inbox.Poller, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)
	return Model{
		inbox:   box,
		poller:  poller,
		opts:    opts,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		width:   60,
	}
}

// LoggedOut reports whether the user chose to log out before quitting.
func (m Model) LoggedOut() bool {
	return m.loggedOut
}

// SessionExpired reports whether the program quit because the server
// rejected the session.
func (m Model) SessionExpired() bool {
	return m.expired
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, renderTick())
}

func renderTick() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg { return renderMsg(t) })
}

// Update handles messages for the dropdown.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case renderMsg:
		if m.inbox.Snapshot().SessionExpired {
			m.expired = true
			return m, tea.Quit
		}
		m.clampCursor()
		return m, renderTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case inboxDoneMsg:
		m.clampCursor()
		return m, nil

	case clickedMsg:
		if msg.outcome.NavigateTo != "" {
			m.status = "Opening " + msg.outcome.NavigateTo
			if m.opts.Navigate != nil {
				m.opts.Navigate(msg.outcome.NavigateTo)
			}
		}
		m.clampCursor()
		return m, nil

	case loggedOutMsg:
		if msg.err != nil {
			m.status = "Logout failed: " + msg.err.Error()
			return m, nil
		}
		m.loggedOut = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.inbox.Snapshot()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Logout):
		logout := m.opts.Logout
		return m, func() tea.Msg {
			if logout == nil {
				return loggedOutMsg{}
			}
			return loggedOutMsg{err: logout()}
		}

	case key.Matches(msg, m.keys.Toggle):
		m.status = ""
		m.cursor = 0
		return m, m.run(func(ctx context.Context) { m.inbox.Toggle(ctx) })

	case key.Matches(msg, m.keys.Refresh):
		return m, m.run(func(ctx context.Context) { m.poller.Poll(ctx) })
	}

	if !view.Open {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Close):
		m.inbox.Close()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(view.Notifications)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Select):
		if n, ok := selected(view, m.cursor); ok {
			box := m.inbox
			return m, func() tea.Msg {
				return clickedMsg{outcome: box.Click(context.Background(), n.ID)}
			}
		}

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.run(func(ctx context.Context) { m.inbox.MarkAllRead(ctx) })

	case key.Matches(msg, m.keys.Delete):
		if n, ok := selected(view, m.cursor); ok {
			return m, m.run(func(ctx context.Context) { m.inbox.Delete(ctx, n.ID) })
		}
	}
	return m, nil
}

// run executes op off the UI goroutine and reports back when it returns.
func (m Model) run(op func(ctx context.Context)) tea.Cmd {
	return func() tea.Msg {
		op(context.Background())
		return inboxDoneMsg{}
	}
}

func (m *Model) clampCursor() {
	n := len(m.inbox.Snapshot().Notifications)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func selected(view inbox.View, cursor int) (models.Notification, bool) {
	if cursor < 0 || cursor >= len(view.Notifications) {
		return models.Notification{}, false
	}
	return view.Notifications[cursor], true
}

// View renders the bell, and the panel when open.
func (m Model) View() string {
	view := m.inbox.Snapshot()

	var b strings.Builder
	b.WriteString(m.bell(view))
	b.WriteString("\n")

	if view.Open {
		b.WriteString(m.panel(view))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(theme.MutedStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(theme.HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) bell(view inbox.View) string {
	bell := theme.HeaderStyle.Render("🔔 Notifications")
	if view.UnreadCount <= 0 {
		return bell
	}
	count := fmt.Sprint(view.UnreadCount)
	if view.UnreadCount > 99 {
		count = "99+"
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, bell, " ", theme.BadgeStyle.Render(count))
}

func (m Model) panel(view inbox.View) string {
	width := m.width - 4
	if width < 30 {
		width = 30
	}

	var rows []string
	if view.Loading {
		rows = append(rows, m.spinner.View()+" Loading…")
	}
	switch {
	case len(view.Notifications) == 0:
		if !view.Loading {
			rows = append(rows, theme.MutedStyle.Render("No notifications yet"))
		}
	default:
		if view.UnreadCount > 0 {
			rows = append(rows, theme.MutedStyle.Render(fmt.Sprintf("%d unread · press a to mark all read", view.UnreadCount)))
		}
		now := m.opts.Now()
		for idx, n := range view.Notifications {
			rows = append(rows, renderItem(n, idx == m.cursor, now, width-4))
		}
	}
	return theme.PanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderItem draws one notification row.
func renderItem(n models.Notification, focused bool, now time.Time, width int) string {
	titleStyle := theme.ReadTitleStyle
	marker := " "
	if !n.Read {
		titleStyle = theme.UnreadTitleStyle
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	}

	header := fmt.Sprintf("%s %s %s", marker, AppearanceFor(n.Type).Render(), titleStyle.Render(n.Title))
	message := lipgloss.NewStyle().Width(width).Render(n.Message)

	meta := humanize.RelTime(n.CreatedAt, now, "ago", "from now")
	if n.Sender != nil && n.Sender.Name != "" {
		meta = n.Sender.Name + " · " + meta
	}
	body := lipgloss.JoinVertical(lipgloss.Left, header, message, theme.MutedStyle.Render(meta))

	if focused {
		return theme.SelectedItemStyle.Render(body)
	}
	return theme.ItemStyle.Render(body)
}
