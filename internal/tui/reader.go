// Package tui renders a news feed in the terminal. The list asks the feed for every row it
// draws, so reaching the loading row at the bottom pulls in the next page.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/feed"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultHeight = 20

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle    = lipgloss.NewStyle().Bold(true).Reverse(true)
	publisherStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	placeholderStyle = lipgloss.NewStyle().Faint(true)
	loadingStyle     = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("39"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// FeedEventMsg carries one feed event into the update loop. Closed is set once the
// feed stops sending events.
type FeedEventMsg struct {
	Event  feed.Event[domain.Article]
	Closed bool
}

// LoadDoneMsg reports the outcome of a refresh or next page load started by a key.
type LoadDoneMsg struct {
	Op  string
	Err error
}

// Model is the bubbletea model of the reader.
type Model struct {
	title  string
	feed   *domain.ArticleFeed
	events <-chan feed.Event[domain.Article]

	items    []domain.Article
	page     int
	loading  bool
	hasMore  bool
	cursor   int
	offset   int
	height   int
	width    int
	status   string
	lastErr  error
	quitting bool
}

// NewModel creates a reader over f. The model subscribes to f; closing f ends the
// subscription.
func NewModel(title string, f *domain.ArticleFeed) Model {
	events, _ := f.Subscribe()
	snap := f.Snapshot()
	return Model{
		title:   title,
		feed:    f,
		events:  events,
		items:   snap.Items,
		page:    snap.CurrentPage,
		loading: snap.Loading,
		hasMore: snap.HasMore,
		height:  defaultHeight,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.load("refresh", m.feed.Refresh))
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		return FeedEventMsg{Event: ev, Closed: !ok}
	}
}

func (m Model) load(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return LoadDoneMsg{Op: op, Err: fn(context.Background())}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case FeedEventMsg:
		if msg.Closed {
			return m, nil
		}
		m.apply(msg.Event)
		m.touchVisible()
		return m, m.waitForEvent()

	case LoadDoneMsg:
		// Failures already arrived as events. A busy feed is already loading what was asked.
		if msg.Err != nil && !errors.Is(msg.Err, feed.ErrBusy) && m.lastErr == nil {
			m.status = fmt.Sprintf("%s: %v", msg.Op, msg.Err)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = max(msg.Height-4, 1)
		m.scroll()
		m.touchVisible()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.status = "refreshing"
			return m, m.load("refresh", m.feed.Refresh)
		case "n":
			// Explicit retry after a failed background load.
			m.status = "loading more"
			return m, m.load("next", m.feed.LoadNextPage)
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < m.rows()-1 {
				m.cursor++
			}
		case "pgdown":
			m.cursor = min(m.cursor+m.height, max(m.rows()-1, 0))
		case "pgup":
			m.cursor = max(m.cursor-m.height, 0)
		case "home", "g":
			m.cursor = 0
		}
		m.scroll()
		m.touchVisible()
	}
	return m, nil
}

func (m *Model) apply(ev feed.Event[domain.Article]) {
	m.items = ev.Snapshot.Items
	m.page = ev.Snapshot.CurrentPage
	m.loading = ev.Snapshot.Loading
	m.hasMore = ev.Snapshot.HasMore

	switch ev.Kind {
	case feed.EventFetchFailed:
		m.lastErr = ev.Err
		m.status = "load failed, press n to retry"
	case feed.EventRefreshed:
		m.lastErr = nil
		m.status = ""
		m.cursor, m.offset = 0, 0
	case feed.EventAppended:
		m.lastErr = nil
		m.status = ""
	case feed.EventExhausted:
		m.lastErr = nil
		m.status = "no more stories"
	}
	m.cursor = min(m.cursor, max(m.rows()-1, 0))
	m.scroll()
}

// rows counts the article rows plus the trailing loading row.
func (m Model) rows() int {
	if m.hasMore {
		return len(m.items) + 1
	}
	return len(m.items)
}

func (m *Model) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

func (m Model) lastVisible() int {
	return min(m.offset+m.height, m.rows()) - 1
}

// touchVisible tells the feed which rows are on screen, as a list view does when it
// asks for its cells.
func (m Model) touchVisible() {
	last := m.lastVisible()
	if last < 0 {
		return
	}
	if last == len(m.items) {
		m.feed.RequestItemAt(last)
	}
	m.feed.NearEnd(last)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString(publisherStyle.Render(fmt.Sprintf("  page %d · %d stories", m.page, len(m.items))))
	b.WriteString("\n\n")

	if m.rows() == 0 {
		b.WriteString(placeholderStyle.Render("No stories."))
		b.WriteString("\n")
	}
	for i := m.offset; i <= m.lastVisible(); i++ {
		b.WriteString(m.renderRow(i))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		style := helpStyle
		if m.lastErr != nil {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("  ")
	}
	b.WriteString(helpStyle.Render("↑/↓ move · r refresh · n load more · q quit"))
	return b.String()
}

func (m Model) renderRow(i int) string {
	if i >= len(m.items) {
		return loadingStyle.Render("  Loading more stories…")
	}

	a := m.items[i]
	image := "[img]"
	if a.Image() == domain.PlaceholderImage {
		image = placeholderStyle.Render("[ · ]")
	}
	line := fmt.Sprintf("%s %s", image, a.Title)
	if a.Publisher != "" {
		line += publisherStyle.Render("  " + a.Publisher)
	}
	if m.width > 0 {
		line = lipgloss.NewStyle().MaxWidth(m.width - 2).Render(line)
	}

	if i == m.cursor {
		return selectedStyle.Render("> " + line)
	}
	return "  " + line
}
