// Package tui renders a recorded coordination round: a per-agent status
// sidebar next to a scrollable event timeline. The model is read-only; it
// replays rows loaded from the sqlite store and derives agent state from the
// events preceding the cursor, so scrolling through the timeline scrubs
// through the round's history.
package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quorum/internal/event"
	"quorum/internal/store/sqlite"
)

const sidebarWidth = 24

// Model is the bubbletea model for the round viewer.
type Model struct {
	round  sqlite.Round
	events []sqlite.Event
	theme  Theme

	cursor int // selected timeline row
	offset int // first visible timeline row
	width  int
	height int
}

// NewModel creates a viewer for one recorded round. When limit is positive
// only the most recent limit events are kept.
func NewModel(round sqlite.Round, events []sqlite.Event, theme Theme, limit int) Model {
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return Model{
		round:  round,
		events: events,
		theme:  theme,
		width:  100,
		height: 30,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.moveCursor(-1)
		case "down", "j":
			m.moveCursor(1)
		case "pgup":
			m.moveCursor(-m.timelineHeight())
		case "pgdown":
			m.moveCursor(m.timelineHeight())
		case "g", "home":
			m.cursor = 0
			m.clampScroll()
		case "G", "end":
			m.cursor = len(m.events) - 1
			m.clampScroll()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.events) {
		m.cursor = len(m.events) - 1
	}
	m.clampScroll()
}

func (m *Model) clampScroll() {
	if m.cursor < 0 {
		m.cursor = 0
	}
	h := m.timelineHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// timelineHeight is the number of visible timeline rows.
func (m Model) timelineHeight() int {
	h := m.height - 4 // header, separator, footer
	if h < 1 {
		h = 1
	}
	return h
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderSidebar(),
		m.renderTimeline(),
	)
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.theme.Muted.Render("j/k scroll · g/G first/last · q quit"))
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.Title.Render("round " + m.round.ID)
	task := m.round.Task
	if len(task) > 60 {
		task = task[:57] + "..."
	}

	outcome := "in flight"
	if m.round.CompletedAt != nil {
		outcome = fmt.Sprintf("%s won (%s) in %s",
			m.theme.Winner.Render(m.round.WinnerAgent),
			m.round.Reason,
			FormatElapsed(m.round.CompletedAt.Sub(m.round.StartedAt)))
	}

	return title + "  " + m.theme.Header.Render(task) + "\n" + m.theme.Header.Render(outcome)
}

func (m Model) renderSidebar() string {
	statuses := m.statusesAtCursor()
	ids := make([]string, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var lines []string
	for _, id := range ids {
		status := statuses[id]
		icon := StatusIcon(status)
		if status == "errored" {
			icon = m.theme.Error.Render(icon)
		}
		lines = append(lines, fmt.Sprintf("%s %s", icon, m.theme.AgentID.Render(id)))
	}
	if len(lines) == 0 {
		lines = []string{m.theme.Muted.Render("no agents")}
	}
	return m.theme.Sidebar.Width(sidebarWidth).Render(strings.Join(lines, "\n"))
}

func (m Model) renderTimeline() string {
	if len(m.events) == 0 {
		return m.theme.Muted.Render("no events recorded")
	}

	h := m.timelineHeight()
	end := m.offset + h
	if end > len(m.events) {
		end = len(m.events)
	}

	var lines []string
	for i := m.offset; i < end; i++ {
		line := m.renderEvent(m.events[i])
		if i == m.cursor {
			line = m.theme.Selected.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEvent(e sqlite.Event) string {
	ts := e.CreatedAt.Format("15:04:05")
	prefix := fmt.Sprintf("%4d %s %-10s", e.Seq, m.theme.Muted.Render(ts), e.AgentID)

	switch e.Type {
	case event.TypeAnswerCommitted:
		return fmt.Sprintf("%s answered #%v: %s", prefix, e.Payload["seq"], snippet(e.Payload, "content", 48))
	case event.TypeVoteCast:
		line := fmt.Sprintf("%s voted → %v", prefix, e.Payload["target"])
		if e.Payload["stale"] == true {
			return m.theme.Stale.Render(line + " (stale)")
		}
		return line
	case event.TypeRestartSignaled:
		return fmt.Sprintf("%s debate round %v: all answers back in play", prefix, e.Payload["debate_round"])
	case event.TypeRestartCompleted:
		return prefix + " restarted"
	case event.TypeAgentErrored:
		line := fmt.Sprintf("%s errored (attempt %v): %s", prefix, e.Payload["attempt"], snippet(e.Payload, "error", 40))
		if e.Payload["exhausted"] == true {
			line += " [budget exhausted]"
		}
		return m.theme.Error.Render(line)
	case event.TypeContent:
		return m.theme.Muted.Render(fmt.Sprintf("%s … %s", prefix, snippet(e.Payload, "content", 48)))
	default:
		return prefix + " " + e.Type
	}
}

// statusesAtCursor derives each agent's status from the events up to and
// including the cursor, so the sidebar tracks the timeline position.
func (m Model) statusesAtCursor() map[string]string {
	statuses := make(map[string]string)
	seen := func(id string) {
		if id == "" {
			return
		}
		if _, ok := statuses[id]; !ok {
			statuses[id] = "idle"
		}
	}

	for i := 0; i <= m.cursor && i < len(m.events); i++ {
		e := m.events[i]
		seen(e.AgentID)
		if affected, ok := e.Payload["affected"].([]any); ok {
			for _, a := range affected {
				if id, ok := a.(string); ok {
					seen(id)
				}
			}
		}

		switch e.Type {
		case event.TypeContent:
			statuses[e.AgentID] = "streaming"
		case event.TypeAnswerCommitted:
			statuses[e.AgentID] = "answered"
		case event.TypeVoteCast:
			if e.Payload["stale"] != true {
				statuses[e.AgentID] = "voted"
			}
		case event.TypeRestartCompleted:
			statuses[e.AgentID] = "streaming"
		case event.TypeAgentErrored:
			statuses[e.AgentID] = "errored"
		}
	}
	return statuses
}

// RenderTranscript renders a full round non-interactively: header followed
// by every event on its own line. The replay command uses it for plain
// stdout output.
func RenderTranscript(round sqlite.Round, events []sqlite.Event, theme Theme) string {
	m := Model{round: round, events: events, theme: theme}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	for _, e := range events {
		b.WriteString(m.renderEvent(e))
		b.WriteString("\n")
	}
	return b.String()
}

func snippet(payload map[string]any, key string, max int) string {
	s, _ := payload[key].(string)
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
