package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"quorum/internal/event"
	"quorum/internal/store/sqlite"
)

func testEvents() []sqlite.Event {
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	return []sqlite.Event{
		{RoundID: "r-1", Seq: 1, Type: event.TypeAnswerCommitted, AgentID: "agent_1",
			Payload: map[string]any{"seq": 1, "content": "first draft"}, CreatedAt: at},
		{RoundID: "r-1", Seq: 2, Type: event.TypeRestartSignaled, AgentID: "agent_1",
			Payload: map[string]any{"debate_round": 1, "affected": []any{"agent_1", "agent_2"}}, CreatedAt: at},
		{RoundID: "r-1", Seq: 3, Type: event.TypeRestartCompleted, AgentID: "agent_2",
			Payload: map[string]any{}, CreatedAt: at},
		{RoundID: "r-1", Seq: 4, Type: event.TypeVoteCast, AgentID: "agent_2",
			Payload: map[string]any{"target": "agent_1", "stale": false}, CreatedAt: at},
		{RoundID: "r-1", Seq: 5, Type: event.TypeAgentErrored, AgentID: "agent_3",
			Payload: map[string]any{"attempt": 1, "error": "boom", "exhausted": true}, CreatedAt: at},
	}
}

func testRound() sqlite.Round {
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	completed := started.Add(95 * time.Second)
	return sqlite.Round{
		ID: "r-1", Task: "pick a greeting", WinnerAgent: "agent_1",
		Reason: "consensus", Iterations: 5, DebateRounds: 1,
		StartedAt: started, CompletedAt: &completed,
	}
}

func TestCursorNavigation(t *testing.T) {
	m := NewModel(testRound(), testEvents(), MonoTheme(), 0)

	key := func(s string) tea.KeyMsg {
		if len(s) == 1 {
			return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
		}
		switch s {
		case "down":
			return tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			return tea.KeyMsg{Type: tea.KeyUp}
		default:
			t.Fatalf("unknown key %q", s)
			return tea.KeyMsg{}
		}
	}

	step := func(msg tea.Msg) {
		updated, _ := m.Update(msg)
		m = updated.(Model)
	}

	step(key("down"))
	step(key("down"))
	if m.cursor != 2 {
		t.Errorf("cursor = %d after two downs, want 2", m.cursor)
	}

	step(key("up"))
	if m.cursor != 1 {
		t.Errorf("cursor = %d after up, want 1", m.cursor)
	}

	step(key("G"))
	if m.cursor != 4 {
		t.Errorf("cursor = %d after G, want 4 (last row)", m.cursor)
	}
	step(key("down"))
	if m.cursor != 4 {
		t.Errorf("cursor = %d, down past end should clamp", m.cursor)
	}

	step(key("g"))
	if m.cursor != 0 {
		t.Errorf("cursor = %d after g, want 0", m.cursor)
	}
	step(key("up"))
	if m.cursor != 0 {
		t.Errorf("cursor = %d, up past start should clamp", m.cursor)
	}
}

func TestQuitKeys(t *testing.T) {
	m := NewModel(testRound(), testEvents(), MonoTheme(), 0)
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Errorf("key %v did not quit", msg)
		}
	}
}

func TestStatusesFollowCursor(t *testing.T) {
	m := NewModel(testRound(), testEvents(), MonoTheme(), 0)

	// At the first event only agent_1 has acted.
	statuses := m.statusesAtCursor()
	if statuses["agent_1"] != "answered" {
		t.Errorf("agent_1 = %q at seq 1, want answered", statuses["agent_1"])
	}

	m.cursor = len(m.events) - 1
	statuses = m.statusesAtCursor()
	if statuses["agent_1"] != "answered" {
		t.Errorf("agent_1 = %q, want answered", statuses["agent_1"])
	}
	if statuses["agent_2"] != "voted" {
		t.Errorf("agent_2 = %q, want voted", statuses["agent_2"])
	}
	if statuses["agent_3"] != "errored" {
		t.Errorf("agent_3 = %q, want errored", statuses["agent_3"])
	}
}

func TestStaleVoteDoesNotChangeStatus(t *testing.T) {
	events := []sqlite.Event{
		{Seq: 1, Type: event.TypeRestartCompleted, AgentID: "agent_2", Payload: map[string]any{}},
		{Seq: 2, Type: event.TypeVoteCast, AgentID: "agent_2",
			Payload: map[string]any{"target": "agent_1", "stale": true}},
	}
	m := NewModel(testRound(), events, MonoTheme(), 0)
	m.cursor = 1

	if got := m.statusesAtCursor()["agent_2"]; got != "streaming" {
		t.Errorf("agent_2 = %q after stale vote, want streaming", got)
	}
}

func TestViewRendersTimeline(t *testing.T) {
	m := NewModel(testRound(), testEvents(), MonoTheme(), 0)
	m.width = 120
	m.height = 40

	out := m.View()
	for _, want := range []string{
		"round r-1",
		"pick a greeting",
		"agent_1 won (consensus) in 1m 35s",
		"voted → agent_1",
		"debate round 1",
		"[budget exhausted]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestTimelineLimitKeepsMostRecent(t *testing.T) {
	m := NewModel(testRound(), testEvents(), MonoTheme(), 2)
	if len(m.events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(m.events))
	}
	if m.events[0].Seq != 4 || m.events[1].Seq != 5 {
		t.Errorf("kept seqs = %d,%d, want 4,5", m.events[0].Seq, m.events[1].Seq)
	}
}

func TestStatusIcons(t *testing.T) {
	tests := map[string]string{
		"idle":      IconIdle,
		"streaming": IconStreaming,
		"answered":  IconAnswered,
		"voted":     IconVoted,
		"errored":   IconErrored,
		"unknown":   IconIdle,
	}
	for status, want := range tests {
		if got := StatusIcon(status); got != want {
			t.Errorf("StatusIcon(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{130 * time.Second, "2m 10s"},
		{3*time.Hour + 3*time.Minute, "3h 3m"},
		{-5 * time.Second, "0s"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.d); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
