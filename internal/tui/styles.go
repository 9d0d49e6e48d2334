package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Agent status icons shown in the sidebar.
const (
	IconIdle      = "○"
	IconStreaming = "●"
	IconAnswered  = "⏱"
	IconVoted     = "✓"
	IconErrored   = "✗"
)

// StatusIcon returns the sidebar icon for an agent status.
func StatusIcon(status string) string {
	switch status {
	case "streaming":
		return IconStreaming
	case "answered":
		return IconAnswered
	case "voted":
		return IconVoted
	case "errored":
		return IconErrored
	default:
		return IconIdle
	}
}

// Theme bundles the lipgloss styles used by the viewer.
type Theme struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	AgentID  lipgloss.Style
	Event    lipgloss.Style
	Selected lipgloss.Style
	Stale    lipgloss.Style
	Error    lipgloss.Style
	Winner   lipgloss.Style
	Muted    lipgloss.Style
	Sidebar  lipgloss.Style
}

// DefaultTheme returns the colored theme.
func DefaultTheme() Theme {
	return Theme{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Header:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		AgentID:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Event:    lipgloss.NewStyle(),
		Selected: lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("236")),
		Stale:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Strikethrough(true),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Winner:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Sidebar:  lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, true, false, false).PaddingRight(1),
	}
}

// MonoTheme returns a style set without colors, for dumb terminals and
// non-tty output.
func MonoTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Title:    plain.Bold(true),
		Header:   plain,
		AgentID:  plain,
		Event:    plain,
		Selected: plain.Bold(true).Reverse(true),
		Stale:    plain.Strikethrough(true),
		Error:    plain.Bold(true),
		Winner:   plain.Bold(true),
		Muted:    plain.Faint(true),
		Sidebar:  plain.PaddingRight(1),
	}
}

// ThemeByName maps a config theme name to a Theme, defaulting to colored.
func ThemeByName(name string) Theme {
	if name == "mono" {
		return MonoTheme()
	}
	return DefaultTheme()
}

// FormatElapsed renders a duration the way humans read timelines: seconds
// below a minute, then minutes+seconds, then hours+minutes.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Seconds())
	switch {
	case s < 60:
		return fmt.Sprintf("%ds", s)
	case s < 3600:
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	default:
		return fmt.Sprintf("%dh %dm", s/3600, (s%3600)/60)
	}
}
