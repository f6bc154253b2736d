package main

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhengjr9/vibes/internal/workspace"
)

// styles are the lipgloss styles for one theme.
type styles struct {
	Title  lipgloss.Style
	Prompt lipgloss.Style
	Info   lipgloss.Style
	Muted  lipgloss.Style
	Error  lipgloss.Style
	Code   lipgloss.Style
}

func newStyles(name workspace.ThemeName) styles {
	theme, ok := workspace.LookupTheme(name)
	if !ok {
		theme, _ = workspace.LookupTheme(workspace.DefaultTheme)
	}
	c := theme.Colors
	return styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Primary)),
		Prompt: lipgloss.NewStyle().Foreground(lipgloss.Color(c.Accent)),
		Info:   lipgloss.NewStyle().Foreground(lipgloss.Color(c.Secondary)),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color(c.TextMuted)),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		Code: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(c.Primary)).
			Padding(0, 1),
	}
}

// highlight renders JavaScript for a 256-colour terminal, falling back to
// the plain source.
func highlight(code string) string {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, code, "javascript", "terminal256", "monokai"); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
