package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type theme struct {
	title        lipgloss.Style
	label        lipgloss.Style
	muted        lipgloss.Style
	buttonIdle   lipgloss.Style
	buttonActive lipgloss.Style
	buttonHit    lipgloss.Style
	panel        lipgloss.Style
	info         lipgloss.Style
	warn         lipgloss.Style
	err          lipgloss.Style
}

type palette struct {
	text, muted, accent, active, hit, warn, err, border lipgloss.Color
}

var palettes = map[string]palette{
	"dark": {
		text:   lipgloss.Color("#F0F0F0"),
		muted:  lipgloss.Color("#6E6E6E"),
		accent: lipgloss.Color("#C89A3A"),
		active: lipgloss.Color("#00FF00"),
		hit:    lipgloss.Color("#7CFFB2"),
		warn:   lipgloss.Color("#FFB020"),
		err:    lipgloss.Color("#FF4D4F"),
		border: lipgloss.Color("#8C8C8C"),
	},
	"light": {
		text:   lipgloss.Color("#1F1F1F"),
		muted:  lipgloss.Color("#8C8C8C"),
		accent: lipgloss.Color("#8A5A00"),
		active: lipgloss.Color("#1A7F37"),
		hit:    lipgloss.Color("#2DA44E"),
		warn:   lipgloss.Color("#9A6700"),
		err:    lipgloss.Color("#CF222E"),
		border: lipgloss.Color("#6E6E6E"),
	},
}

// themeFor builds styles for a theme name and button size. Unknown themes
// fall back to dark.
func themeFor(name, buttonSize string) theme {
	p, ok := palettes[strings.ToLower(name)]
	if !ok {
		p = palettes["dark"]
	}
	button := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Bold(true).
		Align(lipgloss.Center)
	if buttonSize == "small" {
		button = button.Padding(0, 2)
	} else {
		button = button.Padding(1, 8)
	}
	return theme{
		title:        lipgloss.NewStyle().Foreground(p.accent).Bold(true),
		label:        lipgloss.NewStyle().Foreground(p.text),
		muted:        lipgloss.NewStyle().Foreground(p.muted),
		buttonIdle:   button.BorderForeground(p.border).Foreground(p.muted),
		buttonActive: button.BorderForeground(p.active).Foreground(p.active),
		buttonHit:    button.BorderForeground(p.hit).Foreground(p.hit).Reverse(true),
		panel:        lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(p.border).Padding(0, 2),
		info:         lipgloss.NewStyle().Foreground(p.text),
		warn:         lipgloss.NewStyle().Foreground(p.warn).Bold(true),
		err:          lipgloss.NewStyle().Foreground(p.err).Bold(true),
	}
}

// wrapSegments packs segments into lines no wider than width, joining
// segments on one line with sep. A segment wider than width gets its own
// line.
func wrapSegments(segments []string, sep string, width int) []string {
	if len(segments) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(segments, sep)}
	}
	sepWidth := runewidth.StringWidth(sep)
	var lines []string
	var line strings.Builder
	lineWidth := 0
	for _, seg := range segments {
		segWidth := runewidth.StringWidth(seg)
		if lineWidth > 0 && lineWidth+sepWidth+segWidth > width {
			lines = append(lines, line.String())
			line.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			line.WriteString(sep)
			lineWidth += sepWidth
		}
		line.WriteString(seg)
		lineWidth += segWidth
	}
	return append(lines, line.String())
}
