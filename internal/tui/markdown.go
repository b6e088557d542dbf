package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/cvforge/cvforge/internal/toolcall"
)

// Rendering bounds for the chat transcript. The gutter keeps glamour
// output off the viewport edge; below minRenderWidth styled output wraps
// worse than plain text, so the width is clamped there instead.
const (
	markdownGutter     = 2
	minRenderWidth     = 20
	defaultRenderWidth = 80
)

// markdownRenderer turns assistant replies and resume edit diffs into
// styled terminal output. The glamour renderer is rebuilt only when the
// effective width changes; any glamour failure falls back to raw text.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

func newMarkdownRenderer(width int) *markdownRenderer {
	m := &markdownRenderer{}
	m.Resize(width)
	return m
}

// Resize rebuilds the renderer for a new terminal width. Reports whether
// the width changed, i.e. whether the transcript needs re-rendering.
func (m *markdownRenderer) Resize(width int) bool {
	if m == nil {
		return false
	}
	if width <= 0 {
		width = defaultRenderWidth
	}
	width -= markdownGutter
	if width < minRenderWidth {
		width = minRenderWidth
	}
	if width == m.width {
		return false
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		// Resume bullet lists arrive with hard line breaks that matter.
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		// Keep whatever renderer exists; Render degrades to plain text.
		return false
	}

	m.renderer = r
	m.width = width
	return true
}

// Render converts one assistant reply to styled output. Returns the input
// unchanged if no renderer is available or rendering fails.
func (m *markdownRenderer) Render(markdown string) string {
	if m == nil || m.renderer == nil {
		return markdown
	}
	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.Trim(rendered, "\n")
}

// RenderEditDiff formats one resume edit as a fenced diff block so the
// removed and added lines pick up glamour's diff highlighting. Returns ""
// when the edit carries no text to show.
func (m *markdownRenderer) RenderEditDiff(diff toolcall.ResumeEditDiff) string {
	if strings.TrimSpace(diff.Before) == "" && strings.TrimSpace(diff.After) == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("```diff\n")
	writeDiffLines(&b, "-", diff.Before)
	writeDiffLines(&b, "+", diff.After)
	b.WriteString("```")
	return m.Render(b.String())
}

func writeDiffLines(b *strings.Builder, marker, text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(marker)
		b.WriteString(" ")
		b.WriteString(line)
		b.WriteString("\n")
	}
}
