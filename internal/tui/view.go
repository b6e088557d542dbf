package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/cvforge/cvforge/internal/timeline"
)

// View implements tea.Model.
// Uses AltScreen with viewport for scrollable message history.
func (t *TUI) View() tea.View {
	t.viewBuf.Reset()

	// Viewport (scrollable message area)
	_, _ = t.viewBuf.WriteString(t.viewport.View())
	_, _ = t.viewBuf.WriteString("\n")

	// Separator line above input
	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	// Input prompt - always show and always accept input
	// Users can type while the assistant is thinking/streaming
	_, _ = t.viewBuf.WriteString(t.styles.Prompt.Render("> "))
	_, _ = t.viewBuf.WriteString(t.input.View())
	_, _ = t.viewBuf.WriteString("\n")

	// Separator line below input
	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	// Help bar (keyboard shortcuts)
	_, _ = t.viewBuf.WriteString(t.renderStatusBar())

	v := tea.NewView(t.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport content from the
// timeline and the live run state. Called when the timeline, streaming
// text, or state changes.
func (t *TUI) rebuildViewportContent() {
	var b strings.Builder

	// Banner and tips
	_, _ = b.WriteString(t.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(t.styles.RenderWelcomeTips())
	_, _ = b.WriteString("\n")

	// Committed timeline messages. The in-flight placeholder is skipped;
	// its text renders from the live mirrors below so the canonical copy
	// is never shown twice.
	for _, msg := range t.engine.Timeline().Messages() {
		if msg.ID == timeline.PlaceholderID {
			continue
		}
		t.renderMessage(&b, msg)
	}

	// Current streaming output
	if t.state == StateStreaming && (t.liveThought != "" || t.liveAnswer != "") {
		if t.liveThought != "" {
			_, _ = b.WriteString(t.styles.Thought.Render(t.liveThought))
			_, _ = b.WriteString("\n")
		}
		if t.liveAnswer != "" {
			_, _ = b.WriteString(t.styles.Assistant.Render("CVForge> "))
			_, _ = b.WriteString(t.liveAnswer)
		}
		_, _ = b.WriteString("\n\n")
	}

	// Tool status indicator (shown during streaming when a tool reported activity)
	if t.state == StateStreaming && t.toolStatus != "" {
		_, _ = b.WriteString(t.spinner.View())
		_, _ = b.WriteString(" ")
		_, _ = b.WriteString(t.styles.System.Render(t.toolStatus))
		_, _ = b.WriteString("\n\n")
	}

	// Thinking indicator
	if t.state == StateThinking {
		_, _ = b.WriteString(t.spinner.View())
		_, _ = b.WriteString(" Thinking...\n\n")
	}

	// Transient notices (errors, cancellations, selector prompts)
	for _, notice := range t.notices {
		_, _ = b.WriteString(t.styles.System.Render(notice))
		_, _ = b.WriteString("\n\n")
	}

	t.viewport.SetContent(b.String())
}

// renderMessage writes one committed timeline message with its artifacts.
func (t *TUI) renderMessage(b *strings.Builder, msg timeline.Message) {
	switch msg.Role {
	case timeline.RoleUser:
		_, _ = b.WriteString(t.styles.User.Render("You> "))
		_, _ = b.WriteString(msg.Text)
		_, _ = b.WriteString("\n\n")
		return

	case timeline.RoleAssistant:
		if msg.Thought != "" {
			_, _ = b.WriteString(t.styles.Thought.Render(msg.Thought))
			_, _ = b.WriteString("\n")
		}
		if msg.Text != "" {
			_, _ = b.WriteString(t.styles.Assistant.Render("CVForge> "))
			_, _ = b.WriteString(t.markdown.Render(msg.Text))
			_, _ = b.WriteString("\n")
		}
	}

	// Tool artifacts attached to the message
	if msg.Search != nil {
		_, _ = b.WriteString(t.styles.System.Render(
			fmt.Sprintf("• web search %q — %d results", msg.Search.Query, msg.Search.TotalResults)))
		_, _ = b.WriteString("\n")
		for i, hit := range msg.Search.Results {
			if i >= 3 {
				break // top hits only; the assistant summarizes the rest
			}
			_, _ = b.WriteString(t.styles.System.Render("    " + hit.Title + " (" + hit.URL + ")"))
			_, _ = b.WriteString("\n")
		}
	}
	if msg.LoadedResume != nil {
		_, _ = b.WriteString(t.styles.System.Render("• resume loaded"))
		_, _ = b.WriteString("\n")
	}
	for _, diff := range msg.EditDiffs {
		label := diff.Summary
		if label == "" {
			label = "edited"
		}
		_, _ = b.WriteString(t.styles.System.Render("• " + diff.Section + ": " + label))
		_, _ = b.WriteString("\n")
		if rendered := t.markdown.RenderEditDiff(diff); rendered != "" {
			_, _ = b.WriteString(rendered)
			_, _ = b.WriteString("\n")
		}
	}

	_, _ = b.WriteString("\n")
}

// renderSeparator returns a horizontal line separator.
func (t *TUI) renderSeparator() string {
	width := t.width
	if width <= 0 {
		width = 80 // Default width
	}
	return t.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns state-appropriate keyboard shortcut help.
func (t *TUI) renderStatusBar() string {
	var bindings []key.Binding
	switch t.state {
	case StateInput:
		bindings = []key.Binding{
			t.keys.Submit, t.keys.NewLine, t.keys.History,
			t.keys.Cancel, t.keys.Quit, t.keys.ScrollUp,
		}
	case StateThinking, StateStreaming:
		bindings = []key.Binding{
			t.keys.EscCancel, t.keys.Cancel,
			t.keys.ScrollUp, t.keys.ScrollDown,
		}
	}
	return t.help.ShortHelpView(bindings)
}
