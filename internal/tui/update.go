package tui

import (
	"errors"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/cvforge/cvforge/internal/engine"
)

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return t.handleKey(msg)

	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height

		// Calculate viewport height: total - input - separators - help
		inputHeight := t.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		t.viewport.SetWidth(msg.Width)
		t.viewport.SetHeight(vpHeight)
		t.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		t.help.SetWidth(msg.Width)
		t.markdown.Resize(msg.Width)

		// Rebuild viewport content with new dimensions
		t.rebuildViewportContent()
		return t, nil

	case tea.MouseWheelMsg:
		// Forward mouse wheel to viewport for scrolling
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		// Rebuild viewport to update spinner animation during thinking or tool execution
		if t.state == StateThinking || (t.state == StateStreaming && t.toolStatus != "") {
			t.rebuildViewportContent()
		}
		return t, cmd

	case streamStartedMsg:
		t.state = StateThinking
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, nil

	case streamUpdateMsg:
		t.state = StateStreaming
		t.toolStatus = "" // Clear tool status when text arrives
		t.liveThought = msg.thought
		t.liveAnswer = msg.answer
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, listenForStream(t.bridge.events)

	case streamToolMsg:
		t.toolStatus = msg.status
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, listenForStream(t.bridge.events)

	case openSelectorMsg:
		t.addNotice("The assistant needs a resume. Tell it which one to use.")
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, listenForStream(t.bridge.events)

	case streamDoneMsg:
		// The finalized text now lives in the timeline under its real id;
		// drop the live mirrors so the committed message renders instead.
		t.state = StateInput
		t.toolStatus = ""
		t.liveThought = ""
		t.liveAnswer = ""
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		// Re-focus textarea after stream completes
		return t, tea.Batch(t.input.Focus(), listenForStream(t.bridge.events))

	case streamErrorMsg:
		// Application errors surface mid-run without ending it.
		if errors.Is(msg.err, engine.ErrAgent) {
			t.addNotice("Assistant error: " + msg.err.Error())
			t.rebuildViewportContent()
			t.viewport.GotoBottom()
			return t, listenForStream(t.bridge.events)
		}
		t.addNotice("Error: " + msg.err.Error())
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, listenForStream(t.bridge.events)

	case runEndedMsg:
		t.state = StateInput
		t.toolStatus = ""
		t.liveThought = ""
		t.liveAnswer = ""
		if msg.err != nil && !errors.Is(msg.err, engine.ErrAgent) {
			t.addNotice("Connection failed: " + msg.err.Error())
		}
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		// Re-focus textarea and keep listening for the next run
		return t, tea.Batch(t.input.Focus(), listenForStream(t.bridge.events))
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}
