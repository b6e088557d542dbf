package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"go.uber.org/goleak"

	"github.com/cvforge/cvforge/internal/engine"
	"github.com/cvforge/cvforge/internal/log"
	"github.com/cvforge/cvforge/internal/stream"
	"github.com/cvforge/cvforge/internal/timeline"
	"github.com/cvforge/cvforge/internal/toolcall"
)

// nullTransport satisfies engine.Transport with an immediately-closed
// stream; tests here never exercise a live run end to end.
type nullTransport struct{}

func (nullTransport) Open(context.Context, engine.SendRequest) (<-chan stream.Event, error) {
	ch := make(chan stream.Event)
	close(ch)
	return ch, nil
}

// newTestTUI creates a TUI with initialized components for testing.
func newTestTUI() *TUI {
	ta := textarea.New()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	tl := timeline.NewStore()
	bridge := NewBridge(tl)
	eng := engine.New(log.NewNop(), nullTransport{}, bridge, bridge, tl, engine.Options{})

	return &TUI{
		state:    StateInput,
		input:    ta,
		viewport: viewport.New(viewport.WithWidth(80), viewport.WithHeight(20)),
		history:  make([]string, 0),
		styles:   DefaultStyles(),
		markdown: newMarkdownRenderer(80),
		engine:   eng,
		bridge:   bridge,
		ctx:      context.Background(),
	}
}

func TestNewErrors(t *testing.T) {
	tl := timeline.NewStore()
	bridge := NewBridge(tl)
	eng := engine.New(log.NewNop(), nullTransport{}, bridge, bridge, tl, engine.Options{})

	if _, err := New(context.Background(), nil, bridge); err == nil {
		t.Error("expected error for nil engine")
	}
	if _, err := New(context.Background(), eng, nil); err == nil {
		t.Error("expected error for nil bridge")
	}
	//lint:ignore SA1012 intentionally testing nil context handling
	if _, err := New(nil, eng, bridge); err == nil { //nolint:staticcheck
		t.Error("expected error for nil context")
	}
}

func TestHandleSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name        string
		cmd         string
		wantExit    bool
		wantNotices int
	}{
		{"help", "/help", false, 1},
		{"clear", "/clear", false, 0}, // clears notices
		{"exit", "/exit", true, 0},
		{"quit", "/quit", true, 0},
		{"unknown", "/unknown", false, 2}, // pre-seeded notice + error notice
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tui := newTestTUI()
			if tt.name == "clear" || tt.name == "unknown" {
				tui.notices = []string{"seed"}
			}

			_, cmd := tui.handleSlashCommand(tt.cmd)

			if tt.wantExit {
				if cmd == nil {
					t.Fatal("exit command returned no tea.Cmd")
				}
				return
			}
			if got := len(tui.notices); got != tt.wantNotices {
				t.Errorf("notices = %d, want %d", got, tt.wantNotices)
			}
		})
	}
}

func TestHandleSubmit(t *testing.T) {
	t.Run("empty input is a no-op", func(t *testing.T) {
		tui := newTestTUI()
		tui.input.SetValue("   ")

		_, cmd := tui.handleSubmit()
		if cmd != nil {
			t.Error("blank submit started a stream")
		}
		if tui.state != StateInput {
			t.Errorf("state = %v, want StateInput", tui.state)
		}
	})

	t.Run("text starts a run", func(t *testing.T) {
		tui := newTestTUI()
		tui.input.SetValue("improve my summary section")

		_, cmd := tui.handleSubmit()
		if cmd == nil {
			t.Fatal("submit returned no command")
		}
		if tui.state != StateThinking {
			t.Errorf("state = %v, want StateThinking", tui.state)
		}
		if len(tui.history) != 1 || tui.history[0] != "improve my summary section" {
			t.Errorf("history = %v, want the submitted text", tui.history)
		}
		if tui.input.Value() != "" {
			t.Error("input not cleared after submit")
		}
	})
}

func TestNavigateHistory(t *testing.T) {
	tui := newTestTUI()
	tui.history = []string{"first", "second"}
	tui.historyIdx = 2

	tui.navigateHistory(-1)
	if got := tui.input.Value(); got != "second" {
		t.Errorf("after up, input = %q, want %q", got, "second")
	}

	tui.navigateHistory(-1)
	if got := tui.input.Value(); got != "first" {
		t.Errorf("after second up, input = %q, want %q", got, "first")
	}

	// Below the oldest entry stays at the oldest.
	tui.navigateHistory(-1)
	if got := tui.input.Value(); got != "first" {
		t.Errorf("past oldest, input = %q, want %q", got, "first")
	}

	tui.navigateHistory(1)
	tui.navigateHistory(1)
	if got := tui.input.Value(); got != "" {
		t.Errorf("past newest, input = %q, want empty", got)
	}
}

func TestBridgeForwardsArtifacts(t *testing.T) {
	tl := timeline.NewStore()
	bridge := NewBridge(tl)

	bridge.UpsertSearchResult("m1", toolcall.SearchResult{
		Type:         "search",
		Query:        "golang resume keywords",
		TotalResults: 4,
	})

	msg, ok := tl.Get("m1")
	if !ok || msg.Search == nil {
		t.Fatal("search result not stored in timeline")
	}
	if msg.Search.Query != "golang resume keywords" {
		t.Errorf("stored query = %q", msg.Search.Query)
	}

	// The tool activity note reaches the UI channel.
	got := <-bridge.events
	if got.toolStatus == "" {
		t.Error("no tool status event emitted for search result")
	}
}

func TestListenForStreamDispatch(t *testing.T) {
	bridge := NewBridge(timeline.NewStore())

	bridge.events <- streamEvent{} // empty event must be skipped, not returned
	bridge.OnUpdate("thinking", "answering")

	msg := listenForStream(bridge.events)()
	update, ok := msg.(streamUpdateMsg)
	if !ok {
		t.Fatalf("got %T, want streamUpdateMsg", msg)
	}
	if update.thought != "thinking" || update.answer != "answering" {
		t.Errorf("update = %+v", update)
	}

	bridge.OnFinal("msg-1", engine.FinalizedContent{Answer: "done"})
	msg = listenForStream(bridge.events)()
	final, ok := msg.(streamDoneMsg)
	if !ok {
		t.Fatalf("got %T, want streamDoneMsg", msg)
	}
	if final.messageID != "msg-1" || final.content.Answer != "done" {
		t.Errorf("final = %+v", final)
	}

	bridge.OnError(errors.New("boom"))
	msg = listenForStream(bridge.events)()
	if _, ok := msg.(streamErrorMsg); !ok {
		t.Fatalf("got %T, want streamErrorMsg", msg)
	}
}

func TestBridgeNeverBlocks(t *testing.T) {
	bridge := NewBridge(timeline.NewStore())

	// Overfill the channel; sends beyond capacity must drop, not hang.
	for range streamBufferSize + 10 {
		bridge.OnUpdate("t", "a")
	}
}

func TestMarkdownRenderer(t *testing.T) {
	t.Run("nil renderer degrades to plain text", func(t *testing.T) {
		var m *markdownRenderer
		if got := m.Render("# heading"); got != "# heading" {
			t.Errorf("nil renderer altered text: %q", got)
		}
	})

	t.Run("resize is cached", func(t *testing.T) {
		m := newMarkdownRenderer(80)
		if m.renderer == nil {
			t.Skip("glamour unavailable in this environment")
		}
		if m.Resize(80) {
			t.Error("Resize(same) reported a change")
		}
		if !m.Resize(120) {
			t.Error("Resize(new) reported no change")
		}
	})

	t.Run("narrow windows clamp to a readable width", func(t *testing.T) {
		m := newMarkdownRenderer(80)
		m.Resize(5)
		if m.width != minRenderWidth {
			t.Errorf("width = %d, want %d", m.width, minRenderWidth)
		}
	})

	t.Run("edit diff carries removed and added lines", func(t *testing.T) {
		// The nil receiver takes the plain-text path, which keeps the
		// assertion independent of the active glamour theme.
		var m *markdownRenderer
		got := m.RenderEditDiff(toolcall.ResumeEditDiff{
			Section: "summary",
			Before:  "Responsible for backend systems.",
			After:   "Led the backend platform team of six.",
		})
		if !strings.Contains(got, "- Responsible for backend systems.") {
			t.Errorf("removed line missing from %q", got)
		}
		if !strings.Contains(got, "+ Led the backend platform team of six.") {
			t.Errorf("added line missing from %q", got)
		}
	})

	t.Run("edit diff with no text renders nothing", func(t *testing.T) {
		var m *markdownRenderer
		if got := m.RenderEditDiff(toolcall.ResumeEditDiff{Section: "summary"}); got != "" {
			t.Errorf("empty diff rendered %q", got)
		}
	})
}

func TestRunEndedResetsState(t *testing.T) {
	tui := newTestTUI()
	tui.state = StateStreaming
	tui.liveThought = "thinking"
	tui.liveAnswer = "partial"

	model, _ := tui.Update(runEndedMsg{err: nil})
	got := model.(*TUI)
	if got.state != StateInput {
		t.Errorf("state = %v, want StateInput", got.state)
	}
	if got.liveThought != "" || got.liveAnswer != "" {
		t.Error("live buffers survived run end")
	}
}

func TestRunEndedSurfacesTransportError(t *testing.T) {
	tui := newTestTUI()
	tui.state = StateStreaming

	model, _ := tui.Update(runEndedMsg{err: engine.ErrTransport})
	got := model.(*TUI)
	if len(got.notices) == 0 {
		t.Error("transport failure produced no notice")
	}
}

var _ tea.Model = (*TUI)(nil)
