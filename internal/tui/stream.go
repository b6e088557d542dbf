package tui

import (
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/cvforge/cvforge/internal/engine"
	"github.com/cvforge/cvforge/internal/timeline"
	"github.com/cvforge/cvforge/internal/toolcall"
)

// streamBufferSize is sized for ~1.5s burst at 60 FPS refresh rate.
// This prevents backpressure during UI render delays while keeping
// memory bounded.
const streamBufferSize = 100

// streamEvent is a discriminated union for everything the engine reports
// back to the UI. Using a single channel with union type simplifies select
// logic and eliminates complex multi-channel closure handling.
type streamEvent struct {
	// Exactly one group of fields is set per event
	update          bool // coalesced text update (thought/answer below)
	thought, answer string

	final     *engine.FinalizedContent // run finalized
	messageID string

	err error // surfaced engine error

	toolStatus   string // tool activity note (e.g. "Searching the web...")
	openSelector bool   // backend asked for the resume picker

	runEnded  bool // SendMessage returned
	runEndErr error
}

// Bubble Tea message types for stream events.
type streamStartedMsg struct{}

type streamUpdateMsg struct {
	thought string
	answer  string
}

type streamDoneMsg struct {
	messageID string
	content   engine.FinalizedContent
}

type streamErrorMsg struct {
	err error
}

type streamToolMsg struct {
	status string
}

type openSelectorMsg struct{}

type runEndedMsg struct {
	err error
}

// Bridge adapts engine callbacks to Bubble Tea messages. It implements
// both [engine.Observer] (text updates, run results) and
// [toolcall.Dispatcher] (tool side effects), forwarding artifacts to the
// timeline store and narrating tool activity to the UI.
//
// All callbacks run on the engine goroutine; sends are best-effort
// (non-blocking) so a stalled UI can never deadlock the engine.
type Bridge struct {
	timeline *timeline.Store
	events   chan streamEvent
}

// NewBridge wires a bridge around the shared timeline store.
func NewBridge(tl *timeline.Store) *Bridge {
	return &Bridge{
		timeline: tl,
		events:   make(chan streamEvent, streamBufferSize),
	}
}

// send delivers an event without ever blocking the engine goroutine.
func (b *Bridge) send(ev streamEvent) {
	select {
	case b.events <- ev:
	default: // UI is stalled or gone; drop rather than block
	}
}

// OnUpdate implements engine.Observer.
func (b *Bridge) OnUpdate(thought, answer string) {
	b.send(streamEvent{update: true, thought: thought, answer: answer})
}

// OnFinal implements engine.Observer.
func (b *Bridge) OnFinal(messageID string, content engine.FinalizedContent) {
	b.send(streamEvent{final: &content, messageID: messageID})
}

// OnError implements engine.Observer.
func (b *Bridge) OnError(err error) {
	b.send(streamEvent{err: err})
}

// UpsertSearchResult implements toolcall.Dispatcher.
func (b *Bridge) UpsertSearchResult(messageID string, data toolcall.SearchResult) {
	b.timeline.UpsertSearchResult(messageID, data)
	b.send(streamEvent{toolStatus: fmt.Sprintf("Searched the web for %q (%d results)", data.Query, data.TotalResults)})
}

// UpsertLoadedResume implements toolcall.Dispatcher.
func (b *Bridge) UpsertLoadedResume(messageID string, data map[string]any) {
	b.timeline.UpsertLoadedResume(messageID, data)
	b.send(streamEvent{toolStatus: "Loaded resume"})
}

// UpsertResumeEditDiff implements toolcall.Dispatcher.
func (b *Bridge) UpsertResumeEditDiff(messageID string, data toolcall.ResumeEditDiff) {
	b.timeline.UpsertResumeEditDiff(messageID, data)
}

// ApplyResumeEditDiff implements toolcall.Dispatcher.
func (b *Bridge) ApplyResumeEditDiff(data toolcall.ResumeEditDiff) {
	b.send(streamEvent{toolStatus: "Updated resume section: " + data.Section})
}

// OpenResumeSelector implements toolcall.Dispatcher.
func (b *Bridge) OpenResumeSelector() {
	b.send(streamEvent{openSelector: true})
}

// Compile-time interface verification.
var (
	_ engine.Observer     = (*Bridge)(nil)
	_ toolcall.Dispatcher = (*Bridge)(nil)
)

// startStream creates a command that launches one run.
//
// Goroutine lifecycle: the spawned goroutine exits when SendMessage
// returns - on completion, cancellation, or fatal transport failure.
// Its result arrives as a runEnded event on the shared channel.
func (t *TUI) startStream(text string) tea.Cmd {
	eng, bridge, ctx := t.engine, t.bridge, t.ctx
	return func() tea.Msg {
		go func() {
			// Panic recovery to prevent TUI lockup
			defer func() {
				if r := recover(); r != nil {
					bridge.send(streamEvent{runEnded: true, runEndErr: fmt.Errorf("stream panic: %v", r)})
				}
			}()

			err := eng.SendMessage(ctx, text, nil)
			if ctx.Err() != nil {
				err = nil // shutdown in progress; nothing to report
			}
			bridge.send(streamEvent{runEnded: true, runEndErr: err})
		}()
		return streamStartedMsg{}
	}
}

// listenForStream creates a command to wait for the next stream event.
// Uses a single union channel - no complex multi-channel select needed.
// Empty events (all fields zero) are skipped via loop instead of recursion
// to prevent stack overflow under pathological conditions.
func listenForStream(events <-chan streamEvent) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}

		for {
			ev, ok := <-events
			if !ok {
				return nil
			}

			// Discriminated union dispatch
			switch {
			case ev.runEnded:
				return runEndedMsg{err: ev.runEndErr}
			case ev.final != nil:
				return streamDoneMsg{messageID: ev.messageID, content: *ev.final}
			case ev.err != nil:
				return streamErrorMsg{err: ev.err}
			case ev.openSelector:
				return openSelectorMsg{}
			case ev.toolStatus != "":
				return streamToolMsg{status: ev.toolStatus}
			case ev.update:
				return streamUpdateMsg{thought: ev.thought, answer: ev.answer}
			default:
				// Empty event - loop instead of recursing
				continue
			}
		}
	}
}
