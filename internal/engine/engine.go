package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cvforge/cvforge/internal/log"
	"github.com/cvforge/cvforge/internal/stream"
	"github.com/cvforge/cvforge/internal/timeline"
	"github.com/cvforge/cvforge/internal/toolcall"
)

// SendRequest is what the transport needs to open one run's event stream.
type SendRequest struct {
	ConversationID  string
	Text            string
	ContextOverride map[string]any
}

// Transport opens the framed event stream for one run. The returned channel
// closes when the stream ends for any reason; canceling ctx must stop the
// producer. Decoding failures for individual frames are the transport's to
// skip — the engine only ever sees well-formed events.
type Transport interface {
	Open(ctx context.Context, req SendRequest) (<-chan stream.Event, error)
}

// Options configures an Engine.
type Options struct {
	// ConversationID scopes requests to one conversation.
	ConversationID string

	// UpdateInterval is the observer coalescing cadence. Zero means the
	// default (~one animation frame).
	UpdateInterval time.Duration

	// Tracer emits one span per run. Nil disables tracing.
	Tracer trace.Tracer
}

// Engine reconciles one streamed run at a time. Exactly one run is live;
// starting a new one supersedes the old, whose in-flight events are dropped
// on arrival by run-id comparison. Canonical buffers mutate synchronously
// on the event-processing goroutine; the observer sees coalesced updates.
type Engine struct {
	logger    log.Logger
	transport Transport
	observer  Observer
	timeline  *timeline.Store
	tracer    trace.Tracer

	controller *Controller
	completion *completion
	router     *toolcall.Router
	updates    *coalescer

	conversationID string

	mu        sync.Mutex
	cancelRun context.CancelFunc
	lastErr   error
}

// New wires an engine. dispatcher receives tool side effects; observer
// receives text updates and run results.
func New(logger log.Logger, transport Transport, dispatcher toolcall.Dispatcher, observer Observer, tl *timeline.Store, opts Options) *Engine {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Engine{
		logger:         logger,
		transport:      transport,
		observer:       observer,
		timeline:       tl,
		tracer:         tracer,
		controller:     NewController(logger),
		completion:     newCompletion(logger),
		router:         toolcall.NewRouter(logger, dispatcher),
		updates:        newCoalescer(observer, opts.UpdateInterval),
		conversationID: opts.ConversationID,
	}
}

// Timeline exposes the conversation timeline for rendering.
func (e *Engine) Timeline() *timeline.Store {
	return e.timeline
}

// LastError returns the most recent surfaced error, nil after a clean run.
// Caller-requested cancellation never shows up here.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// SendMessage starts a new run for one user turn and blocks until the run
// reaches Finalized or the transport fails fatally. Any previous run is
// superseded first: its subscription is canceled and its still-in-flight
// events are dropped on arrival.
func (e *Engine) SendMessage(ctx context.Context, text string, contextOverride map[string]any) error {
	e.mu.Lock()
	if e.cancelRun != nil {
		e.cancelRun()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancelRun = cancel
	runID := e.controller.StartRun()
	e.completion.reset(runID)
	e.router.Reset(runID)
	e.updates.reset()
	e.lastErr = nil
	e.mu.Unlock()

	e.timeline.Drop(timeline.PlaceholderID)
	e.timeline.Append(timeline.Message{
		ID:   timeline.NewMessageID(),
		Role: timeline.RoleUser,
		Text: text,
	})

	runCtx, span := e.tracer.Start(runCtx, "engine.run",
		trace.WithAttributes(attribute.Int64("run.id", int64(runID))))
	defer span.End()
	defer cancel()

	events, err := e.transport.Open(runCtx, SendRequest{
		ConversationID:  e.conversationID,
		Text:            text,
		ContextOverride: contextOverride,
	})
	if err != nil {
		err = fmt.Errorf("%w: open stream: %v", ErrTransport, err)
		span.RecordError(err)
		e.failRun(runID, err)
		return err
	}

	for ev := range events {
		e.processEvent(runID, &ev)
		if e.completion.finalized() {
			// Stop the producer; the loop drains whatever is buffered.
			cancel()
		}
	}

	return e.streamEnded(runCtx, runID, span)
}

// FinalizeStream ends the current run immediately with whatever content
// exists, without waiting for further events. Returns ErrNoRun when no run
// is in flight.
func (e *Engine) FinalizeStream() error {
	e.mu.Lock()
	runID := e.controller.RunID()
	cancel := e.cancelRun
	e.mu.Unlock()

	if runID == 0 {
		return ErrNoRun
	}
	e.finalizeRun(runID, "external finalize")
	if cancel != nil {
		cancel()
	}
	return nil
}

// Disconnect cancels any in-flight run and releases the transport
// subscription. The aborted run still finalizes with partial content so no
// run is left permanently open; no error is surfaced.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	runID := e.controller.RunID()
	cancel := e.cancelRun
	e.cancelRun = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if runID != 0 {
		e.finalizeRun(runID, "disconnect")
	}
}

// processEvent applies one event to the live run. Events tagged with a
// superseded run are dropped silently; a malformed event never reaches this
// point (the transport skips it).
func (e *Engine) processEvent(runID uint64, ev *stream.Event) {
	e.mu.Lock()
	if e.controller.RunID() != runID {
		e.mu.Unlock()
		e.logger.Debug("event for superseded run dropped", "run_id", runID, "kind", ev.Kind)
		return
	}

	switch {
	case ev.IsThought():
		if txt := ev.ChunkText(); txt != "" {
			e.controller.AppendThought(txt)
			e.controller.CaptureSnapshot()
		}
		thought, answer := e.controller.Thought(), e.controller.Answer()
		e.mu.Unlock()
		e.updates.publish(thought, answer)

	case ev.IsAnswer():
		if txt := ev.ChunkText(); txt != "" {
			e.controller.AppendAnswer(txt)
			e.controller.CaptureSnapshot()
		}
		thought, answer := e.controller.Thought(), e.controller.Answer()
		e.mu.Unlock()
		e.updates.publish(thought, answer)
		if ev.IsCompletionSignal() {
			e.finalizeRun(runID, "final answer chunk")
		}

	case ev.Kind == stream.KindToolResult:
		e.mu.Unlock()
		e.router.Handle(ev, timeline.PlaceholderID)

	case ev.Kind == stream.KindDone, ev.Kind == stream.KindStatus:
		e.mu.Unlock()
		if ev.IsCompletionSignal() {
			e.finalizeRun(runID, string(ev.Kind))
		}

	case ev.Kind == stream.KindError:
		err := fmt.Errorf("%w: %s", ErrAgent, ev.ChunkText())
		e.lastErr = err
		e.mu.Unlock()
		// Application errors surface but do not end the run; remaining
		// events may still carry content.
		e.observer.OnError(err)

	default:
		e.mu.Unlock()
		e.logger.Debug("unhandled event kind skipped", "kind", ev.Kind, "raw_kind", ev.RawKind)
	}
}

// streamEnded handles the transport closing the event channel: the
// out-of-band completion path when no explicit signal arrived.
func (e *Engine) streamEnded(ctx context.Context, runID uint64, span trace.Span) error {
	if e.finalizeDone(runID) {
		return nil
	}

	e.mu.Lock()
	hasContent := e.controller.Thought() != "" || e.controller.Answer() != ""
	e.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		// Caller-requested cancellation (supersede, Disconnect, or parent
		// context). Finalize with partial content, surface nothing.
		e.finalizeRun(runID, "canceled")
		return nil

	case hasContent:
		// Connection ended without a completion signal but with content
		// buffered: treat the stream end itself as the signal.
		e.finalizeRun(runID, "stream end")
		return nil

	default:
		err := fmt.Errorf("%w: stream ended without content", ErrTransport)
		span.RecordError(err)
		e.failRun(runID, err)
		return err
	}
}

// finalizeDone reports whether the run already finalized, without arming
// any new transition.
func (e *Engine) finalizeDone(runID uint64) bool {
	e.mu.Lock()
	current := e.controller.RunID() == runID
	e.mu.Unlock()
	return current && e.completion.finalized()
}

// finalizeRun performs the single Completing -> Finalized transition for
// runID, commits the result to the timeline under a real message id, and
// notifies the observer. Safe to call from any trigger path; only the first
// matching call does anything. Must not be called with e.mu held.
func (e *Engine) finalizeRun(runID uint64, trigger string) bool {
	e.updates.flush()

	content, ok := e.completion.tryFinalize(runID, trigger, func() FinalizedContent {
		stateThought, stateAnswer := e.updates.observed()
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.controller.Resolve(stateThought, stateAnswer)
	})
	if !ok {
		return false
	}

	// Commit unless the run produced nothing at all: no text and no
	// placeholder message created by tool artifacts.
	_, placeholderExists := e.timeline.Get(timeline.PlaceholderID)
	realID := timeline.NewMessageID()
	if content.Thought != "" || content.Answer != "" || placeholderExists {
		e.timeline.SetContent(timeline.PlaceholderID, content.Thought, content.Answer)
		e.timeline.Rebind(timeline.PlaceholderID, realID)
	}

	e.logger.Info("run complete",
		"run_id", runID,
		"trigger", trigger,
		"thought_len", len(content.Thought),
		"answer_len", len(content.Answer),
	)
	e.observer.OnFinal(realID, content)
	return true
}

// failRun records a fatal run error and still drives the run to Finalized
// so the engine can start fresh afterwards.
func (e *Engine) failRun(runID uint64, err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()

	e.logger.Warn("run failed", "run_id", runID, "error", err)
	e.observer.OnError(err)
	e.finalizeRun(runID, "transport failure")
}
