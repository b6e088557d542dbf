package engine

import (
	"github.com/cvforge/cvforge/internal/log"
	"github.com/cvforge/cvforge/internal/stream"
)

// Snapshot is a point-in-time capture of both channels, used only as a
// completion-time fallback. Valid only while CapturedAtRun matches the
// current run id.
type Snapshot struct {
	Thought       string
	Answer        string
	CapturedAtRun uint64
}

// FinalizedContent is the immutable result of one run. Computed exactly
// once at finalization, never retroactively mutated.
type FinalizedContent struct {
	Thought string
	Answer  string
}

// Controller owns the mutable state of the live run: the canonical channel
// buffers, the run counter, and the fallback snapshot. All buffer mutation
// happens synchronously on the event-processing goroutine; the Engine guards
// cross-goroutine access.
type Controller struct {
	logger log.Logger

	runID    uint64
	thought  string // raw canonical text, markers intact
	answer   string
	snapshot *Snapshot
}

// NewController returns a controller with no run started; the first
// StartRun yields run id 1.
func NewController(logger log.Logger) *Controller {
	return &Controller{logger: logger}
}

// StartRun begins a new run: the run counter increments by exactly one and
// every piece of per-run state resets atomically with it. Events tagged with
// a prior run id can never mutate the fresh state because callers compare
// against the returned id.
func (c *Controller) StartRun() uint64 {
	c.runID++
	c.thought = ""
	c.answer = ""
	c.snapshot = nil
	c.logger.Debug("run started", "run_id", c.runID)
	return c.runID
}

// RunID returns the current run identifier. Zero means no run has started.
func (c *Controller) RunID() uint64 {
	return c.runID
}

// AppendThought merges a chunk into the thought channel's canonical text.
func (c *Controller) AppendThought(chunk string) {
	c.thought = stream.Merge(c.thought, chunk)
}

// AppendAnswer merges a chunk into the answer channel's canonical text.
func (c *Controller) AppendAnswer(chunk string) {
	c.answer = stream.Merge(c.answer, chunk)
}

// Thought returns the normalized thought channel view.
func (c *Controller) Thought() string {
	return stream.NormalizeThought(c.thought)
}

// Answer returns the normalized user-visible answer view. Empty while the
// buffer holds only pre-marker thinking text.
func (c *Controller) Answer() string {
	return stream.NormalizeAnswer(c.answer)
}

// CaptureSnapshot stores the current normalized views as the run's fallback
// snapshot when both channels have content, overwriting any earlier capture
// for the same run. Called opportunistically on every merge; some transport
// paths terminate without a final flush and this is what survives them.
func (c *Controller) CaptureSnapshot() {
	thought, answer := c.Thought(), c.Answer()
	if thought == "" || answer == "" {
		return
	}
	c.snapshot = &Snapshot{Thought: thought, Answer: answer, CapturedAtRun: c.runID}
}

// Resolve computes the final content with the three-tier preference order:
// the live buffer if non-empty, else the externally observed state value,
// else the snapshot when it belongs to the current run. The observed state
// can lag the buffers during high-frequency updates, which is why the live
// buffer outranks it.
func (c *Controller) Resolve(stateThought, stateAnswer string) FinalizedContent {
	final := FinalizedContent{
		Thought: c.Thought(),
		Answer:  c.Answer(),
	}

	if final.Thought == "" {
		final.Thought = stateThought
	}
	if final.Answer == "" {
		final.Answer = stateAnswer
	}

	if snap := c.snapshot; snap != nil && snap.CapturedAtRun == c.runID {
		if final.Thought == "" {
			final.Thought = snap.Thought
		}
		if final.Answer == "" {
			final.Answer = snap.Answer
		}
	}

	return final
}
