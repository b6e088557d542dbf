package engine

import (
	"sync"

	"github.com/cvforge/cvforge/internal/log"
)

// completionState is the per-run completion state machine.
type completionState int

const (
	stateActive completionState = iota
	stateFinalized
)

// completion decides the single moment a run finishes. Multiple redundant
// triggers race for it: an explicit done event, a status frame saying
// complete, an answer chunk flagged final, the transport closing with
// content buffered, or the caller canceling. Exactly one performs the
// transition; the finalized flag flips before the resolve callback runs so
// every later trigger is a no-op.
type completion struct {
	logger log.Logger

	mu    sync.Mutex
	runID uint64
	state completionState
}

func newCompletion(logger log.Logger) *completion {
	return &completion{logger: logger}
}

// reset rearms the state machine for a new run. A trigger still carrying a
// superseded run id can never finalize the new run.
func (c *completion) reset(runID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runID = runID
	c.state = stateActive
}

// tryFinalize attempts the Active -> Finalized transition for the given
// run. The first matching caller wins and gets the resolved content;
// everyone else, including triggers from superseded runs, gets ok=false.
// resolve runs under the lock, after the flag flips, so a re-entrant
// trigger from inside a callback still sees the run as finalized.
func (c *completion) tryFinalize(runID uint64, trigger string, resolve func() FinalizedContent) (FinalizedContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if runID != c.runID {
		c.logger.Debug("completion signal for superseded run ignored", "run_id", runID, "trigger", trigger)
		return FinalizedContent{}, false
	}
	if c.state == stateFinalized {
		c.logger.Debug("redundant completion signal ignored", "trigger", trigger)
		return FinalizedContent{}, false
	}
	c.state = stateFinalized
	c.logger.Debug("run finalized", "run_id", runID, "trigger", trigger)
	return resolve(), true
}

// finalized reports whether the current run already completed.
func (c *completion) finalized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateFinalized
}
