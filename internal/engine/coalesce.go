package engine

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Observer receives consumer-facing updates from the engine. OnUpdate calls
// are coalesced to a fixed cadence; OnFinal and OnError always fire.
// Implementations must be safe to call from the engine goroutine.
type Observer interface {
	// OnUpdate delivers the latest normalized channel views.
	OnUpdate(thought, answer string)

	// OnFinal delivers the immutable finalized content and the real
	// message id it was committed under.
	OnFinal(messageID string, content FinalizedContent)

	// OnError surfaces the run's last error. Never called for
	// caller-requested cancellation.
	OnError(err error)
}

// coalescer throttles OnUpdate to a fixed cadence so high-frequency chunk
// arrival doesn't overwhelm the consumer. Only downstream observation is
// coalesced; the canonical buffers are always updated synchronously before
// publish is called. It also remembers the last values actually delivered,
// which Resolve uses as the externally observed state.
type coalescer struct {
	observer Observer
	limiter  *rate.Limiter

	mu             sync.Mutex
	lastThought    string
	lastAnswer     string
	pending        bool
	pendingThought string
	pendingAnswer  string
}

// defaultUpdateInterval approximates one animation frame.
const defaultUpdateInterval = 16 * time.Millisecond

func newCoalescer(observer Observer, interval time.Duration) *coalescer {
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	return &coalescer{
		observer: observer,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// publish forwards the views to the observer if the cadence allows,
// otherwise parks them for the next flush.
func (c *coalescer) publish(thought, answer string) {
	c.mu.Lock()
	if !c.limiter.Allow() {
		c.pending = true
		c.pendingThought = thought
		c.pendingAnswer = answer
		c.mu.Unlock()
		return
	}
	c.pending = false
	c.lastThought = thought
	c.lastAnswer = answer
	c.mu.Unlock()

	c.observer.OnUpdate(thought, answer)
}

// flush delivers any parked update immediately, ignoring the cadence.
// Called at finalization so the consumer never misses the last state.
func (c *coalescer) flush() {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return
	}
	thought, answer := c.pendingThought, c.pendingAnswer
	c.pending = false
	c.lastThought = thought
	c.lastAnswer = answer
	c.mu.Unlock()

	c.observer.OnUpdate(thought, answer)
}

// observed returns the channel views last delivered to the observer.
func (c *coalescer) observed() (thought, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastThought, c.lastAnswer
}

// reset clears delivery state for a new run.
func (c *coalescer) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastThought = ""
	c.lastAnswer = ""
	c.pending = false
	c.pendingThought = ""
	c.pendingAnswer = ""
}
