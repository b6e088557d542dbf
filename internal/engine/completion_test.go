package engine

import (
	"sync"
	"testing"

	"github.com/cvforge/cvforge/internal/log"
)

func TestCompletionFirstTriggerWins(t *testing.T) {
	t.Parallel()

	c := newCompletion(log.NewNop())
	c.reset(1)

	resolved := 0
	resolve := func() FinalizedContent {
		resolved++
		return FinalizedContent{Answer: "final"}
	}

	content, ok := c.tryFinalize(1, "done", resolve)
	if !ok || content.Answer != "final" {
		t.Fatalf("first trigger: content=%+v ok=%v", content, ok)
	}

	// Every redundant signal is a no-op.
	for _, trigger := range []string{"status", "is_complete", "stream end"} {
		if _, ok := c.tryFinalize(1, trigger, resolve); ok {
			t.Errorf("trigger %q finalized an already-finalized run", trigger)
		}
	}

	if resolved != 1 {
		t.Errorf("resolve ran %d times, want exactly once", resolved)
	}
}

func TestCompletionSupersededRunIgnored(t *testing.T) {
	t.Parallel()

	c := newCompletion(log.NewNop())
	c.reset(2)

	if _, ok := c.tryFinalize(1, "late done", func() FinalizedContent { return FinalizedContent{} }); ok {
		t.Error("trigger for superseded run must not finalize the current one")
	}
	if c.finalized() {
		t.Error("current run marked finalized by a stale trigger")
	}
}

func TestCompletionResetRearms(t *testing.T) {
	t.Parallel()

	c := newCompletion(log.NewNop())
	c.reset(1)
	c.tryFinalize(1, "done", func() FinalizedContent { return FinalizedContent{} })

	c.reset(2)
	if c.finalized() {
		t.Fatal("reset did not rearm the state machine")
	}
	if _, ok := c.tryFinalize(2, "done", func() FinalizedContent { return FinalizedContent{} }); !ok {
		t.Error("new run could not finalize after reset")
	}
}

func TestCompletionConcurrentTriggers(t *testing.T) {
	t.Parallel()

	c := newCompletion(log.NewNop())
	c.reset(1)

	var mu sync.Mutex
	resolved := 0
	wins := 0

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := c.tryFinalize(1, "racer", func() FinalizedContent {
				mu.Lock()
				resolved++
				mu.Unlock()
				return FinalizedContent{}
			})
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d triggers won, want exactly 1", wins)
	}
	if resolved != 1 {
		t.Errorf("resolve ran %d times, want exactly once", resolved)
	}
}
