package toolcall

import (
	"fmt"

	"github.com/cvforge/cvforge/internal/log"
	"github.com/cvforge/cvforge/internal/stream"
)

// Router is the per-run state machine that deduplicates and dispatches
// tool_result events. done/error events never pass through here; the engine
// hands those straight to completion and error handling.
//
// Router is not safe for concurrent use. Events within a run arrive in
// strict order on one goroutine, which is the engine's processing model.
type Router struct {
	logger     log.Logger
	dispatcher Dispatcher

	runID uint64
	seen  map[string]struct{}
}

// NewRouter returns a router dispatching to d.
func NewRouter(logger log.Logger, d Dispatcher) *Router {
	return &Router{
		logger:     logger,
		dispatcher: d,
		seen:       make(map[string]struct{}),
	}
}

// Reset clears the dedupe set and binds the router to a new run. Must be
// called whenever a run starts so keys from a superseded run can never
// suppress the new run's events.
func (r *Router) Reset(runID uint64) {
	r.runID = runID
	r.seen = make(map[string]struct{})
}

// Handle inspects one tool_result event and fires its side effect unless the
// same logical occurrence was already applied. Returns true when a side
// effect was dispatched.
func (r *Router) Handle(ev *stream.Event, messageID string) bool {
	if ev.Kind != stream.KindToolResult {
		return false
	}

	key := dedupeKey(r.runID, ev)
	if _, dup := r.seen[key]; dup {
		r.logger.Debug("duplicate tool result dropped", "tool", ev.Tool, "key", key)
		return false
	}
	r.seen[key] = struct{}{}

	switch ev.Tool {
	case ToolWebSearch:
		r.dispatcher.UpsertSearchResult(messageID, normalizeSearch(ev))
	case ToolShowResume:
		if ev.StructuredData == nil || structuredType(ev) == typeResumeSelector {
			r.dispatcher.OpenResumeSelector()
			break
		}
		r.dispatcher.UpsertLoadedResume(messageID, ev.StructuredData)
	case ToolCVEditorAgent:
		if structuredType(ev) != typeResumeEditDiff {
			r.logger.Debug("cv_editor_agent result without edit diff ignored", "type", structuredType(ev))
			return false
		}
		diff := normalizeEditDiff(ev.StructuredData)
		r.dispatcher.UpsertResumeEditDiff(messageID, diff)
		r.dispatcher.ApplyResumeEditDiff(diff)
	default:
		r.logger.Debug("unrecognized tool result ignored", "tool", ev.Tool)
		return false
	}

	return true
}

// dedupeKey derives the deterministic at-most-once key for an event:
// the run id plus, in preference order, the event id, the tool call id, or
// the tool name with the raw content. The prefix tags keep the three id
// spaces from colliding.
func dedupeKey(runID uint64, ev *stream.Event) string {
	switch {
	case ev.ID != "":
		return fmt.Sprintf("%d|id:%s", runID, ev.ID)
	case ev.ToolCallID != "":
		return fmt.Sprintf("%d|call:%s", runID, ev.ToolCallID)
	default:
		return fmt.Sprintf("%d|raw:%s\x00%s", runID, ev.Tool, ev.ChunkText())
	}
}

func structuredType(ev *stream.Event) string {
	t, _ := ev.StructuredData["type"].(string)
	return t
}

// normalizeSearch converts a web_search payload into the canonical stored
// shape. Missing fields degrade to zero values rather than failing; a
// search result with no rows is still worth recording.
func normalizeSearch(ev *stream.Event) SearchResult {
	sr := SearchResult{Type: "search"}
	data := ev.StructuredData
	if data == nil {
		return sr
	}

	sr.Query, _ = data["query"].(string)
	if meta, ok := data["metadata"].(map[string]any); ok {
		sr.Metadata = meta
	}
	switch n := data["total_results"].(type) {
	case float64:
		sr.TotalResults = int(n)
	case int:
		sr.TotalResults = n
	}

	rows, _ := data["results"].([]any)
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		var hit SearchHit
		hit.Title, _ = m["title"].(string)
		hit.URL, _ = m["url"].(string)
		hit.Snippet, _ = m["snippet"].(string)
		sr.Results = append(sr.Results, hit)
	}
	if sr.TotalResults == 0 {
		sr.TotalResults = len(sr.Results)
	}

	return sr
}

func normalizeEditDiff(data map[string]any) ResumeEditDiff {
	var d ResumeEditDiff
	d.Section, _ = data["section"].(string)
	d.Before, _ = data["before"].(string)
	d.After, _ = data["after"].(string)
	d.Summary, _ = data["summary"].(string)
	return d
}
