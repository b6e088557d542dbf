// Package toolcall routes structured tool results from the event stream to
// their side effects, guaranteeing at-most-once application per logical
// occurrence. Transport redelivery is expected; dedupe keys make it harmless.
package toolcall

// Tool names the backend emits results for.
const (
	ToolWebSearch     = "web_search"
	ToolShowResume    = "show_resume"
	ToolCVEditorAgent = "cv_editor_agent"
)

// Structured payload type discriminators.
const (
	typeResumeSelector = "resume_selector"
	typeResumeEditDiff = "resume_edit_diff"
)

// SearchHit is one normalized web search result row.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResult is the normalized shape stored against a message after a
// web_search tool call.
type SearchResult struct {
	Type         string         `json:"type"` // always "search"
	Query        string         `json:"query"`
	Results      []SearchHit    `json:"results"`
	TotalResults int            `json:"total_results"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ResumeEditDiff describes one edit the assistant applied to the live
// resume document.
type ResumeEditDiff struct {
	Section string `json:"section"`
	Before  string `json:"before"`
	After   string `json:"after"`
	Summary string `json:"summary"`
}

// Dispatcher receives the side effects the router decides to fire.
// Implementations do not need to be idempotent; the router's dedupe
// guarantees each logical occurrence is dispatched once.
type Dispatcher interface {
	// UpsertSearchResult attaches normalized search results to a message.
	// messageID may still be the placeholder id; the timeline rebinds it
	// at finalization.
	UpsertSearchResult(messageID string, data SearchResult)

	// UpsertLoadedResume attaches a loaded resume reference to a message.
	UpsertLoadedResume(messageID string, data map[string]any)

	// UpsertResumeEditDiff records an edit diff against a message.
	UpsertResumeEditDiff(messageID string, data ResumeEditDiff)

	// ApplyResumeEditDiff applies the edit to the live document.
	ApplyResumeEditDiff(data ResumeEditDiff)

	// OpenResumeSelector opens the resume picker UI.
	OpenResumeSelector()
}
