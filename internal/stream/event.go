// Package stream defines the framed event model for a single assistant turn
// and the pure text-reconciliation primitives applied to it.
//
// The backend delivers a turn as a sequence of framed events over one logical
// connection. Delivery is at-least-once and may be out of order: chunks can be
// duplicated, overlap at their boundaries, or arrive as full rewrites of text
// already seen. Everything in this package is side-effect free; stateful run
// handling lives in internal/engine.
package stream

// Kind identifies the event variant carried by a frame.
type Kind string

// Event kinds observed on the wire. Unknown kinds decode to KindUnknown so a
// newer backend can add variants without breaking older clients.
const (
	KindThought      Kind = "thought"
	KindThoughtChunk Kind = "thought_chunk"
	KindAnswer       Kind = "answer"
	KindAnswerChunk  Kind = "answer_chunk"
	KindToolResult   Kind = "tool_result"
	KindDone         Kind = "done"
	KindStatus       Kind = "status"
	KindError        Kind = "error"
	KindUnknown      Kind = "unknown"
)

// Event is the closed tagged union decoded from one frame.
// Payload fields are optional on the wire; absent fields stay zero.
type Event struct {
	// ID is the backend's event identifier, when present. Used as the
	// preferred component of tool dedupe keys.
	ID string

	Kind Kind

	// Text-bearing payload fields. Backends are inconsistent about which
	// one carries the chunk; ChunkText picks in a fixed preference order.
	Content string
	Delta   string
	Result  string
	Text    string

	// IsComplete marks an answer chunk as the final one for the turn.
	IsComplete bool

	// Tool call fields, set on KindToolResult.
	Tool           string
	ToolCallID     string
	StructuredData map[string]any

	// Status is set on KindStatus frames ("complete", "done", ...).
	Status string

	// RawKind preserves the wire kind string for KindUnknown events.
	RawKind string
}

// ChunkText returns the text fragment carried by the event: the first
// non-empty of delta, content, text, result. Empty when the event carries
// no channel text.
func (e *Event) ChunkText() string {
	switch {
	case e.Delta != "":
		return e.Delta
	case e.Content != "":
		return e.Content
	case e.Text != "":
		return e.Text
	default:
		return e.Result
	}
}

// IsThought reports whether the event feeds the thought channel.
func (e *Event) IsThought() bool {
	return e.Kind == KindThought || e.Kind == KindThoughtChunk
}

// IsAnswer reports whether the event feeds the answer channel.
func (e *Event) IsAnswer() bool {
	return e.Kind == KindAnswer || e.Kind == KindAnswerChunk
}
