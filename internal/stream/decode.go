package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedFrame indicates a frame that could not be decoded.
// Callers skip the frame and keep consuming; one bad frame never
// aborts the stream.
var ErrMalformedFrame = errors.New("malformed event frame")

// frame mirrors the wire shape: a kind string plus a loosely-typed payload.
type frame struct {
	ID      string  `json:"id,omitempty"`
	Kind    string  `json:"kind"`
	Payload payload `json:"payload"`
}

type payload struct {
	Content        string         `json:"content,omitempty"`
	Delta          string         `json:"delta,omitempty"`
	Result         string         `json:"result,omitempty"`
	Text           string         `json:"text,omitempty"`
	IsComplete     bool           `json:"is_complete,omitempty"`
	Tool           string         `json:"tool,omitempty"`
	ToolCallID     string         `json:"tool_call_id,omitempty"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
	Status         string         `json:"status,omitempty"`
}

// DecodeFrame parses one JSON frame into an Event.
//
// Unknown kind strings produce a KindUnknown event with RawKind preserved
// rather than an error; only undecodable JSON or a missing kind is malformed.
func DecodeFrame(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	kind := strings.ToLower(strings.TrimSpace(f.Kind))
	if kind == "" {
		return Event{}, fmt.Errorf("%w: missing kind", ErrMalformedFrame)
	}

	ev := Event{
		ID:             f.ID,
		Content:        f.Payload.Content,
		Delta:          f.Payload.Delta,
		Result:         f.Payload.Result,
		Text:           f.Payload.Text,
		IsComplete:     f.Payload.IsComplete,
		Tool:           f.Payload.Tool,
		ToolCallID:     f.Payload.ToolCallID,
		StructuredData: f.Payload.StructuredData,
		Status:         f.Payload.Status,
	}

	switch kind {
	case "thought":
		ev.Kind = KindThought
	case "thought_chunk":
		ev.Kind = KindThoughtChunk
	case "answer":
		ev.Kind = KindAnswer
	case "answer_chunk":
		ev.Kind = KindAnswerChunk
	case "tool_result":
		ev.Kind = KindToolResult
	case "done":
		ev.Kind = KindDone
	case "status":
		ev.Kind = KindStatus
	case "error", "agent_error":
		ev.Kind = KindError
	default:
		ev.Kind = KindUnknown
		ev.RawKind = kind
	}

	return ev, nil
}

// IsCompletionSignal reports whether the event should trigger run completion:
// an explicit done, a status frame saying complete/done, or an answer chunk
// flagged as the final one.
func (e *Event) IsCompletionSignal() bool {
	switch e.Kind {
	case KindDone:
		return true
	case KindStatus:
		return isCompleteWord(e.Status) || isCompleteWord(e.Content) || isCompleteWord(e.Result)
	case KindAnswer, KindAnswerChunk:
		return e.IsComplete
	default:
		return false
	}
}

func isCompleteWord(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "complete" || s == "done"
}
