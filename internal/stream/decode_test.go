package stream_test

import (
	"errors"
	"testing"

	"github.com/cvforge/cvforge/internal/stream"
)

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	t.Run("answer chunk with delta", func(t *testing.T) {
		t.Parallel()

		ev, err := stream.DecodeFrame([]byte(`{"id":"e1","kind":"answer_chunk","payload":{"delta":"Hello","is_complete":false}}`))
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if ev.Kind != stream.KindAnswerChunk {
			t.Errorf("Kind = %q, want answer_chunk", ev.Kind)
		}
		if ev.ID != "e1" {
			t.Errorf("ID = %q, want e1", ev.ID)
		}
		if got := ev.ChunkText(); got != "Hello" {
			t.Errorf("ChunkText = %q, want Hello", got)
		}
	})

	t.Run("tool result with structured data", func(t *testing.T) {
		t.Parallel()

		ev, err := stream.DecodeFrame([]byte(`{"kind":"tool_result","payload":{"tool":"web_search","tool_call_id":"abc","structured_data":{"query":"golang jobs"}}}`))
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if ev.Kind != stream.KindToolResult {
			t.Errorf("Kind = %q, want tool_result", ev.Kind)
		}
		if ev.Tool != "web_search" || ev.ToolCallID != "abc" {
			t.Errorf("tool fields = (%q, %q), want (web_search, abc)", ev.Tool, ev.ToolCallID)
		}
		if ev.StructuredData["query"] != "golang jobs" {
			t.Errorf("StructuredData = %v", ev.StructuredData)
		}
	})

	t.Run("agent_error maps to error kind", func(t *testing.T) {
		t.Parallel()

		ev, err := stream.DecodeFrame([]byte(`{"kind":"agent_error","payload":{"content":"model unavailable"}}`))
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if ev.Kind != stream.KindError {
			t.Errorf("Kind = %q, want error", ev.Kind)
		}
	})

	t.Run("unknown kind preserved for forward compatibility", func(t *testing.T) {
		t.Parallel()

		ev, err := stream.DecodeFrame([]byte(`{"kind":"telemetry_blip","payload":{}}`))
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if ev.Kind != stream.KindUnknown {
			t.Errorf("Kind = %q, want unknown", ev.Kind)
		}
		if ev.RawKind != "telemetry_blip" {
			t.Errorf("RawKind = %q, want telemetry_blip", ev.RawKind)
		}
	})

	t.Run("malformed json is a protocol error", func(t *testing.T) {
		t.Parallel()

		_, err := stream.DecodeFrame([]byte(`{"kind":`))
		if !errors.Is(err, stream.ErrMalformedFrame) {
			t.Errorf("err = %v, want ErrMalformedFrame", err)
		}
	})

	t.Run("missing kind is a protocol error", func(t *testing.T) {
		t.Parallel()

		_, err := stream.DecodeFrame([]byte(`{"payload":{"delta":"x"}}`))
		if !errors.Is(err, stream.ErrMalformedFrame) {
			t.Errorf("err = %v, want ErrMalformedFrame", err)
		}
	})
}

func TestChunkTextPreference(t *testing.T) {
	t.Parallel()

	ev := stream.Event{Delta: "d", Content: "c", Text: "t", Result: "r"}
	if got := ev.ChunkText(); got != "d" {
		t.Errorf("ChunkText = %q, want delta first", got)
	}

	ev.Delta = ""
	if got := ev.ChunkText(); got != "c" {
		t.Errorf("ChunkText = %q, want content second", got)
	}

	ev.Content = ""
	if got := ev.ChunkText(); got != "t" {
		t.Errorf("ChunkText = %q, want text third", got)
	}

	ev.Text = ""
	if got := ev.ChunkText(); got != "r" {
		t.Errorf("ChunkText = %q, want result last", got)
	}
}

func TestIsCompletionSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   stream.Event
		want bool
	}{
		{"done event", stream.Event{Kind: stream.KindDone}, true},
		{"status complete", stream.Event{Kind: stream.KindStatus, Status: "complete"}, true},
		{"status DONE uppercase", stream.Event{Kind: stream.KindStatus, Status: "DONE"}, true},
		{"status complete in content", stream.Event{Kind: stream.KindStatus, Content: "Complete"}, true},
		{"status complete in result", stream.Event{Kind: stream.KindStatus, Result: "done"}, true},
		{"status in progress", stream.Event{Kind: stream.KindStatus, Status: "searching"}, false},
		{"final answer chunk", stream.Event{Kind: stream.KindAnswerChunk, IsComplete: true}, true},
		{"ordinary answer chunk", stream.Event{Kind: stream.KindAnswerChunk, Delta: "hi"}, false},
		{"thought chunk never completes", stream.Event{Kind: stream.KindThoughtChunk, IsComplete: true}, false},
		{"error is not completion", stream.Event{Kind: stream.KindError}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.ev.IsCompletionSignal(); got != tt.want {
				t.Errorf("IsCompletionSignal() = %v, want %v", got, tt.want)
			}
		})
	}
}
