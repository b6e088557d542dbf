package stream_test

import (
	"strings"
	"testing"

	"github.com/cvforge/cvforge/internal/stream"
)

func TestMergeIdentity(t *testing.T) {
	t.Parallel()

	t.Run("empty incoming returns prev", func(t *testing.T) {
		t.Parallel()
		if got := stream.Merge("hello world", ""); got != "hello world" {
			t.Errorf("Merge(x, \"\") = %q, want %q", got, "hello world")
		}
	})

	t.Run("empty prev returns incoming", func(t *testing.T) {
		t.Parallel()
		if got := stream.Merge("", "hello world"); got != "hello world" {
			t.Errorf("Merge(\"\", y) = %q, want %q", got, "hello world")
		}
	})

	t.Run("both empty", func(t *testing.T) {
		t.Parallel()
		if got := stream.Merge("", ""); got != "" {
			t.Errorf("Merge(\"\", \"\") = %q, want empty", got)
		}
	})
}

func TestMergeIdempotence(t *testing.T) {
	t.Parallel()

	// Exact duplicate delivery must not grow the canonical text.
	x := "The assistant considered several resume formats."
	if got := stream.Merge(x, x); got != x {
		t.Errorf("Merge(x, x) = %q, want %q", got, x)
	}
}

func TestMergeSupersede(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		prev     string
		incoming string
		want     string
	}{
		{
			name:     "verbatim extension wins",
			prev:     "Your resume highlights",
			incoming: "Your resume highlights strong backend experience.",
			want:     "Your resume highlights strong backend experience.",
		},
		{
			name:     "self duplication artifact collapses",
			prev:     "abc",
			incoming: "abcabc",
			want:     "abc",
		},
		{
			name:     "stale prefix chunk is absorbed",
			prev:     "hello world",
			incoming: "hello",
			want:     "hello world",
		},
		{
			name:     "long repeated fragment is dropped",
			prev:     "The quick brown fox jumps over the lazy dog",
			incoming: "quick brown fox jumps over",
			want:     "The quick brown fox jumps over the lazy dog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := stream.Merge(tt.prev, tt.incoming); got != tt.want {
				t.Errorf("Merge(%q, %q) = %q, want %q", tt.prev, tt.incoming, got, tt.want)
			}
		})
	}
}

func TestMergeOverlapStitching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		prev     string
		incoming string
		want     string
	}{
		{
			name:     "three byte boundary overlap",
			prev:     "hello wor",
			incoming: "world",
			want:     "hello world",
		},
		{
			name:     "word boundary overlap",
			prev:     "The quick brown",
			incoming: "brown fox jumps",
			want:     "The quick brown fox jumps",
		},
		{
			name:     "no overlap falls back to concatenation",
			prev:     "alpha ",
			incoming: "beta",
			want:     "alpha beta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := stream.Merge(tt.prev, tt.incoming); got != tt.want {
				t.Errorf("Merge(%q, %q) = %q, want %q", tt.prev, tt.incoming, got, tt.want)
			}
		})
	}
}

func TestMergeAnchorStitching(t *testing.T) {
	t.Parallel()

	// Chunk restarts mid-text: no suffix/prefix overlap, but the tail of
	// the canonical text appears inside the chunk with new text after it.
	tail := strings.Repeat("x", stream.AnchorWindow)
	prev := "S" + tail
	incoming := "ZZZ" + tail + " and then some"

	want := prev + " and then some"
	if got := stream.Merge(prev, incoming); got != want {
		t.Errorf("anchor stitch = %q, want %q", got, want)
	}
}

func TestMergeDuplicateCollapse(t *testing.T) {
	t.Parallel()

	t.Run("even length self duplicate collapses to first half", func(t *testing.T) {
		t.Parallel()
		if got := stream.Merge("ABCDEFABCDEF", ""); got != "ABCDEF" {
			t.Errorf("Merge = %q, want %q", got, "ABCDEF")
		}
	})

	t.Run("separator delimited duplicate collapses", func(t *testing.T) {
		t.Parallel()
		seg := "This is a long answer."
		got := stream.Merge(seg, seg+"\n\n"+seg)
		if got != seg {
			t.Errorf("Merge = %q, want %q", got, seg)
		}
	})

	t.Run("stale prefix chunk still heals a self duplicated buffer", func(t *testing.T) {
		t.Parallel()
		x := "Let me review your resume."
		got := stream.Merge(x+x, "Let me review")
		if got != x {
			t.Errorf("Merge = %q, want %q", got, x)
		}
	})

	t.Run("contained fragment still heals a self duplicated buffer", func(t *testing.T) {
		t.Parallel()
		x := "Let me review your resume."
		got := stream.Merge(x+x, "review your resume.Let me")
		if got != x {
			t.Errorf("Merge = %q, want %q", got, x)
		}
	})

	t.Run("short segments are left alone", func(t *testing.T) {
		t.Parallel()
		// Below the minimum segment length the separator collapse must
		// not fire: short repeats are often legitimate text.
		got := stream.Merge("ok", "ok\nok")
		if got != "ok\nok" {
			t.Errorf("Merge = %q, want %q", got, "ok\nok")
		}
	})
}

func TestMergeMonotonicGrowth(t *testing.T) {
	t.Parallel()

	// Replaying a realistic chunk sequence, the canonical text must only
	// ever grow or stay equal, never regress.
	chunks := []string{
		"Let me look at",
		"Let me look at your resume",
		"your resume first.",
		"your resume first.", // duplicate delivery
		" Then I will suggest edits.",
	}

	var canon string
	for i, c := range chunks {
		next := stream.Merge(canon, c)
		if len(next) < len(canon) {
			t.Fatalf("chunk %d: canonical text regressed from %q to %q", i, canon, next)
		}
		canon = next
	}

	want := "Let me look at your resume first. Then I will suggest edits."
	if canon != want {
		t.Errorf("final canonical text = %q, want %q", canon, want)
	}
}
