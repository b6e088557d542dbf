package stream

import "strings"

// Reconciliation windows. Empirically tuned against observed backend
// retransmission behavior; adjust here, not at call sites.
const (
	// OverlapWindow bounds the suffix/prefix overlap search to the last
	// OverlapWindow bytes of the canonical text.
	OverlapWindow = 200

	// AnchorWindow is the length of the canonical-text tail used as a
	// search anchor inside an incoming chunk when no clean overlap exists.
	AnchorWindow = 100

	// StaleFragmentMin is the length above which a chunk already contained
	// in the canonical text is treated as a stale retransmission and
	// dropped instead of re-appended.
	StaleFragmentMin = 20
)

// duplicateSegmentMin is the minimum first-segment length for the
// separator-based duplicate collapse to fire.
const duplicateSegmentMin = 20

// Merge folds one incoming chunk into a channel's canonical running text.
//
// Backends do not reliably send true deltas: a chunk may duplicate earlier
// text, extend it verbatim, partially repeat the boundary, or retransmit a
// rewritten copy of everything so far. Merge reconstructs a single
// monotonically growing string from that, rule by rule, first match wins:
//
//  1. Empty input is identity (the canonical text is still re-collapsed,
//     so a self-duplicated buffer heals on the next touch).
//  2. incoming extends prev: take incoming, unless the appended tail is
//     just prev again (self-duplication artifact).
//  3. prev extends incoming: the chunk is stale, keep prev (re-collapsed).
//  4. A long chunk already contained in prev is a stale retransmission;
//     keep prev (re-collapsed).
//  5. Stitch the longest prev-suffix / incoming-prefix overlap, searched
//     within the last OverlapWindow bytes.
//  6. Find the AnchorWindow-byte tail of prev inside incoming and append
//     whatever follows it.
//  7. Fall back to plain concatenation.
//
// Every produced result passes through a duplicate-collapse step that undoes
// whole-text or separator-delimited self-duplication.
func Merge(prev, incoming string) string {
	if incoming == "" {
		return collapseDuplicate(prev)
	}
	if prev == "" {
		return incoming
	}

	if strings.HasPrefix(incoming, prev) {
		if incoming[len(prev):] == prev {
			return prev
		}
		return collapseDuplicate(incoming)
	}

	if strings.HasPrefix(prev, incoming) {
		return collapseDuplicate(prev)
	}

	if len(incoming) > StaleFragmentMin && strings.Contains(prev, incoming) {
		return collapseDuplicate(prev)
	}

	if merged, ok := stitchOverlap(prev, incoming); ok {
		return collapseDuplicate(merged)
	}

	if merged, ok := stitchAnchor(prev, incoming); ok {
		return collapseDuplicate(merged)
	}

	return collapseDuplicate(prev + incoming)
}

// stitchOverlap joins prev and incoming on the longest suffix of prev that
// equals a prefix of incoming, bounded to the last OverlapWindow bytes.
func stitchOverlap(prev, incoming string) (string, bool) {
	maxK := min(len(prev), OverlapWindow, len(incoming))
	for k := maxK; k > 0; k-- {
		if prev[len(prev)-k:] == incoming[:k] {
			return prev + incoming[k:], true
		}
	}
	return "", false
}

// stitchAnchor locates the tail of prev inside incoming and appends what
// follows it. Handles chunks that restart mid-text instead of at the
// boundary. An anchor found at the very end of incoming contributes nothing
// and is rejected.
func stitchAnchor(prev, incoming string) (string, bool) {
	anchor := prev
	if len(anchor) > AnchorWindow {
		anchor = anchor[len(anchor)-AnchorWindow:]
	}
	p := strings.Index(incoming, anchor)
	if p < 0 || p+len(anchor) >= len(incoming) {
		return "", false
	}
	return prev + incoming[p+len(anchor):], true
}

// collapseDuplicate undoes self-duplication artifacts: a text whose first
// half equals its second half collapses to the first half, and a text of
// the form "X<sep>X" (separator "\n\n", "\n", or two spaces) collapses to X
// when X is at least duplicateSegmentMin bytes.
func collapseDuplicate(s string) string {
	n := len(s)
	if n == 0 {
		return s
	}
	if n%2 == 0 && s[:n/2] == s[n/2:] {
		return s[:n/2]
	}
	for _, sep := range []string{"\n\n", "\n", "  "} {
		from := 0
		for {
			i := strings.Index(s[from:], sep)
			if i < 0 {
				break
			}
			i += from
			before, after := s[:i], s[i+len(sep):]
			if len(before) >= duplicateSegmentMin && before == after {
				return before
			}
			from = i + 1
		}
	}
	return s
}
