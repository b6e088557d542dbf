package stream

import "strings"

// Channel-leading markers some backends prepend to chunk text. Matched
// case-insensitively.
const (
	thoughtMarker  = "thought:"
	responseMarker = "response:"
)

// NormalizeThought strips a leading "Thought:" or "Response:" label from the
// thought channel's canonical text. Text without a marker passes through
// untouched.
func NormalizeThought(raw string) string {
	s := strings.TrimLeft(raw, " \t\r\n")
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, thoughtMarker):
		return strings.TrimLeft(s[len(thoughtMarker):], " \t")
	case strings.HasPrefix(lower, responseMarker):
		return strings.TrimLeft(s[len(responseMarker):], " \t")
	}
	return raw
}

// NormalizeAnswer extracts the user-visible answer from the answer channel's
// canonical text.
//
// Some backends leak thinking text into the answer channel before the
// "Response:" marker arrives. Until the marker shows up, a buffer that opens
// with "Thought:" is suppressed entirely; once the marker is present only
// the text after it is returned.
func NormalizeAnswer(raw string) string {
	lower := strings.ToLower(raw)
	if i := strings.Index(lower, responseMarker); i >= 0 {
		return strings.TrimLeft(raw[i+len(responseMarker):], " \t\r\n")
	}

	s := strings.TrimLeft(raw, " \t\r\n")
	if strings.HasPrefix(strings.ToLower(s), thoughtMarker) {
		return ""
	}

	return raw
}
