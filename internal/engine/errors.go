// Package engine owns the lifecycle of streamed assistant runs: one run per
// user turn, reconciled from a noisy at-least-once event stream into a single
// finalized message.
package engine

import "errors"

// Sentinel errors checked with errors.Is().
//
// Cancellation requested by the caller (a superseding run or Disconnect) is
// deliberately absent: it is reported as context.Canceled internally and
// never surfaced as a run error.
var (
	// ErrTransport indicates the connection dropped or the backend
	// answered non-2xx. The run is torn down; the engine stays usable.
	ErrTransport = errors.New("transport error")

	// ErrAgent indicates the backend reported an application-level error
	// event. The run may still produce content afterwards.
	ErrAgent = errors.New("agent error")

	// ErrNoRun indicates an operation that needs a live run when none is
	// active.
	ErrNoRun = errors.New("no active run")
)
