// Package telemetry is the ambient observability stack: structured
// scheduler/node logging, an append-only transition audit trail, and a
// live trace broadcaster for external dashboards. None of it feeds back
// into Exec scheduling decisions — every type here is a pure observer of
// transitions the scheduler has already committed.
package telemetry

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/arclight-systems/planexec/internal/domain"
)

// NewLogger builds the package-wide zerolog.Logger used by the scheduler
// and the trace/audit observers below. pretty selects a human-readable
// console writer (development) over structured JSON (production).
func NewLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// TransitionEvent is one committed Node transition, the unit both the
// audit store and the websocket broadcaster consume.
type TransitionEvent struct {
	Timestamp time.Time
	PlanID    string
	NodeID    string
	State     domain.NodeState
	Outcome   domain.NodeOutcome
	Failure   domain.FailureType
}

// TransitionObserver receives every committed transition. Scheduler.Log
// covers human-operator debugging; an Observer is how a plan's
// transition history reaches the audit store and any live dashboard
// without the scheduler importing either one directly.
type TransitionObserver interface {
	ObserveTransition(TransitionEvent)
}

// LoggingObserver re-emits every transition as a zerolog debug line,
// the same call shape the scheduler already uses directly — extracted
// here so a caller that wants both console logging and an audit
// trail/broadcaster can compose them with MultiObserver instead of the
// scheduler knowing about more than one sink.
type LoggingObserver struct {
	Log zerolog.Logger
}

func (o LoggingObserver) ObserveTransition(e TransitionEvent) {
	o.Log.Debug().
		Str("plan", e.PlanID).
		Str("node", e.NodeID).
		Str("state", e.State.String()).
		Str("outcome", e.Outcome.String()).
		Str("failure", e.Failure.String()).
		Msg("transition")
}

// MultiObserver fans one transition out to every wrapped observer, in
// order, on the caller's own goroutine.
type MultiObserver []TransitionObserver

func (m MultiObserver) ObserveTransition(e TransitionEvent) {
	for _, o := range m {
		o.ObserveTransition(e)
	}
}
