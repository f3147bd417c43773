package telemetry_test

import (
	"testing"
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type recordingObserver struct {
	events []telemetry.TransitionEvent
}

func (r *recordingObserver) ObserveTransition(e telemetry.TransitionEvent) {
	r.events = append(r.events, e)
}

func TestMultiObserverFansOutInOrder(t *testing.T) {
	var first, second recordingObserver
	multi := telemetry.MultiObserver{&first, &second}

	event := telemetry.TransitionEvent{
		Timestamp: time.Now(),
		PlanID:    "plan-1",
		NodeID:    "root",
		State:     domain.StateFinished,
		Outcome:   domain.OutcomeSuccess,
		Failure:   domain.FailureNone,
	}
	multi.ObserveTransition(event)

	assert.Equal(t, []telemetry.TransitionEvent{event}, first.events)
	assert.Equal(t, []telemetry.TransitionEvent{event}, second.events)
}

func TestLoggingObserverDoesNotPanicOnNopLogger(t *testing.T) {
	obs := telemetry.LoggingObserver{Log: zerolog.Nop()}
	assert.NotPanics(t, func() {
		obs.ObserveTransition(telemetry.TransitionEvent{
			PlanID:  "plan-1",
			NodeID:  "n1",
			State:   domain.StateExecuting,
			Outcome: domain.OutcomeNone,
			Failure: domain.FailureNone,
		})
	})
}
