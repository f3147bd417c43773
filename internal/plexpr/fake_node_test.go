package plexpr

import (
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
)

// fakeNode is a minimal NodeHandle test double.
type fakeNode struct {
	state   domain.NodeState
	outcome domain.NodeOutcome
	failure domain.FailureType
	entered map[domain.NodeState]time.Time
}

func (f *fakeNode) NodeState() domain.NodeState     { return f.state }
func (f *fakeNode) NodeOutcome() domain.NodeOutcome { return f.outcome }
func (f *fakeNode) NodeFailure() domain.FailureType { return f.failure }
func (f *fakeNode) TimepointEntered(s domain.NodeState) (time.Time, bool) {
	t, ok := f.entered[s]
	return t, ok
}
