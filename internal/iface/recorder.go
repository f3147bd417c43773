package iface

import (
	"sync"

	"github.com/arclight-systems/planexec/internal/plexpr"
)

// Recorder is an in-memory ExternalInterface test double: commands,
// assignments and updates are recorded. PerformAssignment,
// SendPlannerUpdate and AbortCommand invoke their callbacks synchronously
// before returning; ExecuteCommand only records its callbacks, and a test
// fires them later (FireCommandHandle), which lets it control exactly
// when command progress lands relative to the scheduler's inbound-queue
// drain.
type Recorder struct {
	mu sync.Mutex

	Commands    []RecordedCommand
	Assignments []RecordedAssignment
	Updates     []RecordedUpdate
	Lookups     map[string]any

	nextSub SubscriptionHandle
	subs    map[SubscriptionHandle]func(any)
}

type RecordedCommand struct {
	Name        string
	Args        []any
	Resources   []ResourceRequest
	OnHandle    func(CommandHandle)
	OnReturn    func(any)
	OnAbortAck  func(bool)
}

type RecordedAssignment struct {
	Dest  any
	Value any
	OnAck func(bool)
}

type RecordedUpdate struct {
	Name  string
	Pairs map[string]any
	OnAck func(bool)
}

// NewRecorder builds an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{Lookups: make(map[string]any), subs: make(map[SubscriptionHandle]func(any))}
}

func (r *Recorder) ExecuteCommand(name string, args []any, resources []ResourceRequest,
	onHandle func(CommandHandle), onReturn func(any), onAbortAck func(bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, RecordedCommand{name, args, resources, onHandle, onReturn, onAbortAck})
}

func (r *Recorder) AbortCommand(name string, args []any, onAbortAck func(bool)) {
	if onAbortAck != nil {
		onAbortAck(true)
	}
}

func (r *Recorder) PerformAssignment(dest plexpr.Assignable, value any, onAck func(bool)) {
	r.mu.Lock()
	r.Assignments = append(r.Assignments, RecordedAssignment{dest, value, onAck})
	r.mu.Unlock()
	ok := dest.SetValue(value)
	if onAck != nil {
		onAck(ok)
	}
}

func (r *Recorder) SendPlannerUpdate(name string, pairs map[string]any, onAck func(bool)) {
	r.mu.Lock()
	r.Updates = append(r.Updates, RecordedUpdate{name, pairs, onAck})
	r.mu.Unlock()
	if onAck != nil {
		onAck(true)
	}
}

func (r *Recorder) LookupNow(stateName string, args []any) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Lookups[stateName]
	return v, ok
}

func (r *Recorder) SubscribeLookup(stateName string, args []any, onChange func(any)) SubscriptionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	r.subs[r.nextSub] = onChange
	return r.nextSub
}

func (r *Recorder) UnsubscribeLookup(h SubscriptionHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, h)
}

func (r *Recorder) CurrentTime() float64 { return 0 }

// SetLookup updates a state value and notifies any live subscribers —
// the test-side equivalent of an external telemetry update arriving.
func (r *Recorder) SetLookup(stateName string, value any) {
	r.mu.Lock()
	r.Lookups[stateName] = value
	subs := make([]func(any), 0, len(r.subs))
	for _, cb := range r.subs {
		subs = append(subs, cb)
	}
	r.mu.Unlock()
	for _, cb := range subs {
		cb(value)
	}
}

// FireCommandHandle resolves the nth recorded command's onHandle
// callback, as if the external system had reported progress.
func (r *Recorder) FireCommandHandle(i int, h CommandHandle) {
	r.mu.Lock()
	cmd := r.Commands[i]
	r.mu.Unlock()
	if cmd.OnHandle != nil {
		cmd.OnHandle(h)
	}
}
