// Package planexec is the public facade over the plan execution core: it
// wires internal/planxml, internal/scheduler, internal/library and
// internal/telemetry into the one constructor most callers need
// (NewEngine) while still exposing the internal types directly for
// callers that want finer control.
package planexec

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/iface"
	"github.com/arclight-systems/planexec/internal/library"
	"github.com/arclight-systems/planexec/internal/node"
	"github.com/arclight-systems/planexec/internal/planxml"
	"github.com/arclight-systems/planexec/internal/scheduler"
	"github.com/arclight-systems/planexec/internal/telemetry"
)

// Re-exported so callers can depend on the planexec package alone for
// the types they pass across this facade's boundary.
type (
	Node               = node.Node
	NodeState          = domain.NodeState
	NodeOutcome        = domain.NodeOutcome
	FailureType        = domain.FailureType
	Scheduler          = scheduler.Scheduler
	ConflictPolicy     = scheduler.ConflictPolicy
	ExternalInterface  = iface.ExternalInterface
	Catalog            = library.Catalog
	Template           = library.Template
	TransitionEvent    = telemetry.TransitionEvent
	TransitionObserver = telemetry.TransitionObserver
)

// EngineConfig configures the engine a caller assembles with NewEngine.
// Fields left zero get the same defaults cmd/planrun applies.
type EngineConfig struct {
	// PlanID tags every transition this engine's scheduler reports to
	// Observer and appears in the telemetry stream.
	PlanID string

	// External is the adapter through which node bodies dispatch
	// Command/Assignment/Update execution and Lookup resolution. A
	// caller with no external actions can pass iface.NewRecorder().
	External iface.ExternalInterface

	// Observer receives every committed state transition. Compose
	// multiple sinks (a log, an audit store, a live trace hub) with
	// telemetry.MultiObserver. Nil disables telemetry entirely.
	Observer telemetry.TransitionObserver

	// Policy resolves Assignment conflicts at the end of a macro-step.
	// A nil Policy falls back to scheduler.DefaultPolicy.
	Policy scheduler.ConflictPolicy

	Log zerolog.Logger
}

// Engine owns one loaded plan's Catalog and Loader and produces a ready
// Scheduler for each plan parsed against it. A single Engine is meant to
// back one running plan instance plus whatever LibraryNodeCall templates
// it references — the same shape as mbflow's executor, one engine per
// caller-held instance rather than a process-wide singleton.
type Engine struct {
	cfg     EngineConfig
	catalog *library.Catalog
	loader  *planxml.Loader
}

// NewEngine builds an Engine. The returned Engine has no libraries
// registered yet; call LoadLibrary for each library plan before Load.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.External == nil {
		cfg.External = iface.NewRecorder()
	}
	if cfg.Policy == nil {
		cfg.Policy = scheduler.DefaultPolicy{}
	}
	catalog := library.NewCatalog()
	return &Engine{
		cfg:     cfg,
		catalog: catalog,
		loader:  planxml.New(catalog, cfg.External),
	}
}

// LoadLibrary parses a PLEXIL LibraryNode plan and registers it in the
// engine's catalog so subsequent Load calls can resolve LibraryNodeCalls
// against it by name.
func (e *Engine) LoadLibrary(r io.Reader) error {
	return e.loader.LoadLibrary(r)
}

// Load parses a PLEXIL plan and returns a Scheduler ready to Activate and
// RunToQuiescence. Each call produces an independent Scheduler (and an
// independent plexpr.Clock) sharing only the Engine's library catalog.
func (e *Engine) Load(r io.Reader) (*scheduler.Scheduler, error) {
	_, root, err := e.loader.Load(r)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(root, e.cfg.Log)
	sched.PlanID = e.cfg.PlanID
	sched.Policy = e.cfg.Policy
	sched.Observer = e.cfg.Observer
	return sched, nil
}

// Run is the common case: load a plan, activate its root, and drive it
// to quiescence in one call, returning the root node for result
// inspection (NodeState, NodeOutcome, NodeFailure, or walking Children).
func (e *Engine) Run(r io.Reader, now time.Time) (*node.Node, error) {
	sched, err := e.Load(r)
	if err != nil {
		return nil, err
	}
	sched.Activate(sched.Root, now)
	sched.RunToQuiescence(now)
	return sched.Root, nil
}
