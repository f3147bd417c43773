package plexpr

// Listener is notified when an expression it is registered on changes
// value. A Listener may itself be a publisher (e.g. an Operator that is
// also an input to another Operator); the epoch-based dedup in Base
// tolerates that cycle per spec.md §9.
type Listener interface {
	NotifyChanged()
}

// ListenerFunc adapts a plain function to a Listener, the way the teacher
// adapts http.HandlerFunc-style callbacks (executor/callback.go).
type ListenerFunc func()

func (f ListenerFunc) NotifyChanged() { f() }

// Clock hands out monotonically increasing epoch numbers, one per
// scheduler micro-step (spec.md §9: "deduplicate via a per-cycle epoch
// counter"). All expressions reachable from one Node tree share a single
// Clock so that a change delivered during one micro-step notifies each
// listener at most once, even through a listener cycle.
type Clock struct {
	epoch uint64
}

// NewClock creates a clock starting at epoch 1. Base.notifiedAt's zero
// entry (recorded for a listener when it is added) must mean "never
// notified", which only holds if epoch 0 is never a real, deliverable
// epoch — starting at 1 keeps that distinction instead of colliding with
// that zero on the very first PublishChange of a listener's lifetime.
func NewClock() *Clock {
	return &Clock{epoch: 1}
}

// Tick advances the clock and returns the new epoch. The scheduler calls
// this once per micro-step, before draining pending change notifications.
func (c *Clock) Tick() uint64 {
	c.epoch++
	return c.epoch
}

// Current returns the epoch in effect right now, without advancing it.
func (c *Clock) Current() uint64 {
	return c.epoch
}

// Base is embedded by every Expression implementation. It supplies
// reference-counted activation and idempotent, cycle-safe change
// broadcast. Expressions with sub-expressions they read (Operator, Alias,
// ArrayElementReference, ...) register those as children so Activate/
// Deactivate cascade automatically; leaves (Constant, UserVariable) pass
// no children.
type Base struct {
	clock        *Clock
	children     []Expression
	refCount     int
	alwaysActive bool
	listeners    []Listener
	notifiedAt   []uint64 // parallel to listeners: last epoch each was notified
}

// NewBase constructs a notifier core sharing the given clock and
// cascading activation to the given children (may be nil/empty).
func NewBase(clock *Clock, children ...Expression) Base {
	return Base{clock: clock, children: children}
}

// NewAlwaysActiveBase constructs a notifier core for an expression that is
// always active regardless of reference count: Constants and the three
// internal node variables (spec.md §4.1).
func NewAlwaysActiveBase(clock *Clock) Base {
	return Base{clock: clock, alwaysActive: true}
}

func (b *Base) IsActive() bool {
	return b.alwaysActive || b.refCount > 0
}

// Activate implements reference-counted activation: the first call
// transitions to active and cascades to children; subsequent calls only
// bump the count.
func (b *Base) Activate() {
	if b.alwaysActive {
		return
	}
	wasActive := b.refCount > 0
	b.refCount++
	if !wasActive {
		for _, c := range b.children {
			c.Activate()
		}
	}
}

// Deactivate is the inverse of Activate.
func (b *Base) Deactivate() {
	if b.alwaysActive {
		return
	}
	if b.refCount == 0 {
		return
	}
	b.refCount--
	if b.refCount == 0 {
		for _, c := range b.children {
			c.Deactivate()
		}
	}
}

func (b *Base) AddListener(l Listener) {
	for _, existing := range b.listeners {
		if existing == l {
			return
		}
	}
	b.listeners = append(b.listeners, l)
	b.notifiedAt = append(b.notifiedAt, 0)
}

func (b *Base) RemoveListener(l Listener) {
	for i, existing := range b.listeners {
		if existing == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			b.notifiedAt = append(b.notifiedAt[:i], b.notifiedAt[i+1:]...)
			return
		}
	}
}

// PublishChange broadcasts to every listener at most once per clock
// epoch. Change notifications while inactive are dropped, per spec.md
// §4.1. A listener that is itself a publisher may re-enter PublishChange
// during its own NotifyChanged; the epoch guard makes that safe.
func (b *Base) PublishChange() {
	if !b.IsActive() {
		return
	}
	epoch := b.clock.Current()
	for i, l := range b.listeners {
		if b.notifiedAt[i] == epoch {
			continue
		}
		b.notifiedAt[i] = epoch
		l.NotifyChanged()
	}
}
