// Package scope implements variable scoping (C5): each Node owns an
// ordered name→expression map, and lookups that don't resolve locally
// walk the parent chain — except for a LibraryCall body, which blocks the
// walk entirely so callees can only see their alias map (spec.md §4.2,
// invariant P6).
package scope

import (
	"fmt"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/plexpr"
)

// Scope is one node's variable namespace. Insertion order is preserved in
// names so tooling that lists a node's variables (an analyser, a debug
// dump) sees them the way the plan document declared them.
type Scope struct {
	parent  *Scope
	blocked bool // true for a LibraryCall body: do not walk to parent
	names   []string
	vars    map[string]plexpr.Expression
}

// New creates a scope. parent may be nil (the root plan node). blocked
// should be true only for the synthetic scope installed as a
// LibraryCall's body scope.
func New(parent *Scope, blocked bool) *Scope {
	return &Scope{parent: parent, blocked: blocked, vars: make(map[string]plexpr.Expression)}
}

// Declare adds a local variable binding. Returns a DuplicateName error if
// the name already exists in this scope (shadowing an ancestor's name is
// fine; re-declaring a local name is not — spec.md §6.1).
func (s *Scope) Declare(name string, e plexpr.Expression) error {
	if _, exists := s.vars[name]; exists {
		return domain.NewError(domain.ErrCodeDuplicateName, fmt.Sprintf("variable %q already declared in this scope", name), nil)
	}
	s.names = append(s.names, name)
	s.vars[name] = e
	return nil
}

// Lookup resolves name in this scope, then in ancestors, unless this
// scope is blocked (LibraryCall body), in which case only the local map
// is consulted — a callee never resolves a free variable reference
// through the caller's scope (invariant: "LibraryCall children never
// resolve free variable references through the caller's variable scope;
// only through the alias map" — aliases are Declare'd into this same
// local map by the LibraryCall body, so this single lookup path serves
// both).
func (s *Scope) Lookup(name string) (plexpr.Expression, bool) {
	if e, ok := s.vars[name]; ok {
		return e, true
	}
	if s.blocked || s.parent == nil {
		return nil, false
	}
	return s.parent.Lookup(name)
}

// OrderedNames returns this scope's local variable names in declaration
// order.
func (s *Scope) OrderedNames() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Parent returns the enclosing scope, or nil at the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Blocked reports whether this scope stops ancestor lookups (LibraryCall
// body).
func (s *Scope) Blocked() bool { return s.blocked }

// Visible merges every name resolvable from this scope (ancestors first,
// locals shadowing) into a single map, for building the symbol table a
// compiled expression's environment needs (internal/planxml uses this so
// a condition or RHS string can reference any variable currently in
// scope without the loader having to track which names an expression
// string actually mentions).
func (s *Scope) Visible() map[string]plexpr.Expression {
	var out map[string]plexpr.Expression
	if !s.blocked && s.parent != nil {
		out = s.parent.Visible()
	} else {
		out = make(map[string]plexpr.Expression)
	}
	for name, e := range s.vars {
		out[name] = e
	}
	return out
}
