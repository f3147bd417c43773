package scope

import (
	"fmt"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/plexpr"
)

// ResolveIn resolves an In interface variable declaration (spec.md §4.2).
// ancestor is looked up by name starting at lookupFrom (normally the
// caller's scope for a LibraryCall, or this node's own parent scope for a
// plain In declaration); wantType is the declared type; defaultExpr is
// the (already-compiled, unactivated by this call) default-value
// expression, or nil if the declaration had none.
//
// Resolution order:
//  1. ancestor found, Compatible(wantType, ancestor.ValueType()): install a
//     read-only Alias over it (owned=false — the ancestor outlives this
//     binding).
//  2. ancestor found but incompatible type: TypeMismatch error.
//  3. no ancestor, defaultExpr present: a freshly owned UserVariable of
//     wantType, initialized from defaultExpr, wrapped read-only (owned —
//     this binding's teardown tears the variable down with it).
//  4. neither: MissingInVariable error.
func ResolveIn(clock *plexpr.Clock, lookupFrom *Scope, name string, wantType plexpr.ValueType, defaultExpr plexpr.Expression) (*plexpr.Alias, error) {
	if ancestor, ok := lookupFrom.Lookup(name); ok {
		if !plexpr.Compatible(wantType, ancestor.ValueType()) {
			return nil, domain.NewError(domain.ErrCodeTypeMismatch,
				fmt.Sprintf("In variable %q: declared %s but ancestor is %s", name, wantType, ancestor.ValueType()), nil)
		}
		return plexpr.NewAlias(clock, ancestor, false, false), nil
	}
	if defaultExpr != nil {
		v := plexpr.NewUserVariable(clock, wantType)
		v.SetInitializer(defaultExpr, true)
		return plexpr.NewAlias(clock, v, true, false), nil
	}
	return nil, domain.NewError(domain.ErrCodeMissingInVariable,
		fmt.Sprintf("In variable %q has no ancestor binding and no default", name), nil)
}

// ResolveInOut resolves an InOut interface variable declaration.
// Resolution order:
//  1. ancestor found, Compatible, and Assignable: install a writable Alias
//     over it (owned=false).
//  2. ancestor found but incompatible type: TypeMismatch error.
//  3. ancestor found, Compatible, but not Assignable: InOutNotAssignable
//     error.
//  4. no ancestor, defaultExpr present: a freshly owned, writable
//     UserVariable initialized from defaultExpr (owned — this binding's
//     teardown tears the variable down with it).
//  5. neither: MissingInOutVariable error.
func ResolveInOut(clock *plexpr.Clock, lookupFrom *Scope, name string, wantType plexpr.ValueType, defaultExpr plexpr.Expression) (*plexpr.Alias, error) {
	if ancestor, ok := lookupFrom.Lookup(name); ok {
		if !plexpr.Compatible(wantType, ancestor.ValueType()) {
			return nil, domain.NewError(domain.ErrCodeTypeMismatch,
				fmt.Sprintf("InOut variable %q: declared %s but ancestor is %s", name, wantType, ancestor.ValueType()), nil)
		}
		if !ancestor.IsAssignable() {
			return nil, domain.NewError(domain.ErrCodeInOutNotAssignable,
				fmt.Sprintf("InOut variable %q: ancestor binding is not assignable", name), nil)
		}
		return plexpr.NewAlias(clock, ancestor, false, true), nil
	}
	if defaultExpr != nil {
		v := plexpr.NewUserVariable(clock, wantType)
		v.SetInitializer(defaultExpr, true)
		return plexpr.NewAlias(clock, v, true, true), nil
	}
	return nil, domain.NewError(domain.ErrCodeMissingInOutVariable,
		fmt.Sprintf("InOut variable %q has no ancestor binding and no default", name), nil)
}
