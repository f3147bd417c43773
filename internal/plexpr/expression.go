package plexpr

// Expression is implemented by every node in the expression graph:
// literals, variables, operators, aliases, and the internal node
// variables. It is the "typed accessor + notifier" contract of spec.md
// §4.1.
type Expression interface {
	ValueType() ValueType
	IsKnown() bool
	GetValue() (any, bool)
	IsConstant() bool
	IsAssignable() bool

	Activate()
	Deactivate()
	IsActive() bool
	AddListener(l Listener)
	RemoveListener(l Listener)
	PublishChange()
}

// Assignable is implemented by expressions that can be written: the LHS
// of an Assignment, a Command return destination, In/InOut-resolved
// variables.
type Assignable interface {
	Expression
	SetValue(v any) bool
	SetUnknown()
	GetBaseVariable() Assignable
	SetInitializer(e Expression, owned bool)
}

// Constant is an immutable, always-active, always-known expression.
type Constant struct {
	Base
	valType ValueType
	value   any
	known   bool
}

// NewConstant builds a Constant carrying a known value.
func NewConstant(clock *Clock, valType ValueType, value any) *Constant {
	return &Constant{Base: NewAlwaysActiveBase(clock), valType: valType, value: value, known: true}
}

// NewUnknownConstant builds a Constant with no known value (used as the
// UNKNOWN literal in plan documents).
func NewUnknownConstant(clock *Clock, valType ValueType) *Constant {
	return &Constant{Base: NewAlwaysActiveBase(clock), valType: valType}
}

func (c *Constant) ValueType() ValueType    { return c.valType }
func (c *Constant) IsKnown() bool           { return c.known }
func (c *Constant) IsConstant() bool        { return true }
func (c *Constant) IsAssignable() bool      { return false }
func (c *Constant) GetValue() (any, bool) {
	if !c.known {
		return nil, false
	}
	return c.value, true
}

// UserVariable is a single assignable scalar slot, optionally carrying an
// owned initializer expression evaluated the first time the variable
// becomes known-unset (spec.md §3 Expression variants).
type UserVariable struct {
	Base
	valType      ValueType
	value        any
	known        bool
	initializer  Expression
	initOwned    bool
	initApplied  bool
}

// NewUserVariable creates a variable with no initializer; it starts
// unknown.
func NewUserVariable(clock *Clock, valType ValueType) *UserVariable {
	return &UserVariable{Base: NewBase(clock), valType: valType}
}

func (v *UserVariable) ValueType() ValueType { return v.valType }
func (v *UserVariable) IsConstant() bool     { return false }
func (v *UserVariable) IsAssignable() bool   { return true }

func (v *UserVariable) IsKnown() bool {
	v.applyInitializerOnce()
	return v.known
}

func (v *UserVariable) GetValue() (any, bool) {
	v.applyInitializerOnce()
	if !v.known {
		return nil, false
	}
	return v.value, true
}

func (v *UserVariable) applyInitializerOnce() {
	if v.initApplied || v.initializer == nil {
		return
	}
	v.initApplied = true
	if val, ok := v.initializer.GetValue(); ok {
		v.value = val
		v.known = true
	}
}

// SetValue implements Assignable. It rejects a value whose ValueType is
// not Compatible with the variable's declared type, per spec.md §4.1's
// "type mismatch returns false" failure mode.
func (v *UserVariable) SetValue(val any) bool {
	if !Compatible(v.valType, ValueTypeOf(val)) {
		return false
	}
	coerced, err := Coerce(v.valType, val)
	if err != nil {
		return false
	}
	v.value = coerced
	v.known = true
	v.initApplied = true
	v.PublishChange()
	return true
}

func (v *UserVariable) SetUnknown() {
	v.value = nil
	v.known = false
	v.initApplied = true
	v.PublishChange()
}

func (v *UserVariable) GetBaseVariable() Assignable { return v }

func (v *UserVariable) SetInitializer(e Expression, owned bool) {
	v.initializer = e
	v.initOwned = owned
	v.initApplied = false
}

// InitializerOwned reports whether this variable owns (and must
// therefore tear down) its initializer expression.
func (v *UserVariable) InitializerOwned() bool { return v.initOwned }

// ArrayVariable is an assignable, fixed-capacity, homogeneously-typed
// array. ArrayElementReference provides assignable views of single slots.
type ArrayVariable struct {
	Base
	elemType ValueType
	maxSize  int
	elems    []any
	known    []bool
}

// NewArrayVariable creates an array of the given element type and
// maximum size, all slots initially unknown.
func NewArrayVariable(clock *Clock, elemType ValueType, maxSize int) *ArrayVariable {
	return &ArrayVariable{
		Base:     NewBase(clock),
		elemType: elemType,
		maxSize:  maxSize,
		elems:    make([]any, maxSize),
		known:    make([]bool, maxSize),
	}
}

func (a *ArrayVariable) ValueType() ValueType { return TypeArray }
func (a *ArrayVariable) ElementType() ValueType { return a.elemType }
func (a *ArrayVariable) MaxSize() int          { return a.maxSize }
func (a *ArrayVariable) IsConstant() bool      { return false }
func (a *ArrayVariable) IsAssignable() bool    { return true }

func (a *ArrayVariable) IsKnown() bool {
	for _, k := range a.known {
		if !k {
			return false
		}
	}
	return len(a.known) > 0
}

func (a *ArrayVariable) GetValue() (any, bool) {
	if !a.IsKnown() {
		return nil, false
	}
	out := make([]any, len(a.elems))
	copy(out, a.elems)
	return out, true
}

// SetValue replaces the whole array. The slice must not exceed MaxSize;
// a too-long initializer is a parse-time error (spec.md §6.3's
// DeclareArray note), so SetValue here simply truncates-refuses by
// returning false.
func (a *ArrayVariable) SetValue(val any) bool {
	arr, ok := val.([]any)
	if !ok || len(arr) > a.maxSize {
		return false
	}
	a.elems = make([]any, a.maxSize)
	a.known = make([]bool, a.maxSize)
	for i, e := range arr {
		a.elems[i] = e
		a.known[i] = true
	}
	a.PublishChange()
	return true
}

func (a *ArrayVariable) SetUnknown() {
	for i := range a.elems {
		a.elems[i] = nil
		a.known[i] = false
	}
	a.PublishChange()
}

func (a *ArrayVariable) GetBaseVariable() Assignable { return a }
func (a *ArrayVariable) SetInitializer(Expression, bool) {}

// GetElement reads slot i.
func (a *ArrayVariable) GetElement(i int) (any, bool) {
	if i < 0 || i >= len(a.elems) || !a.known[i] {
		return nil, false
	}
	return a.elems[i], true
}

// SetElement writes slot i, rejecting out-of-range indices and values
// incompatible with the declared element type.
func (a *ArrayVariable) SetElement(i int, val any) bool {
	if i < 0 || i >= a.maxSize {
		return false
	}
	if val != nil && a.elemType != TypeUnknown && !Compatible(a.elemType, ValueTypeOf(val)) {
		return false
	}
	a.elems[i] = val
	a.known[i] = true
	a.PublishChange()
	return true
}

// ArrayElementReference is an assignable view of a single array slot
// (spec.md §3). GetBaseVariable returns the owning array, implementing
// the "root variable of an array-element reference chain" glossary
// entry.
type ArrayElementReference struct {
	Base
	array *ArrayVariable
	index int
}

// NewArrayElementReference builds a reference into array at index.
func NewArrayElementReference(clock *Clock, array *ArrayVariable, index int) *ArrayElementReference {
	r := &ArrayElementReference{Base: NewBase(clock, array), array: array, index: index}
	array.AddListener(r)
	return r
}

// NotifyChanged forwards an array-wide change as this reference's own
// change; any write to the array republishes every live reference into
// it, which is conservative (a write to a different slot also re-fires
// this one) but never misses a real change.
func (r *ArrayElementReference) NotifyChanged() { r.PublishChange() }

func (r *ArrayElementReference) ValueType() ValueType { return r.array.ElementType() }
func (r *ArrayElementReference) IsConstant() bool     { return false }
func (r *ArrayElementReference) IsAssignable() bool    { return true }

func (r *ArrayElementReference) IsKnown() bool {
	_, ok := r.array.GetElement(r.index)
	return ok
}

func (r *ArrayElementReference) GetValue() (any, bool) {
	return r.array.GetElement(r.index)
}

func (r *ArrayElementReference) SetValue(val any) bool {
	ok := r.array.SetElement(r.index, val)
	if ok {
		r.PublishChange()
	}
	return ok
}

func (r *ArrayElementReference) SetUnknown() {
	r.array.SetElement(r.index, nil)
	r.PublishChange()
}

func (r *ArrayElementReference) GetBaseVariable() Assignable { return r.array }
func (r *ArrayElementReference) SetInitializer(Expression, bool) {}

// Alias is a read-only (or, when the wrapped expression is itself
// assignable and the Alias is constructed as writable, pass-through)
// wrapper used for In/InOut variable resolution (spec.md §4.2) and for
// LibraryCall alias maps. Alias may optionally own the inner expression,
// in which case it is responsible for the inner expression's teardown
// (invariant P7).
type Alias struct {
	Base
	inner      Expression
	innerOwned bool
	writable   bool
}

// NewAlias wraps inner. If writable is true and inner is Assignable, the
// Alias forwards SetValue/SetUnknown to it (used for InOut); otherwise
// the Alias is read-only (used for In).
func NewAlias(clock *Clock, inner Expression, owned bool, writable bool) *Alias {
	a := &Alias{Base: NewBase(clock, inner), inner: inner, innerOwned: owned, writable: writable}
	inner.AddListener(a)
	return a
}

// NotifyChanged forwards the wrapped expression's change as the Alias's
// own change.
func (a *Alias) NotifyChanged() { a.PublishChange() }

func (a *Alias) ValueType() ValueType { return a.inner.ValueType() }
func (a *Alias) IsKnown() bool        { return a.inner.IsKnown() }
func (a *Alias) GetValue() (any, bool) { return a.inner.GetValue() }
func (a *Alias) IsConstant() bool     { return a.inner.IsConstant() }
func (a *Alias) IsAssignable() bool   { return a.writable && a.inner.IsAssignable() }

func (a *Alias) SetValue(val any) bool {
	if !a.IsAssignable() {
		return false
	}
	return a.inner.(Assignable).SetValue(val)
}

func (a *Alias) SetUnknown() {
	if !a.IsAssignable() {
		return
	}
	a.inner.(Assignable).SetUnknown()
}

func (a *Alias) GetBaseVariable() Assignable {
	if assignable, ok := a.inner.(Assignable); ok {
		return assignable.GetBaseVariable()
	}
	return nil
}

func (a *Alias) SetInitializer(Expression, bool) {}

// InnerOwned reports whether this Alias owns the wrapped expression and
// must tear it down with itself.
func (a *Alias) InnerOwned() bool { return a.innerOwned }

// Inner returns the wrapped expression (used by LibraryCall alias-map
// bookkeeping and by teardown ordering).
func (a *Alias) Inner() Expression { return a.inner }
