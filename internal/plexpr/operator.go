package plexpr

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Operator is a pure function over child expressions: it has no state of
// its own beyond the values it reads, and it is never assignable. The
// implicit end-condition wrapping of spec.md §4.3 ("wrap with the
// type-specific implicit contributor via And") and the builtin boolean/
// comparison/arithmetic combinators are all Operators.
type Operator struct {
	Base
	name     string
	valType  ValueType
	operands []Expression
	fn       func(vals []any, known []bool) (any, bool)
}

// NewOperator builds an Operator of the given value type, applying fn to
// the operands' current values every time GetValue is called. fn receives
// a parallel "known" slice; most operators should return (nil, false) if
// any required operand is unknown (the And/Or short-circuit helpers below
// handle the PLEXIL "unknown propagates unless short-circuited" rule).
func NewOperator(clock *Clock, name string, valType ValueType, fn func(vals []any, known []bool) (any, bool), operands ...Expression) *Operator {
	o := &Operator{
		Base:     NewBase(clock, operands...),
		name:     name,
		valType:  valType,
		operands: operands,
		fn:       fn,
	}
	for _, c := range operands {
		c.AddListener(o)
	}
	return o
}

func (o *Operator) ValueType() ValueType { return o.valType }
func (o *Operator) IsConstant() bool     { return false }
func (o *Operator) IsAssignable() bool   { return false }
func (o *Operator) Name() string         { return o.name }

func (o *Operator) IsKnown() bool {
	_, ok := o.GetValue()
	return ok
}

func (o *Operator) GetValue() (any, bool) {
	vals := make([]any, len(o.operands))
	known := make([]bool, len(o.operands))
	for i, c := range o.operands {
		v, k := c.GetValue()
		vals[i] = v
		known[i] = k
	}
	return o.fn(vals, known)
}

// NotifyChanged lets an Operator act as a Listener on its own operands:
// wiring And(operatorA, operatorB) requires the outer Operator to
// re-publish when either operand changes. NewOperator registers it on
// every operand.
func (o *Operator) NotifyChanged() { o.PublishChange() }

// And is true iff every operand is known and true; false as soon as any
// known operand is false (short-circuiting per the PLEXIL semantics
// spec.md borrows its boolean algebra from); unknown only when no operand
// is known-false and at least one is unknown.
func And(clock *Clock, operands ...Expression) *Operator {
	return NewOperator(clock, "And", TypeBoolean, func(vals []any, known []bool) (any, bool) {
		sawUnknown := false
		for i, k := range known {
			if !k {
				sawUnknown = true
				continue
			}
			if b, ok := vals[i].(bool); ok && !b {
				return false, true
			}
		}
		if sawUnknown {
			return nil, false
		}
		return true, true
	}, operands...)
}

// Or is the dual of And.
func Or(clock *Clock, operands ...Expression) *Operator {
	return NewOperator(clock, "Or", TypeBoolean, func(vals []any, known []bool) (any, bool) {
		sawUnknown := false
		for i, k := range known {
			if !k {
				sawUnknown = true
				continue
			}
			if b, ok := vals[i].(bool); ok && b {
				return true, true
			}
		}
		if sawUnknown {
			return nil, false
		}
		return false, true
	}, operands...)
}

// Not negates a single boolean operand.
func Not(clock *Clock, operand Expression) *Operator {
	return NewOperator(clock, "Not", TypeBoolean, func(vals []any, known []bool) (any, bool) {
		if !known[0] {
			return nil, false
		}
		b, ok := vals[0].(bool)
		if !ok {
			return nil, false
		}
		return !b, true
	}, operand)
}

// AlwaysTrue/AlwaysFalse are the default for a condition slot the parser
// left unset (e.g. an omitted InvariantCondition is AlwaysTrue).
func AlwaysTrue(clock *Clock) *Constant  { return NewConstant(clock, TypeBoolean, true) }
func AlwaysFalse(clock *Clock) *Constant { return NewConstant(clock, TypeBoolean, false) }

// CompiledExpr wraps a compiled expr-lang program evaluated over a set of
// named child expressions. This is how the free-form textual expressions
// a plan document carries in StartCondition/EndCondition/NumericRHS/etc.
// (spec.md §6.3) become part of the expression graph: each identifier the
// expr-lang program references is bound to a named Expression at compile
// time, reproducing the teacher's ConditionEvaluator
// (executor/conditions.go) cache-and-run pattern, but resolved once at
// plan-build time rather than per evaluation.
type CompiledExpr struct {
	Base
	source  string
	program *vm.Program
	names   []string
	exprs   []Expression
	valType ValueType
}

// CompileExpr compiles source against the given name→Expression bindings.
// Only the bindings whose names occur as identifiers in source become
// children, so an unrelated unknown variable never makes the result
// unknown. A valType of TypeBoolean forces the program's result to be
// coerced to a boolean (used for condition slots); otherwise the natural
// expr-lang result type is used.
func CompileExpr(clock *Clock, source string, bindings map[string]Expression, valType ValueType) (*CompiledExpr, error) {
	referenced := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(source, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	}) {
		referenced[tok] = true
	}
	names := make([]string, 0, len(bindings))
	children := make([]Expression, 0, len(bindings))
	env := make(map[string]any, len(bindings))
	for name, e := range bindings {
		if !referenced[name] {
			continue
		}
		names = append(names, name)
		children = append(children, e)
		env[name] = zeroOf(e.ValueType())
	}

	opts := []expr.Option{expr.Env(env)}
	if valType == TypeBoolean {
		opts = append(opts, expr.AsBool())
	}
	program, err := expr.Compile(source, opts...)
	if err != nil {
		// Fall back to an untyped environment for expressions over
		// dynamically-typed array elements, matching the teacher's
		// two-stage compile-with-then-without-Env fallback.
		var fallback []expr.Option
		if valType == TypeBoolean {
			fallback = append(fallback, expr.AsBool())
		}
		program, err = expr.Compile(source, fallback...)
		if err != nil {
			return nil, fmt.Errorf("compile expression %q: %w", source, err)
		}
	}

	ce := &CompiledExpr{
		source:  source,
		program: program,
		names:   names,
		exprs:   children,
		valType: valType,
	}
	ce.Base = NewBase(clock, children...)
	for _, c := range children {
		c.AddListener(ce)
	}
	return ce, nil
}

func (c *CompiledExpr) ValueType() ValueType { return c.valType }
func (c *CompiledExpr) IsConstant() bool     { return false }
func (c *CompiledExpr) IsAssignable() bool   { return false }
func (c *CompiledExpr) Source() string       { return c.source }

func (c *CompiledExpr) IsKnown() bool {
	_, ok := c.GetValue()
	return ok
}

func (c *CompiledExpr) GetValue() (any, bool) {
	env := make(map[string]any, len(c.names))
	for i, name := range c.names {
		v, ok := c.exprs[i].GetValue()
		if !ok {
			// An unknown operand makes a textual expression's result
			// unknown rather than running expr-lang against a nil,
			// which would otherwise surface as a runtime error.
			return nil, false
		}
		env[name] = v
	}
	out, err := expr.Run(c.program, env)
	if err != nil {
		return nil, false
	}
	return out, true
}

// NotifyChanged lets a CompiledExpr act as a Listener on its own operand
// expressions.
func (c *CompiledExpr) NotifyChanged() { c.PublishChange() }

func zeroOf(t ValueType) any {
	switch t {
	case TypeBoolean:
		return false
	case TypeInteger:
		return int64(0)
	case TypeReal:
		return float64(0)
	case TypeString:
		return ""
	case TypeArray:
		return []any{}
	default:
		return nil
	}
}
