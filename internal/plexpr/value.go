// Package plexpr implements the expression graph (C1) and the
// reference-counted notifier/listener core (C2) that backs every gate
// condition, variable, and literal in a plan. Expressions form a DAG:
// Operator and Alias nodes read child expressions; UserVariable and
// ArrayVariable are the assignable leaves; Constant never changes.
package plexpr

import "fmt"

// ValueType is the runtime type tag carried by every Expression, used for
// the compatibility checks in spec.md §4.2 (In/InOut resolution).
type ValueType int

const (
	TypeUnknown ValueType = iota
	TypeBoolean
	TypeInteger
	TypeReal
	TypeString
	TypeArray
)

func (t ValueType) String() string {
	switch t {
	case TypeBoolean:
		return "Boolean"
	case TypeInteger:
		return "Integer"
	case TypeReal:
		return "Real"
	case TypeString:
		return "String"
	case TypeArray:
		return "Array"
	default:
		return "Unknown"
	}
}

// Compatible implements the widening rules of spec.md §4.2: identical
// type, numeric widening INTEGER→REAL, or UNKNOWN compatible with
// anything.
func Compatible(want, have ValueType) bool {
	if want == have {
		return true
	}
	if want == TypeUnknown || have == TypeUnknown {
		return true
	}
	if want == TypeReal && have == TypeInteger {
		return true
	}
	return false
}

// Coerce converts a value of type `have` into the representation expected
// for `want`, applying the INTEGER→REAL widening and storing INTEGER
// values as int64. It never lies about type: callers must have already
// checked Compatible.
func Coerce(want ValueType, v any) (any, error) {
	if want == TypeInteger {
		if n, ok := v.(int); ok {
			return int64(n), nil
		}
	}
	if want == TypeReal {
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	}
	return v, nil
}

// ValueTypeOf infers a ValueType from a Go value, used when constructing
// Constant expressions from literals parsed out of a plan document.
func ValueTypeOf(v any) ValueType {
	switch v.(type) {
	case bool:
		return TypeBoolean
	case int, int64:
		return TypeInteger
	case float32, float64:
		return TypeReal
	case string:
		return TypeString
	case []any:
		return TypeArray
	default:
		return TypeUnknown
	}
}

func typeMismatch(want ValueType, v any) error {
	return fmt.Errorf("type mismatch: expected %s, got %T", want, v)
}
