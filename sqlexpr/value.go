package sqlexpr

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
)

// Kind is the SQL type family of a Value.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "text"
	}
}

// Value is a typed scalar. Null values keep their kind.
type Value struct {
	Kind  Kind
	Null  bool
	Int   int64
	Float float64
	Text  string
	Bool  bool
}

// Int returns a non-null integer value.
func Int(v int64) Value { return Value{Kind: KindInt, Int: v} }

// Float returns a non-null floating point value.
func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// Text returns a non-null text value.
func Text(v string) Value { return Value{Kind: KindText, Text: v} }

// Bool returns a non-null boolean value.
func Bool(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// Null returns the null value of kind.
func Null(kind Kind) Value { return Value{Kind: kind, Null: true} }

// Interface returns the value as a database/sql driver value (nil when null).
func (v Value) Interface() any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	default:
		return v.Text
	}
}

// ValueOf converts a decoded scalar (YAML, JSON, GraphQL argument) into a Value.
// nil becomes a text null.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null(KindText), nil
	case Value:
		return v, nil
	case string:
		return Text(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", v)
		}
		return Int(int64(v)), nil
	case uint64:
		if v > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", v)
		}
		return Int(int64(v)), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

// literalSQL renders v inline. Text goes through the quoter.
func literalSQL(v Value, q Quoter) string {
	if v.Null {
		return "NULL"
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	default:
		return q.QuoteString(v.Text)
	}
}

// BoundParam is the argument a compiled Param contributes. It keeps the
// parameter name next to the value so a renderer can report both; it also
// satisfies driver.Valuer, so compiled expressions can be handed straight to
// database/sql.
type BoundParam struct {
	Name string
	Arg  any
}

// Value implements driver.Valuer.
func (p BoundParam) Value() (driver.Value, error) {
	return p.Arg, nil
}

// Unbind splits compiled args into plain values and their parameter names.
// Args that did not come from a Param get an empty name.
func Unbind(args []any) ([]any, []string) {
	values := make([]any, len(args))
	names := make([]string, len(args))
	for i, arg := range args {
		if bound, ok := arg.(BoundParam); ok {
			values[i] = bound.Arg
			names[i] = bound.Name
			continue
		}
		values[i] = arg
	}
	return values, names
}
