package sqlexpr

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// ErrNilExpr is returned when a required expression is missing.
var ErrNilExpr = errors.New("nil expression")

// Quoter supplies the dialect-specific quoting primitives.
type Quoter interface {
	QuoteIdentifier(name string) string
	QuoteString(s string) string
}

// Compile turns e into a squirrel Sqlizer. Children are compiled first and
// then combined; values only ever reach the SQL text through placeholders
// (Param, Like) or the quoter (Literal).
func Compile(e Expr, q Quoter) (sq.Sqlizer, error) {
	switch x := e.(type) {
	case nil:
		return nil, ErrNilExpr
	case Column:
		return sq.Expr(columnSQL(x, q)), nil
	case Param:
		return sq.Expr("?", BoundParam{Name: x.Name, Arg: x.Value.Interface()}), nil
	case Literal:
		return sq.Expr(literalSQL(x.Value, q)), nil
	case Raw:
		if strings.TrimSpace(x.SQL) == "" {
			return nil, fmt.Errorf("raw expression is empty")
		}
		return sq.Expr(x.SQL), nil
	case Eq:
		return compileInfix("=", x.Left, x.Right, q)
	case Neq:
		return compileInfix("<>", x.Left, x.Right, q)
	case Gt:
		return compileInfix(">", x.Left, x.Right, q)
	case Gte:
		return compileInfix(">=", x.Left, x.Right, q)
	case Lt:
		return compileInfix("<", x.Left, x.Right, q)
	case Lte:
		return compileInfix("<=", x.Left, x.Right, q)
	case And:
		left, right, err := compilePair(x.Left, x.Right, q)
		if err != nil {
			return nil, err
		}
		return sq.And{left, right}, nil
	case Or:
		left, right, err := compilePair(x.Left, x.Right, q)
		if err != nil {
			return nil, err
		}
		return sq.Or{left, right}, nil
	case Not:
		inner, err := Compile(x.Expr, q)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return wrapped{prefix: "NOT (", inner: inner, suffix: ")"}, nil
	case Like:
		target, err := compileOperand(x.Expr, q)
		if err != nil {
			return nil, fmt.Errorf("like: %w", err)
		}
		pattern := sq.Expr("?", BoundParam{Arg: x.Pattern})
		return infix{op: "LIKE", left: target, right: pattern}, nil
	case In:
		return compileIn(x, q)
	case IsNull:
		inner, err := compileOperand(x.Expr, q)
		if err != nil {
			return nil, fmt.Errorf("is null: %w", err)
		}
		return wrapped{inner: inner, suffix: " IS NULL"}, nil
	case IsNotNull:
		inner, err := compileOperand(x.Expr, q)
		if err != nil {
			return nil, fmt.Errorf("is not null: %w", err)
		}
		return wrapped{inner: inner, suffix: " IS NOT NULL"}, nil
	default:
		return nil, fmt.Errorf("unsupported expression type %T", e)
	}
}

// ToSQL compiles e and renders it with '?' placeholders. The text has not
// been through a placeholder format yet, so a Postgres quoter's escaped
// '??' is still doubled; Render applies the format.
func ToSQL(e Expr, q Quoter) (string, []any, error) {
	s, err := Compile(e, q)
	if err != nil {
		return "", nil, err
	}
	return s.ToSql()
}

func columnSQL(c Column, q Quoter) string {
	if c.Table == "" {
		return q.QuoteIdentifier(c.Name)
	}
	return q.QuoteIdentifier(c.Table) + "." + q.QuoteIdentifier(c.Name)
}

func compilePair(left, right Expr, q Quoter) (sq.Sqlizer, sq.Sqlizer, error) {
	l, err := Compile(left, q)
	if err != nil {
		return nil, nil, fmt.Errorf("left operand: %w", err)
	}
	r, err := Compile(right, q)
	if err != nil {
		return nil, nil, fmt.Errorf("right operand: %w", err)
	}
	return l, r, nil
}

func compileInfix(op string, left, right Expr, q Quoter) (sq.Sqlizer, error) {
	l, err := compileOperand(left, q)
	if err != nil {
		return nil, fmt.Errorf("%s left operand: %w", op, err)
	}
	r, err := compileOperand(right, q)
	if err != nil {
		return nil, fmt.Errorf("%s right operand: %w", op, err)
	}
	return infix{op: op, left: l, right: r}, nil
}

func compileIn(x In, q Quoter) (sq.Sqlizer, error) {
	target, err := compileOperand(x.Expr, q)
	if err != nil {
		return nil, fmt.Errorf("in: %w", err)
	}
	if len(x.Values) == 0 {
		// Matches squirrel's rendering of sq.Eq with an empty slice.
		return sq.Expr("(1=0)"), nil
	}
	values := make([]sq.Sqlizer, len(x.Values))
	for i, v := range x.Values {
		values[i], err = compileOperand(v, q)
		if err != nil {
			return nil, fmt.Errorf("in value %d: %w", i, err)
		}
	}
	return inList{target: target, values: values}, nil
}

// compileOperand compiles an operand of an infix or postfix operator and
// parenthesizes it when it is itself a bare predicate.
func compileOperand(e Expr, q Quoter) (sq.Sqlizer, error) {
	s, err := Compile(e, q)
	if err != nil {
		return nil, err
	}
	switch e.(type) {
	case Eq, Neq, Gt, Gte, Lt, Lte, Like, In, IsNull, IsNotNull:
		return wrapped{prefix: "(", inner: s, suffix: ")"}, nil
	}
	return s, nil
}

type infix struct {
	op    string
	left  sq.Sqlizer
	right sq.Sqlizer
}

func (e infix) ToSql() (string, []interface{}, error) {
	l, largs, err := e.left.ToSql()
	if err != nil {
		return "", nil, err
	}
	r, rargs, err := e.right.ToSql()
	if err != nil {
		return "", nil, err
	}
	args := make([]interface{}, 0, len(largs)+len(rargs))
	args = append(args, largs...)
	args = append(args, rargs...)
	return l + " " + e.op + " " + r, args, nil
}

type wrapped struct {
	prefix string
	inner  sq.Sqlizer
	suffix string
}

func (e wrapped) ToSql() (string, []interface{}, error) {
	sql, args, err := e.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return e.prefix + sql + e.suffix, args, nil
}

type inList struct {
	target sq.Sqlizer
	values []sq.Sqlizer
}

func (e inList) ToSql() (string, []interface{}, error) {
	sql, args, err := e.target.ToSql()
	if err != nil {
		return "", nil, err
	}
	parts := make([]string, len(e.values))
	for i, v := range e.values {
		part, partArgs, err := v.ToSql()
		if err != nil {
			return "", nil, err
		}
		parts[i] = part
		args = append(args, partArgs...)
	}
	return sql + " IN (" + strings.Join(parts, ", ") + ")", args, nil
}
