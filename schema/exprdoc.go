package schema

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"superjoin/sqlexpr"
)

func isEmptyNode(n *yaml.Node) bool {
	if n == nil || n.Kind == 0 {
		return true
	}
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// decodeExpr reads one expression from a document node. A plain string is
// raw SQL; a mapping must have exactly one operator key.
func decodeExpr(n *yaml.Node) (sqlexpr.Expr, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if isEmptyNode(n) {
		return nil, errors.New("expression is empty")
	}
	if n.Kind == yaml.ScalarNode {
		return sqlexpr.Raw{SQL: n.Value}, nil
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, fmt.Errorf("line %d: expression must be a string or a single-key mapping", n.Line)
	}
	op, arg := n.Content[0].Value, n.Content[1]

	switch op {
	case "column":
		return decodeColumn(arg)
	case "param":
		var p struct {
			Name  string `yaml:"name"`
			Value any    `yaml:"value"`
		}
		if err := arg.Decode(&p); err != nil {
			return nil, err
		}
		value, err := sqlexpr.ValueOf(p.Value)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		return sqlexpr.Param{Name: p.Name, Value: value}, nil
	case "literal":
		var raw any
		if err := arg.Decode(&raw); err != nil {
			return nil, err
		}
		value, err := sqlexpr.ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("literal: %w", err)
		}
		return sqlexpr.Literal{Value: value}, nil
	case "raw":
		var sql string
		if err := arg.Decode(&sql); err != nil {
			return nil, err
		}
		return sqlexpr.Raw{SQL: sql}, nil
	case "eq", "neq", "gt", "gte", "lt", "lte":
		operands, err := decodeList(arg, op)
		if err != nil {
			return nil, err
		}
		if len(operands) != 2 {
			return nil, fmt.Errorf("line %d: %s takes exactly two operands", arg.Line, op)
		}
		return comparison(op, operands[0], operands[1]), nil
	case "and", "or":
		operands, err := decodeList(arg, op)
		if err != nil {
			return nil, err
		}
		if len(operands) == 0 {
			return nil, fmt.Errorf("line %d: %s needs at least one operand", arg.Line, op)
		}
		if op == "and" {
			return sqlexpr.AllOf(operands...), nil
		}
		return sqlexpr.AnyOf(operands...), nil
	case "not":
		inner, err := decodeExpr(arg)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return sqlexpr.Not{Expr: inner}, nil
	case "is_null", "is_not_null":
		inner, err := decodeExpr(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if op == "is_null" {
			return sqlexpr.IsNull{Expr: inner}, nil
		}
		return sqlexpr.IsNotNull{Expr: inner}, nil
	case "like":
		var l struct {
			Expr    yaml.Node `yaml:"expr"`
			Pattern string    `yaml:"pattern"`
		}
		if err := arg.Decode(&l); err != nil {
			return nil, err
		}
		inner, err := decodeExpr(&l.Expr)
		if err != nil {
			return nil, fmt.Errorf("like: %w", err)
		}
		return sqlexpr.Like{Expr: inner, Pattern: l.Pattern}, nil
	case "in":
		var in struct {
			Expr   yaml.Node `yaml:"expr"`
			Values yaml.Node `yaml:"values"`
		}
		if err := arg.Decode(&in); err != nil {
			return nil, err
		}
		inner, err := decodeExpr(&in.Expr)
		if err != nil {
			return nil, fmt.Errorf("in: %w", err)
		}
		var values []sqlexpr.Expr
		if !isEmptyNode(&in.Values) {
			values, err = decodeList(&in.Values, "in values")
			if err != nil {
				return nil, err
			}
		}
		return sqlexpr.In{Expr: inner, Values: values}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown expression operator %q", n.Line, op)
	}
}

// decodeColumn accepts "name" or {table: t, name: n}.
func decodeColumn(n *yaml.Node) (sqlexpr.Expr, error) {
	if n.Kind == yaml.ScalarNode {
		if n.Value == "" {
			return nil, errors.New("column name is empty")
		}
		return sqlexpr.Column{Name: n.Value}, nil
	}
	var c struct {
		Table string `yaml:"table"`
		Name  string `yaml:"name"`
	}
	if err := n.Decode(&c); err != nil {
		return nil, err
	}
	if c.Name == "" {
		return nil, fmt.Errorf("line %d: column name is empty", n.Line)
	}
	return sqlexpr.Col(c.Table, c.Name), nil
}

func decodeList(n *yaml.Node, op string) ([]sqlexpr.Expr, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: %s expects a list", n.Line, op)
	}
	out := make([]sqlexpr.Expr, 0, len(n.Content))
	for i, item := range n.Content {
		expr, err := decodeExpr(item)
		if err != nil {
			return nil, fmt.Errorf("%s operand %d: %w", op, i, err)
		}
		out = append(out, expr)
	}
	return out, nil
}

func comparison(op string, left, right sqlexpr.Expr) sqlexpr.Expr {
	switch op {
	case "neq":
		return sqlexpr.Neq{Left: left, Right: right}
	case "gt":
		return sqlexpr.Gt{Left: left, Right: right}
	case "gte":
		return sqlexpr.Gte{Left: left, Right: right}
	case "lt":
		return sqlexpr.Lt{Left: left, Right: right}
	case "lte":
		return sqlexpr.Lte{Left: left, Right: right}
	default:
		return sqlexpr.Eq{Left: left, Right: right}
	}
}
