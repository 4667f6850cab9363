package planner

import (
	"fmt"
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
)

// argumentValues converts a field's arguments into plain Go values:
// int64, float64, string, bool, []any, map[string]any, or nil.
// Variable references resolve against variables; unset variables are nil.
func argumentValues(field *ast.Field, variables map[string]any) (map[string]any, error) {
	args := make(map[string]any)
	if field == nil {
		return args, nil
	}
	for _, arg := range field.Arguments {
		if arg == nil || arg.Name == nil {
			continue
		}
		value, err := valueFromAST(arg.Value, variables)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg.Name.Value, err)
		}
		args[arg.Name.Value] = value
	}
	return args, nil
}

func valueFromAST(value ast.Value, variables map[string]any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *ast.Variable:
		if v.Name == nil {
			return nil, nil
		}
		return variables[v.Name.Value], nil
	case *ast.IntValue:
		parsed, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q: %w", v.Value, err)
		}
		return parsed, nil
	case *ast.FloatValue:
		parsed, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", v.Value, err)
		}
		return parsed, nil
	case *ast.StringValue:
		return v.Value, nil
	case *ast.BooleanValue:
		return v.Value, nil
	case *ast.EnumValue:
		return v.Value, nil
	case *ast.ListValue:
		out := make([]any, 0, len(v.Values))
		for _, item := range v.Values {
			converted, err := valueFromAST(item, variables)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	case *ast.ObjectValue:
		out := make(map[string]any, len(v.Fields))
		for _, field := range v.Fields {
			if field == nil || field.Name == nil {
				continue
			}
			converted, err := valueFromAST(field.Value, variables)
			if err != nil {
				return nil, err
			}
			out[field.Name.Value] = converted
		}
		return out, nil
	default:
		return nil, nil
	}
}
