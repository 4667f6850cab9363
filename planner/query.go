package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"superjoin/internal/logging"
	"superjoin/schema"
)

// BuildQuery parses query and builds the Select for the first top-level
// field of its operation. The root node is the first node of root whose
// FieldName equals that field's name.
func BuildQuery(ctx context.Context, query string, root *schema.Root, opts ...PlanOption) (*Select, error) {
	return buildQuery(ctx, query, root, newPlanOptions(opts...))
}

func buildQuery(ctx context.Context, query string, root *schema.Root, options planOptions) (*Select, error) {
	field, fragments, err := rootField(ctx, query, options.operationName)
	if err != nil {
		return nil, err
	}

	node, ok := root.NodeByFieldName(field.Name.Value)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRootField, field.Name.Value)
	}

	if len(fragments) > 0 {
		merged := make(map[string]*ast.FragmentDefinition, len(options.fragments)+len(fragments))
		for name, def := range options.fragments {
			merged[name] = def
		}
		for name, def := range fragments {
			merged[name] = def
		}
		options.fragments = merged
	}
	return build(ctx, node, field, root, options)
}

// rootField parses query and returns the first top-level field of the
// selected operation, with the document's fragment definitions.
func rootField(ctx context.Context, query string, operationName string) (*ast.Field, map[string]*ast.FragmentDefinition, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil, fmt.Errorf("%w: query is empty", ErrQueryStructure)
	}
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "GraphQL request",
		}),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrQueryStructure, err)
	}

	fragments := buildFragmentMap(doc)
	op, err := selectOperation(doc, operationName)
	if err != nil {
		return nil, nil, err
	}
	if op.Operation != ast.OperationTypeQuery {
		return nil, nil, fmt.Errorf("%w: operation type %q is not supported", ErrQueryStructure, op.Operation)
	}
	if op.SelectionSet == nil {
		return nil, nil, fmt.Errorf("%w: operation has no selection set", ErrQueryStructure)
	}

	fields := collectFields(op.SelectionSet.Selections, fragments)
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("%w: operation selects no fields", ErrQueryStructure)
	}
	if len(fields) > 1 {
		logging.FromContext(ctx).Debug("ignoring additional root fields",
			slog.String("field", fields[0].Name.Value),
			slog.Int("ignored", len(fields)-1),
		)
	}
	return fields[0], fragments, nil
}

func buildFragmentMap(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		fragment, ok := def.(*ast.FragmentDefinition)
		if !ok || fragment == nil || fragment.Name == nil || fragment.Name.Value == "" {
			continue
		}
		fragments[fragment.Name.Value] = fragment
	}
	return fragments
}

// selectOperation returns the named operation, or the first one when name is empty.
func selectOperation(doc *ast.Document, name string) (*ast.OperationDefinition, error) {
	var first *ast.OperationDefinition
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok || op == nil {
			continue
		}
		if name == "" {
			return op, nil
		}
		if op.Name != nil && op.Name.Value == name {
			return op, nil
		}
		if first == nil {
			first = op
		}
	}
	if name != "" && first != nil {
		return nil, fmt.Errorf("%w: unknown operation named %q", ErrQueryStructure, name)
	}
	return nil, fmt.Errorf("%w: document has no operation", ErrQueryStructure)
}
