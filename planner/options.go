package planner

import (
	"github.com/graphql-go/graphql/language/ast"

	"superjoin/dialect"
)

// DefaultMaxDepth bounds join recursion when no limit is configured.
const DefaultMaxDepth = 32

type planOptions struct {
	dialect        dialect.Dialect
	maxDepth       int
	strictFields   bool
	requestContext any
	variables      map[string]any
	fragments      map[string]*ast.FragmentDefinition
	operationName  string
}

// PlanOption customizes planning behavior.
type PlanOption func(*planOptions)

// WithDialect selects the render target. The zero value is Postgres.
func WithDialect(d dialect.Dialect) PlanOption {
	return func(o *planOptions) {
		o.dialect = d
	}
}

// WithMaxDepth caps join nesting. Values <= 0 select DefaultMaxDepth.
func WithMaxDepth(depth int) PlanOption {
	return func(o *planOptions) {
		o.maxDepth = depth
	}
}

// WithStrictFields makes selections without field metadata an error
// instead of skipping them.
func WithStrictFields(strict bool) PlanOption {
	return func(o *planOptions) {
		o.strictFields = strict
	}
}

// WithRequestContext sets the opaque value handed to deferred predicates.
func WithRequestContext(value any) PlanOption {
	return func(o *planOptions) {
		o.requestContext = value
	}
}

// WithVariables supplies values for $variable references in field arguments.
func WithVariables(variables map[string]any) PlanOption {
	return func(o *planOptions) {
		o.variables = variables
	}
}

// WithFragments supplies named fragment definitions for fragment spreads.
// Fragments found in a parsed query document take precedence.
func WithFragments(fragments map[string]*ast.FragmentDefinition) PlanOption {
	return func(o *planOptions) {
		if o.fragments == nil {
			o.fragments = make(map[string]*ast.FragmentDefinition, len(fragments))
		}
		for name, def := range fragments {
			o.fragments[name] = def
		}
	}
}

// WithOperationName picks the named operation from a multi-operation document.
func WithOperationName(name string) PlanOption {
	return func(o *planOptions) {
		o.operationName = name
	}
}

func newPlanOptions(opts ...PlanOption) planOptions {
	options := planOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	options.dialect = options.dialect.Or()
	if options.maxDepth <= 0 {
		options.maxDepth = DefaultMaxDepth
	}
	return options
}
