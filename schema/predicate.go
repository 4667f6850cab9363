package schema

import (
	"context"

	"github.com/graphql-go/graphql/language/ast"

	"superjoin/sqlexpr"
)

// Predicate is a join or where condition: either a static expression or a
// callback evaluated while the statement is built.
type Predicate struct {
	expr     sqlexpr.Expr
	callback Callback
	deferred bool
}

// Static wraps a fixed expression.
func Static(expr sqlexpr.Expr) Predicate {
	return Predicate{expr: expr}
}

// Deferred wraps a callback. A nil callback is kept and reported as an
// error when the predicate is evaluated.
func Deferred(cb Callback) Predicate {
	return Predicate{callback: cb, deferred: true}
}

// IsDeferred reports whether the predicate is a callback.
func (p Predicate) IsDeferred() bool { return p.deferred }

// IsZero reports whether the predicate carries no condition at all.
func (p Predicate) IsZero() bool { return !p.deferred && p.expr == nil }

// Expr returns the static expression, nil for deferred predicates.
func (p Predicate) Expr() sqlexpr.Expr { return p.expr }

// Callback returns the deferred callback, nil for static predicates.
func (p Predicate) Callback() Callback { return p.callback }

// CallbackArgs is what a deferred predicate receives.
type CallbackArgs struct {
	// ParentAlias is the alias of the statement level the predicate belongs to.
	// For a where predicate it equals Alias.
	ParentAlias string
	Alias       string
	// Args are the declaring GraphQL field's arguments with variables resolved.
	Args map[string]any
	// Context is the opaque per-request value handed to the planner.
	Context any
	Field   *ast.Field
}

// Callback computes a predicate at build time. The result must be a string
// of SQL; it is spliced into the statement verbatim.
type Callback interface {
	Invoke(ctx context.Context, args CallbackArgs) (any, error)
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(ctx context.Context, args CallbackArgs) (any, error)

// Invoke calls f.
func (f CallbackFunc) Invoke(ctx context.Context, args CallbackArgs) (any, error) {
	return f(ctx, args)
}
