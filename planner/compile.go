package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"superjoin/internal/logging"
	"superjoin/internal/observability"
	"superjoin/schema"
)

// Compiler compiles queries against one Root. It is safe for concurrent use.
type Compiler struct {
	root    *schema.Root
	opts    []PlanOption
	metrics *observability.CompileMetrics
}

// NewCompiler returns a Compiler for root. opts apply to every compilation
// and may be extended per call.
func NewCompiler(root *schema.Root, opts ...PlanOption) (*Compiler, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: root is required", schema.ErrInvalidSchema)
	}
	metrics, err := observability.InitCompileMetrics()
	if err != nil {
		return nil, err
	}
	return &Compiler{root: root, opts: opts, metrics: metrics}, nil
}

// Compile parses, builds, and renders query in one traced step.
func (c *Compiler) Compile(ctx context.Context, query string, opts ...PlanOption) (Statement, error) {
	all := make([]PlanOption, 0, len(c.opts)+len(opts))
	all = append(all, c.opts...)
	all = append(all, opts...)
	options := newPlanOptions(all...)

	ctx, span := observability.StartSpan(ctx, "superjoin.compile",
		attribute.String("superjoin.dialect", options.dialect.String()),
	)
	start := time.Now()

	stmt, joins, err := c.compile(ctx, query, options)

	kind := ErrorKind(err)
	observability.FinishSpan(span, err, "")
	c.metrics.RecordCompile(ctx, options.dialect.String(), time.Since(start), joins, kind)

	logger := logging.FromContext(ctx)
	if err != nil {
		logger.Debug("compile failed",
			slog.String("dialect", options.dialect.String()),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return Statement{}, err
	}
	logger.Debug("compiled query",
		slog.String("dialect", options.dialect.String()),
		slog.Int("columns", len(stmt.Columns)),
		slog.Int("joins", joins),
		slog.Int("args", len(stmt.Args)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return stmt, nil
}

func (c *Compiler) compile(ctx context.Context, query string, options planOptions) (Statement, int, error) {
	sel, err := buildQuery(ctx, query, c.root, options)
	if err != nil {
		return Statement{}, 0, err
	}
	stmt, err := Render(sel, options.dialect)
	if err != nil {
		return Statement{}, 0, err
	}
	return stmt, sel.JoinCount(), nil
}

// Compile is a one-shot NewCompiler(root).Compile(ctx, query, opts...).
// Callers compiling many queries should keep a Compiler.
func Compile(ctx context.Context, query string, root *schema.Root, opts ...PlanOption) (Statement, error) {
	c, err := NewCompiler(root)
	if err != nil {
		return Statement{}, err
	}
	return c.Compile(ctx, query, opts...)
}
