package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphql-go/graphql/language/ast"

	"superjoin/dialect"
	"superjoin/internal/logging"
	"superjoin/schema"
	"superjoin/sqlexpr"
)

// Build compiles field against node into a Select. node is usually the root
// Node found by field name; Build itself does not look at the field's name.
func Build(ctx context.Context, node schema.AnyNode, field *ast.Field, root *schema.Root, opts ...PlanOption) (*Select, error) {
	return build(ctx, node, field, root, newPlanOptions(opts...))
}

func build(ctx context.Context, node schema.AnyNode, field *ast.Field, root *schema.Root, options planOptions) (*Select, error) {
	if field == nil {
		return nil, fmt.Errorf("%w: field is required", ErrQueryStructure)
	}
	b := &builder{
		ctx:     ctx,
		root:    root,
		options: options,
		logger:  logging.FromContext(ctx),
	}
	sel, err := b.build(node, field, []string{responseKey(field)}, 0)
	if err != nil {
		return nil, err
	}
	if err := checkTableAliases(sel); err != nil {
		return nil, err
	}
	sel.Columns = uniqueColumnAliases(sel.Columns)
	return sel, nil
}

type builder struct {
	ctx     context.Context
	root    *schema.Root
	options planOptions
	logger  *logging.Logger
}

// build produces the Select for one node level. Joined levels are built
// recursively and spliced into this level, so the returned Select is flat.
func (b *builder) build(node schema.AnyNode, field *ast.Field, path []string, depth int) (*Select, error) {
	if depth > b.options.maxDepth {
		return nil, fmt.Errorf("%w: %q is nested %d joins deep (max %d)", ErrMaxDepth, strings.Join(path, "."), depth, b.options.maxDepth)
	}
	def, err := schema.ResolveNode(node, b.root)
	if err != nil {
		return nil, err
	}
	alias := schema.ResolveAlias(node)

	if field.SelectionSet == nil || len(field.SelectionSet.Selections) == 0 {
		return nil, fmt.Errorf("%w: field %q has no selection set", ErrQueryStructure, strings.Join(path, "."))
	}
	subfields := mergeFields(collectFields(field.SelectionSet.Selections, b.options.fragments))

	sel := &Select{Table: def.Table, Alias: alias}
	// filters of cross-joined children, which have no ON clause to carry them
	var pushed []sqlexpr.Expr

	for _, sub := range subfields {
		name := sub.Name.Value
		meta, ok := def.Field(name)
		if !ok {
			if b.options.strictFields {
				return nil, fmt.Errorf("%w: %q on node %q", ErrUnknownField, name, def.Alias)
			}
			b.logger.Debug("skipping field without metadata",
				slog.String("field", name),
				slog.String("node", def.Alias),
			)
			continue
		}

		subPath := appendPath(path, responseKey(sub))
		switch m := meta.(type) {
		case schema.ColumnField:
			sel.Columns = append(sel.Columns, columnFor(alias, name, subPath, m))
		case schema.JoinField:
			filter, err := b.join(sel, alias, sub, subPath, depth, m.JoinInfo)
			if err != nil {
				return nil, err
			}
			if filter != nil {
				pushed = append(pushed, filter)
			}
		case schema.WhereField:
			where, err := b.predicate(m.Predicate, alias, alias, sub)
			if err != nil {
				return nil, fmt.Errorf("where %q on node %q: %w", name, def.Alias, err)
			}
			sel.Where = where
		case schema.OrderByField:
			for _, term := range m.Terms {
				sel.OrderBy = append(sel.OrderBy, OrderTerm{
					Expr:      sqlexpr.Qualify(term.Expr, alias),
					Direction: term.Direction,
				})
			}
		case schema.LimitField:
			limit := m.Limit
			sel.Limit = &limit
		}
	}

	sel.Where = sqlexpr.AllOf(append([]sqlexpr.Expr{sel.Where}, pushed...)...)
	return sel, nil
}

// join builds the joined level and splices it into sel. It returns the
// child's filter when the join kind has no ON clause to attach it to.
func (b *builder) join(sel *Select, parentAlias string, field *ast.Field, path []string, depth int, info schema.JoinInfo) (sqlexpr.Expr, error) {
	child, err := b.build(info.Extends, field, path, depth+1)
	if err != nil {
		return nil, err
	}

	kind := info.Join.Kind
	if kind == "" {
		kind = dialect.LeftJoin
	}

	var on sqlexpr.Expr
	if !info.Join.On.IsZero() {
		on, err = b.predicate(info.Join.On, parentAlias, child.Alias, field)
		if err != nil {
			return nil, fmt.Errorf("join %q: %w", child.Alias, err)
		}
	}

	var pushed sqlexpr.Expr
	if kind.HasCondition() {
		on = sqlexpr.AllOf(on, child.Where)
		if on == nil {
			return nil, fmt.Errorf("%w: %s %q has no on predicate", schema.ErrInvalidSchema, kind.Keyword(), child.Alias)
		}
	} else {
		// a cross join's own predicate and the child's filter move to WHERE
		pushed = sqlexpr.AllOf(on, child.Where)
		on = nil
	}

	sel.Joins = append(sel.Joins, Join{Table: child.Table, Alias: child.Alias, Kind: kind, On: on})
	sel.Joins = append(sel.Joins, child.Joins...)
	sel.Columns = append(sel.Columns, child.Columns...)
	sel.OrderBy = append(sel.OrderBy, child.OrderBy...)
	if child.Limit != nil {
		b.logger.Debug("dropping limit on joined node",
			slog.String("alias", child.Alias),
			slog.Uint64("limit", *child.Limit),
		)
	}
	return pushed, nil
}

// predicate turns a static or deferred predicate into an expression. Bare
// columns of a static predicate are qualified with alias.
func (b *builder) predicate(pred schema.Predicate, parentAlias, alias string, field *ast.Field) (sqlexpr.Expr, error) {
	if !pred.IsDeferred() {
		return sqlexpr.Qualify(pred.Expr(), alias), nil
	}
	cb := pred.Callback()
	if cb == nil {
		return nil, fmt.Errorf("%w: predicate for %q has no callback", ErrCallback, alias)
	}
	args, err := argumentValues(field, b.options.variables)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryStructure, err)
	}

	out, err := invokeCallback(b.ctx, cb, schema.CallbackArgs{
		ParentAlias: parentAlias,
		Alias:       alias,
		Args:        args,
		Context:     b.options.requestContext,
		Field:       field,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: predicate for %q: %w", ErrCallback, alias, err)
	}
	sql, ok := out.(string)
	if !ok {
		return nil, fmt.Errorf("%w: predicate for %q returned %T, want string", ErrCallback, alias, out)
	}
	if strings.TrimSpace(sql) == "" {
		return nil, fmt.Errorf("%w: predicate for %q returned an empty string", ErrCallback, alias)
	}
	return sqlexpr.Raw{SQL: sql}, nil
}

func invokeCallback(ctx context.Context, cb schema.Callback, args schema.CallbackArgs) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cb.Invoke(ctx, args)
}

func columnFor(alias, fieldName string, path []string, m schema.ColumnField) Column {
	col := Column{Table: alias, Name: m.Column, Alias: m.Alias, Path: path}
	if m.Expr != nil {
		col.Expr = sqlexpr.Qualify(m.Expr, alias)
	} else if col.Name == "" {
		col.Name = fieldName
	}
	if col.Alias == "" {
		if col.Expr != nil {
			col.Alias = alias + "_" + fieldName
		} else {
			col.Alias = alias + "_" + col.Name
		}
	}
	return col
}

// collectFields flattens fragments into the list of fields they select.
// __typename is dropped; unknown fragments are ignored.
func collectFields(selections []ast.Selection, fragments map[string]*ast.FragmentDefinition) []*ast.Field {
	var fields []*ast.Field
	visited := make(map[string]bool)

	var visit func(selections []ast.Selection)
	visit = func(selections []ast.Selection) {
		for _, selection := range selections {
			switch sel := selection.(type) {
			case *ast.Field:
				if sel.Name == nil || sel.Name.Value == "__typename" {
					continue
				}
				fields = append(fields, sel)
			case *ast.InlineFragment:
				if sel.SelectionSet != nil {
					visit(sel.SelectionSet.Selections)
				}
			case *ast.FragmentSpread:
				if sel.Name == nil || visited[sel.Name.Value] {
					continue
				}
				visited[sel.Name.Value] = true
				fragment, ok := fragments[sel.Name.Value]
				if !ok || fragment == nil || fragment.SelectionSet == nil {
					continue
				}
				visit(fragment.SelectionSet.Selections)
			}
		}
	}
	visit(selections)
	return fields
}

// mergeFields merges fields that share a response key, as GraphQL execution
// does: the first occurrence keeps its position and arguments and receives
// the selections of the later ones.
func mergeFields(fields []*ast.Field) []*ast.Field {
	index := make(map[string]int, len(fields))
	out := make([]*ast.Field, 0, len(fields))
	for _, f := range fields {
		key := responseKey(f)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, f)
			continue
		}
		if f.SelectionSet == nil || len(f.SelectionSet.Selections) == 0 {
			continue
		}
		merged := *out[i]
		var selections []ast.Selection
		if merged.SelectionSet != nil {
			selections = append(selections, merged.SelectionSet.Selections...)
		}
		selections = append(selections, f.SelectionSet.Selections...)
		merged.SelectionSet = &ast.SelectionSet{Selections: selections}
		out[i] = &merged
	}
	return out
}

// checkTableAliases rejects statements that introduce one alias twice, such
// as one relation selected under two response keys or a self-join nested
// in itself.
func checkTableAliases(sel *Select) error {
	seen := map[string]bool{sel.Alias: true}
	for _, join := range sel.Joins {
		if seen[join.Alias] {
			return fmt.Errorf("%w: table alias %q is introduced more than once; select the relation once per level", ErrQueryStructure, join.Alias)
		}
		seen[join.Alias] = true
	}
	return nil
}

// uniqueColumnAliases renames columns whose render alias is already taken
// by appending _2, _3 and so on, so every alias maps to one response path.
func uniqueColumnAliases(cols []Column) []Column {
	taken := make(map[string]bool, len(cols))
	for i := range cols {
		if taken[cols[i].Alias] {
			base := cols[i].Alias
			for n := 2; taken[cols[i].Alias]; n++ {
				cols[i].Alias = fmt.Sprintf("%s_%d", base, n)
			}
		}
		taken[cols[i].Alias] = true
	}
	return cols
}

// responseKey is the key the field's value takes in the response: its alias
// when present, otherwise its name.
func responseKey(field *ast.Field) string {
	if field.Alias != nil && field.Alias.Value != "" {
		return field.Alias.Value
	}
	if field.Name == nil {
		return ""
	}
	return field.Name.Value
}

func appendPath(path []string, key string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, key)
}
