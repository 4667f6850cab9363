package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"superjoin/dialect"
	"superjoin/sqlexpr"
)

// Render produces SQL text for sel in dialect d (Postgres when zero).
// Clause order and join semantics are the same for every dialect; only
// quoting and placeholder syntax differ.
//
// A Select without columns builds fine, for instance when every selected
// field lacks metadata, but SQL needs at least one projection, so Render
// (and Compile) reject it with ErrRender.
func Render(sel *Select, d dialect.Dialect) (Statement, error) {
	if sel == nil {
		return Statement{}, fmt.Errorf("%w: nil select", ErrRender)
	}
	d = d.Or()

	query := sq.Select().
		PlaceholderFormat(d.PlaceholderFormat()).
		From(d.QuoteIdentifier(sel.Table) + " AS " + d.QuoteIdentifier(sel.Alias))

	columns := make([]OutputColumn, 0, len(sel.Columns))
	for _, col := range sel.Columns {
		expr := col.Expr
		if expr == nil {
			expr = sqlexpr.Col(col.Table, col.Name)
		}
		compiled, err := sqlexpr.Compile(expr, d)
		if err != nil {
			return Statement{}, fmt.Errorf("%w: column %q: %w", ErrRender, col.Alias, err)
		}
		query = query.Column(aliasedColumn{expr: compiled, alias: d.QuoteIdentifier(col.Alias)})
		columns = append(columns, OutputColumn{Alias: col.Alias, Path: col.Path})
	}

	for _, join := range sel.Joins {
		clause := joinClause{
			keyword: join.Kind.Keyword(),
			table:   d.QuoteIdentifier(join.Table) + " AS " + d.QuoteIdentifier(join.Alias),
		}
		if join.Kind.HasCondition() && join.On != nil {
			on, err := sqlexpr.Compile(join.On, d)
			if err != nil {
				return Statement{}, fmt.Errorf("%w: join %q: %w", ErrRender, join.Alias, err)
			}
			clause.on = on
		}
		query = query.JoinClause(clause)
	}

	if sel.Where != nil {
		where, err := sqlexpr.Compile(sel.Where, d)
		if err != nil {
			return Statement{}, fmt.Errorf("%w: where: %w", ErrRender, err)
		}
		query = query.Where(where)
	}

	for i, term := range sel.OrderBy {
		expr, err := sqlexpr.Compile(term.Expr, d)
		if err != nil {
			return Statement{}, fmt.Errorf("%w: order term %d: %w", ErrRender, i, err)
		}
		query = query.OrderByClause(orderTerm{expr: expr, direction: string(term.Direction)})
	}

	if sel.Limit != nil {
		query = query.Limit(*sel.Limit)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return Statement{}, fmt.Errorf("%w: %w", ErrRender, err)
	}
	values, names := sqlexpr.Unbind(args)
	return Statement{SQL: sql, Args: values, ParamNames: names, Columns: columns}, nil
}

type aliasedColumn struct {
	expr  sq.Sqlizer
	alias string
}

func (c aliasedColumn) ToSql() (string, []interface{}, error) {
	sql, args, err := c.expr.ToSql()
	if err != nil {
		return "", nil, err
	}
	return sql + " AS " + c.alias, args, nil
}

type joinClause struct {
	keyword string
	table   string
	on      sq.Sqlizer
}

func (j joinClause) ToSql() (string, []interface{}, error) {
	if j.on == nil {
		return j.keyword + " " + j.table, nil, nil
	}
	on, args, err := j.on.ToSql()
	if err != nil {
		return "", nil, err
	}
	return j.keyword + " " + j.table + " ON " + on, args, nil
}

type orderTerm struct {
	expr      sq.Sqlizer
	direction string
}

func (o orderTerm) ToSql() (string, []interface{}, error) {
	sql, args, err := o.expr.ToSql()
	if err != nil {
		return "", nil, err
	}
	if o.direction == "" {
		return sql, args, nil
	}
	return sql + " " + o.direction, args, nil
}
