// Package planner compiles a GraphQL selection into one SQL SELECT statement.
//
// Build walks the selection set against a schema.Root and produces a Select,
// a dialect-neutral description of the statement in which every join of the
// query, however deeply nested in GraphQL, is flattened into a single join
// list. Render turns a Select into SQL text for one dialect.
package planner

import (
	"superjoin/dialect"
	"superjoin/schema"
	"superjoin/sqlexpr"
)

// Select is the intermediate representation of one statement.
type Select struct {
	Table   string
	Alias   string
	Columns []Column
	Joins   []Join
	Where   sqlexpr.Expr
	OrderBy []OrderTerm
	Limit   *uint64
}

// Column is one projected column. Expr, when set, replaces Table.Name.
type Column struct {
	Table string
	Name  string
	Expr  sqlexpr.Expr
	Alias string
	// Path is the GraphQL response path of the field that selected the column.
	Path []string
}

// Join is one flattened join.
type Join struct {
	Table string
	Alias string
	Kind  dialect.JoinKind
	On    sqlexpr.Expr
}

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Expr      sqlexpr.Expr
	Direction schema.Direction
}

// Statement is a rendered SELECT.
type Statement struct {
	SQL  string
	Args []any
	// ParamNames holds the schema parameter name of each arg, or "" for
	// args that did not come from a named parameter.
	ParamNames []string
	Columns    []OutputColumn
}

// OutputColumn maps a result column back to its GraphQL response path.
type OutputColumn struct {
	Alias string
	Path  []string
}

// JoinCount returns the number of flattened joins.
func (s *Select) JoinCount() int {
	if s == nil {
		return 0
	}
	return len(s.Joins)
}
