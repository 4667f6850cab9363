package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superjoin/dialect"
	"superjoin/schema"
	"superjoin/sqlexpr"
)

// blogRoot is a users -> posts -> comments -> author (users again) graph.
func blogRoot(t *testing.T) *schema.Root {
	t.Helper()

	user := &schema.Node{
		Alias:     "u1",
		FieldName: "user",
		Table:     "users",
		Fields: map[string]schema.FieldMeta{
			"id":          schema.ColumnField{Column: "id"},
			"name":        schema.ColumnField{Column: "name"},
			"displayName": schema.ColumnField{Expr: sqlexpr.Column{Name: "full_name"}},
			"posts": schema.JoinField{JoinInfo: schema.JoinInfo{
				Extends: schema.ExtendsNode{Alias: "p1", FieldName: "posts", Extends: "post"},
				Join: schema.Join{On: schema.Static(sqlexpr.Eq{
					Left:  sqlexpr.Col("u1", "id"),
					Right: sqlexpr.Column{Name: "user_id"},
				})},
			}},
			"friends": schema.JoinField{JoinInfo: schema.JoinInfo{
				Extends: schema.ExtendsNode{Alias: "f1", FieldName: "friends", Extends: "u1"},
				Join: schema.Join{
					On:   schema.Static(sqlexpr.Raw{SQL: "1 = 1"}),
					Kind: dialect.InnerJoin,
				},
			}},
			"tags": schema.JoinField{JoinInfo: schema.JoinInfo{
				Extends: schema.ExtendsNode{Alias: "t1", FieldName: "tags", Extends: "tag"},
				Join:    schema.Join{Kind: dialect.CrossJoin},
			}},
			"active": schema.WhereField{Predicate: schema.Static(sqlexpr.Eq{
				Left:  sqlexpr.Column{Name: "status"},
				Right: sqlexpr.Param{Name: "status", Value: sqlexpr.Text("active")},
			})},
			"archived": schema.WhereField{Predicate: schema.Static(sqlexpr.IsNotNull{
				Expr: sqlexpr.Column{Name: "archived_at"},
			})},
			"byName": schema.OrderByField{Terms: []schema.OrderTerm{
				{Expr: sqlexpr.Column{Name: "name"}, Direction: schema.Asc},
			}},
			"first10": schema.LimitField{Limit: 10},
			"top5":    schema.LimitField{Limit: 5},
		},
	}
	post := &schema.Node{
		Alias:     "post",
		FieldName: "post",
		Table:     "posts",
		Fields: map[string]schema.FieldMeta{
			"title": schema.ColumnField{Column: "title"},
			"published": schema.WhereField{Predicate: schema.Static(sqlexpr.Eq{
				Left:  sqlexpr.Column{Name: "published"},
				Right: sqlexpr.Literal{Value: sqlexpr.Bool(true)},
			})},
			"newest": schema.OrderByField{Terms: []schema.OrderTerm{
				{Expr: sqlexpr.Column{Name: "created_at"}, Direction: schema.Desc},
			}},
			"latest": schema.LimitField{Limit: 1},
			"comments": schema.JoinField{JoinInfo: schema.JoinInfo{
				Extends: schema.ExtendsNode{Alias: "c1", FieldName: "comments", Extends: "comment"},
				Join: schema.Join{On: schema.Static(sqlexpr.Eq{
					Left:  sqlexpr.Col("p1", "id"),
					Right: sqlexpr.Column{Name: "post_id"},
				})},
			}},
		},
	}
	comment := &schema.Node{
		Alias:     "comment",
		FieldName: "comment",
		Table:     "comments",
		Fields: map[string]schema.FieldMeta{
			"body": schema.ColumnField{Column: "body"},
			"author": schema.JoinField{JoinInfo: schema.JoinInfo{
				Extends: schema.ExtendsNode{Alias: "a1", FieldName: "author", Extends: "u1"},
				Join: schema.Join{On: schema.Static(sqlexpr.Eq{
					Left:  sqlexpr.Col("c1", "author_id"),
					Right: sqlexpr.Column{Name: "id"},
				})},
			}},
		},
	}
	tag := &schema.Node{
		Alias:     "tag",
		FieldName: "tag",
		Table:     "tags",
		Fields: map[string]schema.FieldMeta{
			"name":    schema.ColumnField{Column: "name"},
			"visible": schema.WhereField{Predicate: schema.Static(sqlexpr.IsNotNull{Expr: sqlexpr.Column{Name: "name"}})},
		},
	}

	root, err := schema.NewRoot(user, post, comment, tag)
	require.NoError(t, err)
	require.NoError(t, root.Validate())
	return root
}

// rootWithField returns a one-node root whose user node has the extra field.
func rootWithField(t *testing.T, name string, meta schema.FieldMeta) *schema.Root {
	t.Helper()
	user := &schema.Node{
		Alias:     "u1",
		FieldName: "user",
		Table:     "users",
		Fields: map[string]schema.FieldMeta{
			"id": schema.ColumnField{Column: "id"},
			name: meta,
		},
	}
	target := &schema.Node{
		Alias:     "comment",
		FieldName: "comment",
		Table:     "comments",
		Fields: map[string]schema.FieldMeta{
			"body": schema.ColumnField{Column: "body"},
		},
	}
	root, err := schema.NewRoot(user, target)
	require.NoError(t, err)
	return root
}

func compileSQL(t *testing.T, root *schema.Root, query string, opts ...PlanOption) Statement {
	t.Helper()
	stmt, err := Compile(context.Background(), query, root, opts...)
	require.NoError(t, err)
	return stmt
}

func assertSQLMatches(t *testing.T, got string, candidates ...string) {
	t.Helper()

	gotNorm := normalizeSQL(got)
	for _, candidate := range candidates {
		if gotNorm == normalizeSQL(candidate) {
			return
		}
	}

	assert.Fail(t, "SQL did not match any expected form", "got: %q candidates: %v", gotNorm, candidates)
}

func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

func field(name string, children ...ast.Selection) *ast.Field {
	f := &ast.Field{Name: &ast.Name{Value: name}}
	if len(children) > 0 {
		f.SelectionSet = &ast.SelectionSet{Selections: children}
	}
	return f
}
