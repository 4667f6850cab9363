package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superjoin/dialect"
	"superjoin/sqlexpr"
)

func blogNodes() (*Node, *Node) {
	post := &Node{
		Alias:     "post",
		FieldName: "post",
		Table:     "posts",
		Fields: map[string]FieldMeta{
			"title": ColumnField{Column: "title"},
		},
	}
	user := &Node{
		Alias:     "u1",
		FieldName: "user",
		Table:     "users",
		Fields: map[string]FieldMeta{
			"id": ColumnField{Column: "id"},
			"posts": JoinField{JoinInfo{
				Extends: ExtendsNode{Alias: "p1", FieldName: "posts", Extends: "post"},
				Join: Join{On: Static(sqlexpr.Eq{
					Left:  sqlexpr.Col("u1", "id"),
					Right: sqlexpr.Col("p1", "user_id"),
				})},
			}},
		},
	}
	return user, post
}

func TestNewRoot(t *testing.T) {
	user, post := blogNodes()
	root, err := NewRoot(user, post)
	require.NoError(t, err)

	assert.Equal(t, 2, root.Len())
	assert.Equal(t, []*Node{user, post}, root.Nodes())

	got, ok := root.Node("post")
	require.True(t, ok)
	assert.Same(t, post, got)

	got, ok = root.NodeByFieldName("user")
	require.True(t, ok)
	assert.Same(t, user, got)

	_, ok = root.NodeByFieldName("comment")
	assert.False(t, ok)
	require.NoError(t, root.Validate())
}

func TestNewRootRejectsBadAliases(t *testing.T) {
	_, err := NewRoot(&Node{Table: "users"})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = NewRoot(&Node{Alias: "u", Table: "users"}, &Node{Alias: "u", Table: "accounts"})
	assert.ErrorIs(t, err, ErrInvalidSchema)
	assert.Contains(t, err.Error(), `duplicate node alias "u"`)

	_, err = NewRoot(nil)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestNodeByFieldNameFirstRegisteredWins(t *testing.T) {
	first := &Node{Alias: "a", FieldName: "user", Table: "users"}
	second := &Node{Alias: "b", FieldName: "user", Table: "users_archive"}
	root, err := NewRoot(first, second)
	require.NoError(t, err)

	got, ok := root.NodeByFieldName("user")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestResolve(t *testing.T) {
	user, post := blogNodes()
	root, err := NewRoot(user, post)
	require.NoError(t, err)

	t.Run("node resolves to itself", func(t *testing.T) {
		got, err := ResolveNode(user, root)
		require.NoError(t, err)
		assert.Same(t, user, got)
		assert.Equal(t, "u1", ResolveAlias(user))
	})

	t.Run("extends node keeps its own alias", func(t *testing.T) {
		ext := ExtendsNode{Alias: "p2", FieldName: "posts", Extends: "post"}
		got, err := ResolveNode(ext, root)
		require.NoError(t, err)
		assert.Same(t, post, got)
		assert.Equal(t, "p2", ResolveAlias(ext))
	})

	t.Run("missing extends alias", func(t *testing.T) {
		_, err := ResolveNode(ExtendsNode{Alias: "c1", Extends: "comment"}, root)
		require.ErrorIs(t, err, ErrUnresolvableAlias)
		assert.Contains(t, err.Error(), `"comment"`)
	})

	t.Run("nil node", func(t *testing.T) {
		var n *Node
		_, err := ResolveNode(n, root)
		assert.ErrorIs(t, err, ErrUnresolvableAlias)
		assert.Equal(t, "", ResolveAlias(n))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		field   FieldMeta
		wantErr error
	}{
		{
			name:    "unresolvable join",
			field:   JoinField{JoinInfo{Extends: ExtendsNode{Alias: "x1", Extends: "missing"}, Join: Join{On: Static(sqlexpr.Raw{SQL: "1=1"})}}},
			wantErr: ErrUnresolvableAlias,
		},
		{
			name:    "join without condition",
			field:   JoinField{JoinInfo{Extends: ExtendsNode{Alias: "x1", Extends: "t"}}},
			wantErr: ErrInvalidSchema,
		},
		{
			name:  "cross join without condition",
			field: JoinField{JoinInfo{Extends: ExtendsNode{Alias: "x1", Extends: "t"}, Join: Join{Kind: dialect.CrossJoin}}},
		},
		{
			name:    "empty column",
			field:   ColumnField{},
			wantErr: ErrInvalidSchema,
		},
		{
			name:    "empty where",
			field:   WhereField{},
			wantErr: ErrInvalidSchema,
		},
		{
			name:  "deferred where",
			field: WhereField{Predicate: Deferred(nil)},
		},
		{
			name:    "order term without expression",
			field:   OrderByField{Terms: []OrderTerm{{Direction: Asc}}},
			wantErr: ErrInvalidSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := NewRoot(&Node{Alias: "t", Table: "things", Fields: map[string]FieldMeta{"f": tt.field}})
			require.NoError(t, err)
			err = root.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPredicate(t *testing.T) {
	var zero Predicate
	assert.True(t, zero.IsZero())

	static := Static(sqlexpr.Raw{SQL: "1=1"})
	assert.False(t, static.IsDeferred())
	assert.Equal(t, sqlexpr.Raw{SQL: "1=1"}, static.Expr())

	called := false
	deferred := Deferred(CallbackFunc(func(ctx context.Context, args CallbackArgs) (any, error) {
		called = true
		return args.Alias + ".id = 1", nil
	}))
	assert.True(t, deferred.IsDeferred())
	assert.False(t, deferred.IsZero())
	assert.Nil(t, deferred.Expr())

	out, err := deferred.Callback().Invoke(context.Background(), CallbackArgs{Alias: "p1"})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "p1.id = 1", out)
}

func TestParseDirection(t *testing.T) {
	dir, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Asc, dir)

	dir, err = ParseDirection("desc")
	require.NoError(t, err)
	assert.Equal(t, Desc, dir)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
