package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"superjoin/dialect"
	"superjoin/schema"
	"superjoin/sqlexpr"
)

func installCompileSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)

	oldProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(oldProvider)
	})
	return recorder
}

func TestCompileDialects(t *testing.T) {
	root := blogRoot(t)
	query := `{ user { id posts { title } } }`

	tests := []struct {
		dialect dialect.Dialect
		want    string
	}{
		{
			dialect: dialect.Postgres,
			want:    `SELECT "u1"."id" AS "u1_id", "p1"."title" AS "p1_title" FROM "users" AS "u1" LEFT JOIN "posts" AS "p1" ON "u1"."id" = "p1"."user_id"`,
		},
		{
			dialect: dialect.MySQL,
			want:    "SELECT `u1`.`id` AS `u1_id`, `p1`.`title` AS `p1_title` FROM `users` AS `u1` LEFT JOIN `posts` AS `p1` ON `u1`.`id` = `p1`.`user_id`",
		},
		{
			dialect: dialect.SQLite,
			want:    `SELECT "u1"."id" AS "u1_id", "p1"."title" AS "p1_title" FROM "users" AS "u1" LEFT JOIN "posts" AS "p1" ON "u1"."id" = "p1"."user_id"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.String(), func(t *testing.T) {
			stmt := compileSQL(t, root, query, WithDialect(tt.dialect))
			assertSQLMatches(t, stmt.SQL, tt.want)
		})
	}
}

func TestCompileDialectOnlyChangesSyntax(t *testing.T) {
	blog := blogRoot(t)
	questions := rootWithField(t, "asked", schema.WhereField{Predicate: schema.Static(sqlexpr.AllOf(
		sqlexpr.Eq{Left: sqlexpr.Column{Name: "note"}, Right: sqlexpr.Literal{Value: sqlexpr.Text("why?")}},
		sqlexpr.Eq{Left: sqlexpr.Column{Name: "id"}, Right: sqlexpr.Param{Name: "id", Value: sqlexpr.Int(7)}},
	))})
	oddColumn := rootWithField(t, "odd", schema.ColumnField{Column: "why?"})

	tests := []struct {
		name     string
		root     *schema.Root
		query    string
		postgres string
		args     []any
	}{
		{
			name:     "joins and params",
			root:     blog,
			query:    `{ user { byName id active posts { title published comments { body } } } }`,
			postgres: `SELECT "u1"."id" AS "u1_id", "p1"."title" AS "p1_title", "c1"."body" AS "c1_body" FROM "users" AS "u1" LEFT JOIN "posts" AS "p1" ON ("u1"."id" = "p1"."user_id" AND "p1"."published" = TRUE) LEFT JOIN "comments" AS "c1" ON "p1"."id" = "c1"."post_id" WHERE "u1"."status" = $1 ORDER BY "u1"."name" ASC`,
			args:     []any{"active"},
		},
		{
			name:     "question mark in text literal",
			root:     questions,
			query:    `{ user { id asked } }`,
			postgres: `SELECT "u1"."id" AS "u1_id" FROM "users" AS "u1" WHERE ("u1"."note" = 'why?' AND "u1"."id" = $1)`,
			args:     []any{int64(7)},
		},
		{
			name:     "question mark in identifier",
			root:     oddColumn,
			query:    `{ user { odd } }`,
			postgres: `SELECT "u1"."why?" AS "u1_why?" FROM "users" AS "u1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg := compileSQL(t, tt.root, tt.query, WithDialect(dialect.Postgres))
			my := compileSQL(t, tt.root, tt.query, WithDialect(dialect.MySQL))
			lite := compileSQL(t, tt.root, tt.query, WithDialect(dialect.SQLite))

			assert.Equal(t, tt.postgres, pg.SQL)
			assert.Equal(t, strings.Count(pg.SQL, "$"), len(pg.Args), "one placeholder per bound arg")
			assert.NotContains(t, my.SQL, `"`)

			// only placeholders and identifier quotes differ
			normalize := strings.NewReplacer("`", `"`, "$1", "?").Replace
			assert.Equal(t, normalize(pg.SQL), normalize(my.SQL))
			assert.Equal(t, normalize(pg.SQL), lite.SQL)

			if tt.args == nil {
				assert.Empty(t, pg.Args)
			} else {
				assert.Equal(t, tt.args, pg.Args)
			}
			assert.Equal(t, pg.Args, my.Args)
			assert.Equal(t, pg.Args, lite.Args)
			assert.Equal(t, pg.Columns, lite.Columns)
		})
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	root := blogRoot(t)
	query := `{ user { id active byName posts { title newest } } }`

	sel, err := BuildQuery(context.Background(), query, root)
	require.NoError(t, err)
	first, err := Render(sel, dialect.Postgres)
	require.NoError(t, err)
	second, err := Render(sel, dialect.Postgres)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	compiler, err := NewCompiler(root)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Statement, 16)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = compiler.Compile(context.Background(), query)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, first, results[i])
	}
}

func TestCompilerOptions(t *testing.T) {
	root := blogRoot(t)

	compiler, err := NewCompiler(root, WithDialect(dialect.MySQL), WithStrictFields(true))
	require.NoError(t, err)

	stmt, err := compiler.Compile(context.Background(), `{ user { id } }`)
	require.NoError(t, err)
	assertSQLMatches(t, stmt.SQL, "SELECT `u1`.`id` AS `u1_id` FROM `users` AS `u1`")

	// per-call options are applied after the compiler's
	stmt, err = compiler.Compile(context.Background(), `{ user { id } }`, WithDialect(dialect.Postgres))
	require.NoError(t, err)
	assertSQLMatches(t, stmt.SQL, `SELECT "u1"."id" AS "u1_id" FROM "users" AS "u1"`)

	_, err = compiler.Compile(context.Background(), `{ user { id bogus } }`)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = NewCompiler(nil)
	assert.ErrorIs(t, err, schema.ErrInvalidSchema)
}

func TestCompileRecordsSpan(t *testing.T) {
	recorder := installCompileSpanRecorder(t)
	root := blogRoot(t)

	_, err := Compile(context.Background(), `{ user { id } }`, root, WithDialect(dialect.SQLite))
	require.NoError(t, err)
	_, err = Compile(context.Background(), `{ account { id } }`, root)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "superjoin.compile", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("superjoin.dialect", "sqlite"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.String("superjoin.dialect", "postgres"))
}

func TestCompileRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	oldProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetMeterProvider(oldProvider)
	})

	root := blogRoot(t)
	compiler, err := NewCompiler(root)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = compiler.Compile(ctx, `{ user { id posts { title } } }`)
	require.NoError(t, err)
	_, err = compiler.Compile(ctx, `mutation { user { id } }`)
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				for _, kv := range point.Attributes.ToSlice() {
					counts[fmt.Sprintf("%s %s=%s", m.Name, kv.Key, kv.Value.Emit())] += point.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), counts["superjoin.compile.total outcome=success"])
	assert.Equal(t, int64(1), counts["superjoin.compile.total outcome=error"])
	assert.Equal(t, int64(1), counts["superjoin.compile.errors kind=query_structure"])
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: fmt.Errorf("wrapped: %w", ErrQueryStructure), want: "query_structure"},
		{err: ErrUnknownRootField, want: "unknown_root_field"},
		{err: fmt.Errorf("x: %w", schema.ErrUnresolvableAlias), want: "unresolvable_alias"},
		{err: ErrCallback, want: "callback"},
		{err: ErrRender, want: "render"},
		{err: ErrMaxDepth, want: "max_depth"},
		{err: ErrUnknownField, want: "unknown_field"},
		{err: schema.ErrInvalidSchema, want: "invalid_schema"},
		{err: errors.New("other"), want: "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "%v", tt.err)
	}
}
