package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaDoc = `
nodes:
  - alias: u1
    table: users
    fields:
      id:
      active:
        kind: where
        expr:
          eq: [{column: status}, {param: {name: status, value: active}}]
      posts:
        kind: join
        extends: posts
        alias: p1
        on:
          eq:
            - column: {table: u1, name: id}
            - column: user_id
  - table: posts
    fields:
      title:
`

func writeSchema(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(schemaDoc), 0o600))
	return path
}

func TestRun(t *testing.T) {
	path := writeSchema(t)

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  []string
	}{
		{
			name: "query flag",
			args: []string{"-s", path, "-q", "{ user { id posts { title } } }"},
			want: []string{`SELECT "u1"."id" AS "u1_id", "p1"."title" AS "p1_title" FROM "users" AS "u1" LEFT JOIN "posts" AS "p1" ON "u1"."id" = "p1"."user_id"`},
		},
		{
			name:  "stdin with args",
			args:  []string{"-s", path, "-d", "mysql"},
			stdin: "{ user { id active } }",
			want:  []string{"SELECT `u1`.`id` AS `u1_id` FROM `users` AS `u1` WHERE `u1`.`status` = ?", "-- arg 1 (status): active"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, strings.NewReader(tt.stdin), &stdout, &stderr)
			require.NoError(t, err, stderr.String())
			for _, want := range tt.want {
				assert.Contains(t, stdout.String(), want)
			}
		})
	}
}

func TestRunJSONOutput(t *testing.T) {
	path := writeSchema(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(),
		[]string{"-s", path, "-o", "json", "-q", "{ me: user { id active } }"},
		strings.NewReader(""), &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var got jsonStatement
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, `SELECT "u1"."id" AS "u1_id" FROM "users" AS "u1" WHERE "u1"."status" = $1`, got.SQL)
	assert.Equal(t, []any{"active"}, got.Args)
	assert.Equal(t, []string{"status"}, got.ParamNames)
	assert.Equal(t, []jsonColumn{{Alias: "u1_id", Path: []string{"me", "id"}}}, got.Columns)
}

func TestRunErrors(t *testing.T) {
	path := writeSchema(t)

	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{name: "missing schema path", args: []string{"-q", "{ user { id } }"}, msg: "schema.path"},
		{name: "no query", args: []string{"-s", path}, msg: "no query given"},
		{name: "unknown root field", args: []string{"-s", path, "-q", "{ account { id } }"}, msg: "unknown_root_field"},
		{name: "bad variables", args: []string{"-s", path, "-q", "{ user { id } }", "--query.variables", "nope"}, msg: "query.variables"},
		{name: "schema file missing", args: []string{"-s", filepath.Join(t.TempDir(), "none.yaml"), "-q", "{ user { id } }"}, msg: "none.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, strings.NewReader(""), &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--version"}, strings.NewReader(""), &stdout, &bytes.Buffer{}))
	assert.Equal(t, "superjoin dev (none)\n", stdout.String())
}

func TestRunObservability(t *testing.T) {
	path := writeSchema(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(),
		[]string{"-s", path, "-q", "{ user { id } }", "--observability.enabled", "--logging.level", "debug"},
		strings.NewReader(""), &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	assert.Contains(t, stdout.String(), `FROM "users" AS "u1"`)
	logs := stderr.String()
	assert.Contains(t, logs, "span ended")
	assert.Contains(t, logs, "superjoin.compile.total")
	assert.Contains(t, logs, "request_id=")
}
