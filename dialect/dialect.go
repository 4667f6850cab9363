// Package dialect describes the SQL targets superjoin renders for.
// A Dialect owns identifier quoting, string literal quoting, placeholder
// syntax, and join keywords; clause order never depends on it.
package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect identifies one target SQL engine family.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// Default is used when no dialect is configured.
const Default = Postgres

// Parse maps a configuration value onto a Dialect. An empty value selects Default.
func Parse(value string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return Default, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "tidb", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q (use postgres, mysql, or sqlite)", value)
	}
}

// Or returns d, or Default when d is the zero value.
func (d Dialect) Or() Dialect {
	if d == "" {
		return Default
	}
	return d
}

func (d Dialect) String() string {
	return string(d.Or())
}

// QuoteIdentifier quotes a SQL identifier (table name, alias, column name)
// and escapes any quote characters within it. For Postgres a '?' is written
// as '??' so that dollar placeholder numbering turns it back into '?'.
func (d Dialect) QuoteIdentifier(name string) string {
	if d.Or() == MySQL {
		escaped := strings.ReplaceAll(name, "`", "``")
		return "`" + escaped + "`"
	}
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + d.escapePlaceholders(escaped) + `"`
}

// QuoteString quotes a SQL string literal with single quotes and escapes
// any single quotes within the string by doubling them. MySQL also treats
// backslash as an escape character inside literals, so it is doubled there.
func (d Dialect) QuoteString(s string) string {
	if d.Or() == MySQL {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	escaped := strings.ReplaceAll(s, "'", "''")
	return "'" + d.escapePlaceholders(escaped) + "'"
}

// escapePlaceholders protects literal '?' from sq.Dollar, which rewrites
// every '?' in the final statement and only leaves '??' as a single '?'.
// sq.Question never rewrites, so other dialects keep the text as is.
func (d Dialect) escapePlaceholders(s string) string {
	if d.Or() != Postgres {
		return s
	}
	return strings.ReplaceAll(s, "?", "??")
}

// PlaceholderFormat returns the squirrel placeholder format for bound parameters.
func (d Dialect) PlaceholderFormat() sq.PlaceholderFormat {
	if d.Or() == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

// JoinKind is the SQL join flavor of one flattened join.
type JoinKind string

const (
	Join          JoinKind = "join"
	CrossJoin     JoinKind = "cross"
	InnerJoin     JoinKind = "inner"
	LeftJoin      JoinKind = "left"
	RightJoin     JoinKind = "right"
	FullOuterJoin JoinKind = "full_outer"
)

// ParseJoinKind maps a schema document value onto a JoinKind. Empty means LeftJoin.
func ParseJoinKind(value string) (JoinKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.TrimSuffix(normalized, "_join")
	switch normalized {
	case "":
		return LeftJoin, nil
	case "join", "plain":
		return Join, nil
	case "cross":
		return CrossJoin, nil
	case "inner":
		return InnerJoin, nil
	case "left", "left_outer":
		return LeftJoin, nil
	case "right", "right_outer":
		return RightJoin, nil
	case "full", "full_outer", "outer":
		return FullOuterJoin, nil
	default:
		return "", fmt.Errorf("unsupported join kind %q", value)
	}
}

// Keyword returns the SQL keyword for the join kind. The zero value renders as LEFT JOIN.
// Support for a kind is not checked against the dialect (SQLite rejects FULL OUTER JOIN
// before 3.39 at execution time, not here).
func (k JoinKind) Keyword() string {
	switch k {
	case Join:
		return "JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	case InnerJoin:
		return "INNER JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullOuterJoin:
		return "FULL OUTER JOIN"
	default:
		return "LEFT JOIN"
	}
}

// HasCondition reports whether the join kind takes an ON clause.
func (k JoinKind) HasCondition() bool {
	return k != CrossJoin
}
