package planner

import (
	"errors"

	"superjoin/schema"
)

var (
	// ErrQueryStructure is returned when the query has no usable operation or selection set.
	ErrQueryStructure = errors.New("malformed query")
	// ErrUnknownRootField is returned when no node matches the root field name.
	ErrUnknownRootField = errors.New("unknown root field")
	// ErrCallback is returned when a deferred predicate cannot produce SQL.
	ErrCallback = errors.New("callback failed")
	// ErrRender is returned when the statement cannot be rendered.
	ErrRender = errors.New("render failed")
	// ErrMaxDepth is returned when joins nest deeper than the configured maximum.
	ErrMaxDepth = errors.New("maximum join depth exceeded")
	// ErrUnknownField is returned in strict mode for fields without metadata.
	ErrUnknownField = errors.New("unknown field")
)

// ErrorKind classifies err for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQueryStructure):
		return "query_structure"
	case errors.Is(err, ErrUnknownRootField):
		return "unknown_root_field"
	case errors.Is(err, schema.ErrUnresolvableAlias):
		return "unresolvable_alias"
	case errors.Is(err, ErrCallback):
		return "callback"
	case errors.Is(err, ErrRender):
		return "render"
	case errors.Is(err, ErrMaxDepth):
		return "max_depth"
	case errors.Is(err, ErrUnknownField):
		return "unknown_field"
	case errors.Is(err, schema.ErrInvalidSchema):
		return "invalid_schema"
	default:
		return "unknown"
	}
}
