package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"superjoin/internal/logging"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	if strings.TrimSpace(c.Schema.Path) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.path",
			Message: "schema path is required",
			Hint:    "pass --schema.path or set SUPERJOIN_SCHEMA_PATH",
		})
	}

	c.Query.validate(result)
	c.Planner.validate(result)
	c.Logging.validate(result)

	switch c.Output.Format {
	case OutputText, OutputJSON:
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "output.format",
			Message: fmt.Sprintf("unsupported output format %q", c.Output.Format),
			Hint:    "use text or json",
		})
	}

	return result
}

func (q *QueryConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(q.Text) != "" && q.File != "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "query.file",
			Message: "query.text is set, query.file is ignored",
		})
	}
	if _, err := q.ParseVariables(); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "query.variables",
			Message: err.Error(),
			Hint:    `pass a JSON object such as {"id": 1}`,
		})
	}
}

func (p *PlannerConfig) validate(result *ValidationResult) {
	if p.MaxDepth < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "planner.max_depth",
			Message: "max_depth cannot be negative",
		})
	}
	if p.MaxDepth == 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "planner.max_depth",
			Message: "max_depth is 0, the planner default applies",
		})
	}
}

func (l *LoggingConfig) validate(result *ValidationResult) {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "logging.level",
			Message: err.Error(),
			Hint:    "use debug, info, warn, or error",
		})
	}
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unsupported log format %q", l.Format),
			Hint:    "use json or text",
		})
	}
}

// ParseVariables decodes query.variables; empty yields nil.
func (q QueryConfig) ParseVariables() (map[string]any, error) {
	if strings.TrimSpace(q.Variables) == "" {
		return nil, nil
	}
	var vars map[string]any
	if err := json.Unmarshal([]byte(q.Variables), &vars); err != nil {
		return nil, fmt.Errorf("invalid query variables: %w", err)
	}
	return vars, nil
}
