// Package config loads CLI configuration from files, env vars, and flags, and validates it.
package config

import (
	"superjoin/dialect"
)

// Config holds the CLI configuration.
type Config struct {
	Schema  SchemaConfig  `mapstructure:"schema"`
	Query   QueryConfig   `mapstructure:"query"`
	Planner PlannerConfig `mapstructure:"planner"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`

	Observability ObservabilityConfig `mapstructure:"observability"`
}

// SchemaConfig locates the declarative schema document.
type SchemaConfig struct {
	Path string `mapstructure:"path"`
}

// QueryConfig says where the GraphQL query comes from. Text wins over File;
// a File of "@-" reads stdin.
type QueryConfig struct {
	Text      string `mapstructure:"text"`
	File      string `mapstructure:"file"`
	Operation string `mapstructure:"operation"`
	// Variables is a JSON object of GraphQL variables.
	Variables string `mapstructure:"variables"`
}

// PlannerConfig holds compilation parameters.
type PlannerConfig struct {
	Dialect      dialect.Dialect `mapstructure:"dialect"`
	MaxDepth     int             `mapstructure:"max_depth"`
	StrictFields bool            `mapstructure:"strict_fields"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// ObservabilityConfig controls the CLI's own otel providers. When enabled,
// spans are logged at debug level and metrics are logged after compiling.
type ObservabilityConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// OutputConfig controls how the compiled statement is printed.
type OutputConfig struct {
	Format string `mapstructure:"format"` // text, json
}

const (
	OutputText = "text"
	OutputJSON = "json"
)

// StdinPath is the file value that reads from standard input.
const StdinPath = "@-"
