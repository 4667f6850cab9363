package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"superjoin/dialect"
	"superjoin/planner"
)

// EnvPrefix prefixes environment overrides: SUPERJOIN_PLANNER_DIALECT.
const EnvPrefix = "SUPERJOIN"

// Load loads configuration from multiple sources with the following precedence:
// 1. Command line flags (args, without the program name)
// 2. Environment variables
// 3. Config file
// 4. Default values
//
// pflag.ErrHelp is returned unchanged when args ask for help.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("superjoin")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return LoadFlags(fs)
}

// LoadFlags is Load for an already parsed flag set built by NewFlagSet.
func LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults (lowest priority)
	setDefaults(v)

	// --- Config file ---
	cfgPath, _ := fs.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("superjoin")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.superjoin")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case
	// Env vars: SUPERJOIN_PLANNER_MAX_DEPTH
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags binding (highest priority) ---
	bindChangedFlagsToViper(fs, v)

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				stringToDialectHookFunc(),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// NewFlagSet defines all command line flags using canonical snake_case keys.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	fs.StringP("schema.path", "s", "", "Path to the schema document (YAML or JSON)")

	fs.StringP("query.text", "q", "", "GraphQL query text")
	fs.StringP("query.file", "f", "", "Path to a file holding the GraphQL query (use @- for stdin)")
	fs.String("query.operation", "", "Operation name when the document has several")
	fs.String("query.variables", "", "GraphQL variables as a JSON object")

	fs.StringP("planner.dialect", "d", "", "SQL dialect (postgres, mysql, sqlite)")
	fs.Int("planner.max_depth", 0, "Maximum nesting of joins")
	fs.Bool("planner.strict_fields", false, "Reject selected fields that have no metadata")

	fs.String("logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("logging.format", "", "Log format (json, text)")

	fs.StringP("output.format", "o", "", "Output format (text, json)")

	fs.Bool("observability.enabled", false, "Log compile spans and metrics")
	fs.String("observability.service_name", "", "Service name for observability")

	fs.StringP("config", "c", "", "Config file path")
	return fs
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(fs *pflag.FlagSet, v *viper.Viper) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := fs.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	v.SetDefault("schema.path", "")

	v.SetDefault("query.text", "")
	v.SetDefault("query.file", "")
	v.SetDefault("query.operation", "")
	v.SetDefault("query.variables", "")

	v.SetDefault("planner.dialect", string(dialect.Default))
	v.SetDefault("planner.max_depth", planner.DefaultMaxDepth)
	v.SetDefault("planner.strict_fields", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.format", OutputText)

	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.service_name", "superjoin")
}

// ReadQuery returns the configured query text, reading query.file when no
// text is set. stdin is used for "@-".
func (q QueryConfig) ReadQuery(stdin io.Reader) (string, error) {
	if strings.TrimSpace(q.Text) != "" {
		return q.Text, nil
	}
	if q.File == "" {
		return "", nil
	}

	var data []byte
	var err error
	if q.File == StdinPath {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(q.File)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read query: %w", err)
	}
	return string(data), nil
}

func stringToDialectHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(dialect.Dialect("")) {
			return data, nil
		}
		return dialect.Parse(reflect.ValueOf(data).String())
	}
}
