package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"superjoin/internal/config"
	"superjoin/internal/logging"
	"superjoin/internal/observability"
	"superjoin/planner"
	"superjoin/schema"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("superjoin error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := config.NewFlagSet("superjoin")
	fs.SetOutput(stderr)
	fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion, _ := fs.GetBool("version"); showVersion {
		fmt.Fprintf(stdout, "superjoin %s (%s)\n", Version, Commit)
		return nil
	}

	cfg, err := config.LoadFlags(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: stderr,
	}).WithRequestID(uuid.NewString())

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		logger.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			logger.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed: %s", validationResult.Error())
	}

	root, err := schema.LoadRootFile(cfg.Schema.Path)
	if err != nil {
		return err
	}
	logger.Debug("schema loaded",
		slog.String("path", cfg.Schema.Path),
		slog.Int("nodes", root.Len()),
	)

	query, err := readQuery(cfg.Query, stdin)
	if err != nil {
		return err
	}
	variables, err := cfg.Query.ParseVariables()
	if err != nil {
		return err
	}

	if cfg.Observability.Enabled {
		providers, err := observability.InitProviders(observability.Config{
			ServiceName:    cfg.Observability.ServiceName,
			ServiceVersion: Version,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize observability: %w", err)
		}
		defer func() {
			if err := providers.ReportMetrics(ctx); err != nil {
				logger.Warn("metrics report failed", slog.String("error", err.Error()))
			}
			_ = providers.Shutdown(ctx)
		}()
	}

	ctx = logging.WithLogger(ctx, logger)
	stmt, err := planner.Compile(ctx, query, root,
		planner.WithDialect(cfg.Planner.Dialect),
		planner.WithMaxDepth(cfg.Planner.MaxDepth),
		planner.WithStrictFields(cfg.Planner.StrictFields),
		planner.WithOperationName(cfg.Query.Operation),
		planner.WithVariables(variables),
	)
	if err != nil {
		return fmt.Errorf("compile failed (%s): %w", planner.ErrorKind(err), err)
	}

	return writeStatement(stdout, stmt, cfg.Output.Format)
}

// readQuery falls back to stdin when nothing is configured and stdin is piped.
func readQuery(cfg config.QueryConfig, stdin io.Reader) (string, error) {
	if strings.TrimSpace(cfg.Text) == "" && cfg.File == "" && !isTerminal(stdin) {
		cfg.File = config.StdinPath
	}
	query, err := cfg.ReadQuery(stdin)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("no query given (use --query.text, --query.file, or pipe it on stdin)")
	}
	return query, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type jsonColumn struct {
	Alias string   `json:"alias"`
	Path  []string `json:"path"`
}

type jsonStatement struct {
	SQL        string       `json:"sql"`
	Args       []any        `json:"args"`
	ParamNames []string     `json:"param_names"`
	Columns    []jsonColumn `json:"columns"`
}

func writeStatement(w io.Writer, stmt planner.Statement, format string) error {
	if format == config.OutputJSON {
		out := jsonStatement{
			SQL:        stmt.SQL,
			Args:       stmt.Args,
			ParamNames: stmt.ParamNames,
			Columns:    make([]jsonColumn, 0, len(stmt.Columns)),
		}
		if out.Args == nil {
			out.Args = []any{}
		}
		if out.ParamNames == nil {
			out.ParamNames = []string{}
		}
		for _, col := range stmt.Columns {
			out.Columns = append(out.Columns, jsonColumn{Alias: col.Alias, Path: col.Path})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if _, err := fmt.Fprintln(w, stmt.SQL); err != nil {
		return err
	}
	for i, arg := range stmt.Args {
		name := ""
		if i < len(stmt.ParamNames) {
			name = stmt.ParamNames[i]
		}
		if _, err := fmt.Fprintf(w, "-- arg %d (%s): %v\n", i+1, name, arg); err != nil {
			return err
		}
	}
	return nil
}
