// Package cli implements the aptrec command line: local queries against a
// snapshot, snapshot validation and publishing, schema migrations and
// listing imports.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/aptrec/internal/bootstrap"
	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/infrastructure/database/redis"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/pkg/errors"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	OutputTable = "table"
	OutputJSON  = "json"
)

type cliContextKey struct{}

type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext is built once per invocation and shared by every subcommand.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Timeout      time.Duration
	Cleanup      *bootstrap.Cleanup
	Factories    Factories

	redis *redis.Client
	cache redis.Cache
}

// WithTimeout derives the per-command deadline.
func (c *CLIContext) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// Option customises the root command, mainly to swap factories in tests.
type Option func(*Factories)

func WithFactories(fn func(*Factories)) Option { return Option(fn) }

func NewRootCommand(opts ...Option) *cobra.Command {
	ro := &RootOptions{}
	factories := defaultFactories()
	for _, o := range opts {
		o(&factories)
	}

	cmd := &cobra.Command{
		Use:   "aptrec",
		Short: "aptrec - weighted apartment recommender",
		Long: "aptrec ranks apartments by a weighted blend of facilities, price and location\n" +
			"similarity. The CLI queries snapshots locally and manages the data behind\n" +
			"the API server.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, ro, factories)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&ro.ConfigPath, "config", "c", "", "config file path (default: APTREC_* environment)")
	pf.StringVar(&ro.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&ro.OutputFormat, "output", "o", OutputTable, "output format (table, json)")
	pf.BoolVar(&ro.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&ro.Timeout, "timeout", 30*time.Second, "per-command timeout")

	cmd.AddCommand(
		NewRecommendCmd(),
		NewNearbyCmd(),
		NewPropertiesCmd(),
		NewLandmarksCmd(),
		NewSnapshotCmd(),
		NewMigrateCmd(),
		NewListingsCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions, factories Factories) error {
	format := strings.ToLower(opts.OutputFormat)
	if format != OutputTable && format != OutputJSON {
		return errors.InvalidParam("output must be table or json").WithDetail(opts.OutputFormat)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	cfg, err := config.LoadOrEnv(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logCfg := cfg.Log
	logCfg.Format = "console"
	logCfg.OutputPaths = []string{"stderr"}
	logger, err := bootstrap.NewLogger(logCfg, opts.LogLevel)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cc := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: format,
		Timeout:      opts.Timeout,
		Cleanup:      bootstrap.NewCleanup(logger),
		Factories:    factories,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))
	return nil
}

func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, errors.Internal("CLI context not found in command context")
	}
	return cc, nil
}

// run resolves the CLI context, applies the timeout and releases every
// component the command opened, whether or not fn fails.
func run(cmd *cobra.Command, fn func(ctx context.Context, cc *CLIContext) error) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	defer func() {
		cc.Cleanup.Run()
		_ = cc.Logger.Sync()
	}()

	ctx, cancel := cc.WithTimeout(cmd.Context())
	defer cancel()
	return fn(ctx, cc)
}

// Execute runs the root command and prints any error to stderr.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult renders data as JSON or, when it can, as a table.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := OutputTable
	if cc, err := GetCLIContext(cmd); err == nil {
		format = cc.OutputFormat
	}

	if format == OutputJSON {
		return printJSON(cmd, data)
	}
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", data)
	return nil
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode output")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

// FormatTable renders rows under headers.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return buf.String()
}

func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.GreenString("OK:"), msg)
}

//Personal.AI order the ending
