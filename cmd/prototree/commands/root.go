// Package commands implements CLI commands for prototree.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/i2y/prototree/internal/config"
	"github.com/i2y/prototree/internal/logging"
	"github.com/i2y/prototree/loader"
)

// globalOptions holds the persistent flags shared by all commands.
type globalOptions struct {
	configFile  string
	logLevel    string
	logFormat   string
	timeout     time.Duration
	wellKnown   bool
	importPaths []string

	// logger is set by setup.
	logger zerolog.Logger
}

// NewRootCommand creates the prototree command tree.
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "prototree",
		Short: "Browse protobuf schemas as a tree",
		Long: `Prototree loads a protobuf FileDescriptorSet and exposes it as a named tree of
packages, messages, fields, oneofs, enums, services and methods.

Sources can be a descriptor set on disk or behind an HTTP URL, a .proto file, or a live
server with gRPC reflection (grpc://host:port, connect+http://host:port). Aliases for
sources can be declared in the configuration file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Configuration file path")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error or disabled")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: console or json")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Fetch timeout (default from config, 30s)")
	flags.BoolVar(&opts.wellKnown, "well-known", false, "Add missing google/protobuf imports to the set")
	flags.StringSliceVarP(&opts.importPaths, "import-path", "I", nil, "Import path for .proto sources (repeatable)")

	cmd.AddCommand(
		newListCommand(opts),
		newLookupCommand(opts),
		newSearchCommand(opts),
		newExportCommand(opts),
		newServeCommand(opts),
		NewVersionCommand(version, commit, buildDate),
	)

	return cmd
}

// setup loads the configuration, applies flag overrides and creates a loader.
func (o *globalOptions) setup(cmd *cobra.Command) (*loader.Loader, config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("well-known") {
		cfg.IncludeWellKnown = o.wellKnown
	}
	if flags.Changed("import-path") {
		cfg.ImportPaths = append(cfg.ImportPaths, o.importPaths...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, config.Config{}, err
	}

	o.logger = logger
	lc := cfg.LoaderConfig()
	lc.Logger = &logger
	l, err := loader.New(lc)
	if err != nil {
		return nil, config.Config{}, err
	}
	return l, cfg, nil
}

// commandContext returns the command's context, or Background when run without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
