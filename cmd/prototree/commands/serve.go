package commands

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/i2y/prototree/gateway"
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	addr             string
	schemaPath       string
	enableReflection bool
	gracefulTimeout  time.Duration
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve <source> [flags]",
		Short: "Serve a schema over gRPC reflection and HTTP",
		Long: `Load a source and serve it until interrupted.

The server answers gRPC server reflection (v1 and v1alpha) over HTTP/2 cleartext, so tools
like grpcurl, buf curl or another prototree can browse a descriptor set without the
original server, and serves the schema tree as JSON.

Examples:
  # Serve a descriptor set on the default port
  prototree serve ./descriptors.pb

  # Then browse it
  prototree list connect+http://localhost:8080
  curl localhost:8080/schema/shop.v1.Order`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", ":8080", "Listen address")
	cmd.Flags().StringVar(&opts.schemaPath, "schema-path", "/schema", "Path of the JSON schema endpoint")
	cmd.Flags().BoolVar(&opts.enableReflection, "reflection", true, "Enable gRPC reflection")
	cmd.Flags().DurationVar(&opts.gracefulTimeout, "graceful-timeout", 30*time.Second, "Graceful shutdown timeout")

	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveOptions, source string) error {
	l, cfg, err := global.setup(cmd)
	if err != nil {
		return err
	}
	log := global.logger

	ctx := commandContext(cmd)
	set, err := l.Fetch(ctx, cfg.Resolve(source))
	if err != nil {
		return err
	}

	gw, err := gateway.New(set, gateway.Options{
		EnableReflection: opts.enableReflection,
		SchemaPath:       opts.schemaPath,
		Logger:           &log,
	})
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.addr, err)
	}

	log.Info().
		Str("addr", lis.Addr().String()).
		Strs("services", gw.Services()).
		Bool("reflection", opts.enableReflection).
		Msg("serving schema")

	if err := gateway.Serve(ctx, gateway.NewServer(opts.addr, gw), lis, opts.gracefulTimeout); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
