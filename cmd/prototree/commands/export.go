package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/proto"
)

func newExportCommand(global *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <source>",
		Short: "Save a source as a serialized FileDescriptorSet",
		Long: `Fetch a source and write it as a binary FileDescriptorSet, the format produced by
protoc --descriptor_set_out. Useful to snapshot a live server or a .proto tree.

Examples:
  # Snapshot a server's schema through reflection
  prototree export grpc://localhost:9090 --output shop.pb

  # Compile a .proto file with its imports
  prototree export api/shop.proto -I third_party -o shop.pb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cfg, err := global.setup(cmd)
			if err != nil {
				return err
			}

			start := time.Now()
			set, err := l.Fetch(commandContext(cmd), cfg.Resolve(args[0]))
			if err != nil {
				return err
			}
			data, err := proto.MarshalOptions{Deterministic: true}.Marshal(set)
			if err != nil {
				return fmt.Errorf("failed to encode descriptor set: %w", err)
			}

			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d files to %s in %s\n",
				len(set.GetFile()), output, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "descriptors.pb", "Output file")

	return cmd
}
