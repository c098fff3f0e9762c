package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/i2y/prototree/tree"
)

func newListCommand(global *globalOptions) *cobra.Command {
	var kinds []string

	cmd := &cobra.Command{
		Use:   "list <source>",
		Short: "List every declaration in a schema",
		Long: `List every declaration of a schema in tree order, one per line, with its kind.

Examples:
  # List a descriptor set written by protoc or buf
  prototree list ./descriptors.pb

  # List only messages and enums of a live server
  prototree list grpc://localhost:9090 --kind message --kind enum`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cfg, err := global.setup(cmd)
			if err != nil {
				return err
			}
			s, err := l.Load(commandContext(cmd), cfg.Resolve(args[0]))
			if err != nil {
				return err
			}

			var nodes []tree.Node
			for _, n := range s.All() {
				if matchesKind(n, kinds) {
					nodes = append(nodes, n)
				}
			}
			return writeNodes(cmd.OutOrStdout(), nodes)
		},
	}

	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Only list these kinds (package, message, field, oneof, enum, service, method)")

	return cmd
}

func matchesKind(n tree.Node, kinds []string) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if strings.EqualFold(k, n.Kind().Label()) {
			return true
		}
	}
	return false
}

// writeNodes prints one "kind  full name  first comment line" row per node.
func writeNodes(out io.Writer, nodes []tree.Node) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, n := range nodes {
		if comment := firstLine(n.Comment()); comment != "" {
			fmt.Fprintf(w, "%s\t%s\t%s\n", n.Kind().Label(), n.FullName(), comment)
		} else {
			fmt.Fprintf(w, "%s\t%s\n", n.Kind().Label(), n.FullName())
		}
	}
	return w.Flush()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
