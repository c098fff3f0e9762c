package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/i2y/prototree/tree"
)

func newLookupCommand(global *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "lookup <source> <full-name>",
		Short: "Show one declaration",
		Long: `Show a declaration by its fully-qualified name. The leading dot is optional.

Examples:
  prototree lookup ./descriptors.pb shop.v1.Order
  prototree lookup grpc://localhost:9090 .shop.v1.OrderService --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cfg, err := global.setup(cmd)
			if err != nil {
				return err
			}
			s, err := l.Load(commandContext(cmd), cfg.Resolve(args[0]))
			if err != nil {
				return err
			}

			name := args[1]
			if !strings.HasPrefix(name, ".") {
				name = "." + name
			}
			n, ok := s.Lookup(name)
			if !ok {
				return fmt.Errorf("no declaration named %s", name)
			}

			if asJSON {
				data, err := tree.MarshalNodeIndent(n, "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
				return err
			}
			describe(cmd.OutOrStdout(), s, n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the declaration and its children as JSON")

	return cmd
}

// describe prints a human readable summary of a node.
func describe(out io.Writer, s *tree.Schema, n tree.Node) {
	fmt.Fprintf(out, "%s %s\n", n.Kind().Label(), n.FullName())
	if n.Filename() != "" {
		fmt.Fprintf(out, "  file: %s\n", n.Filename())
	}
	if comment := strings.TrimSpace(n.Comment()); comment != "" {
		for _, line := range strings.Split(comment, "\n") {
			fmt.Fprintf(out, "  // %s\n", strings.TrimSpace(line))
		}
	}
	writeOptions(out, "  ", n.Options())

	switch n := n.(type) {
	case *tree.Field:
		fmt.Fprintf(out, "  number: %d\n", n.ID)
		fmt.Fprintf(out, "  type: %s\n", fieldType(n))
		if n.Oneof != "" {
			fmt.Fprintf(out, "  oneof: %s\n", n.Oneof)
		}
		if n.IsExtension() {
			fmt.Fprintf(out, "  extends: %s\n", n.Extendee)
		}
		if target, ok := s.ResolvedType(n); ok {
			fmt.Fprintf(out, "  resolves to: %s %s\n", target.Kind().Label(), target.FullName())
		}
	case *tree.Type:
		for _, f := range n.Fields() {
			fmt.Fprintf(out, "  %s %s = %d\n", fieldType(f), f.Name(), f.ID)
		}
		for _, o := range n.Oneofs() {
			fmt.Fprintf(out, "  oneof %s { %s }\n", o.Name(), strings.Join(o.Members, ", "))
		}
		for _, c := range n.Nested() {
			fmt.Fprintf(out, "  %s %s\n", c.Kind().Label(), c.Name())
		}
		for _, r := range n.Reserved {
			if r.IsName() {
				fmt.Fprintf(out, "  reserved %q\n", r.Name)
			} else {
				fmt.Fprintf(out, "  reserved %d to %d\n", r.Range.Start, r.Range.End-1)
			}
		}
	case *tree.OneOf:
		fmt.Fprintf(out, "  members: %s\n", strings.Join(n.Members, ", "))
	case *tree.Enum:
		for _, v := range n.Values {
			fmt.Fprintf(out, "  %s = %d\n", v.Name, v.Number)
		}
	case *tree.Service:
		for _, m := range n.Methods {
			fmt.Fprintf(out, "  rpc %s\n", methodSignature(m))
		}
	case *tree.Method:
		fmt.Fprintf(out, "  rpc %s\n", methodSignature(n))
	case *tree.Namespace:
		for _, c := range n.Children() {
			fmt.Fprintf(out, "  %s %s\n", c.Kind().Label(), c.Name())
		}
	}
}

func fieldType(f *tree.Field) string {
	if f.Rule == tree.RuleSingular {
		return f.Type
	}
	return string(f.Rule) + " " + f.Type
}

func methodSignature(m *tree.Method) string {
	stream := func(on bool) string {
		if on {
			return "stream "
		}
		return ""
	}
	return fmt.Sprintf("%s(%s%s) returns (%s%s)",
		m.Name(), stream(m.RequestStream), m.RequestType, stream(m.ResponseStream), m.ResponseType)
}

func writeOptions(out io.Writer, indent string, opts tree.Options) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%soption %s = %v\n", indent, k, opts[k])
	}
}
