package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCommand(global *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <source> <query>",
		Short: "Search declarations by name and comment",
		Long: `Search declarations whose full name or comment contains the query, ignoring case.
Name matches are listed before comment matches.

Examples:
  prototree search ./descriptors.pb order
  prototree search shop "deprecated" --limit 5`,
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

			results := s.Search(args[1], limit)
			if len(results) == 0 {
				return fmt.Errorf("no declarations match %q", args[1])
			}
			return writeNodes(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results (0 for all)")

	return cmd
}
