package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/i2y/prototree/loader"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, buildDate string) *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the prototree version, the protobuf runtime it decodes descriptors with,
and, with --sources, the source forms it can load.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "prototree %s (commit %s, built %s)\n", version, commit, buildDate)
			fmt.Fprintf(out, "protobuf:   %s\n", moduleVersion("google.golang.org/protobuf"))
			fmt.Fprintf(out, "Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

			if !showSources {
				return
			}
			fmt.Fprintln(out, "\nSources:")
			for _, form := range loader.SourceForms {
				fmt.Fprintf(out, "  %s\n", form)
			}
		},
	}

	cmd.Flags().BoolVar(&showSources, "sources", false, "List the supported source forms")

	return cmd
}

// moduleVersion returns the version of a dependency linked into the binary.
func moduleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			return dep.Version
		}
	}
	return "unknown"
}
