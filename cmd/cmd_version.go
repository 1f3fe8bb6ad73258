package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build details",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildDetails()) //nolint:errcheck
		},
	}
}

// BuildDetails returns a one line summary of the build
func BuildDetails() string {
	v, c, d := version, commit, date
	if v == "" {
		v = "dev"
	}
	if c == "" {
		c = "unknown"
	}
	if d == "" {
		d = "unknown"
	}
	return fmt.Sprintf("mongobridge %s (commit %s, built %s, %s)", v, c, d, runtime.Version())
}
