package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/odvcencio/inkwell/pkg/terminal"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := terminal.NewWithOutput(cmd.OutOrStdout())
			out.Println("inkwell %s", version)
			out.Dim("commit %s, built %s, %s %s/%s", commit, buildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
