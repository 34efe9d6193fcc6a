package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set by the release build via -ldflags; it stays "dev" for
// local builds, the same role version.Version plays in the teacher
// codebase.
var Version = "dev"

func commandVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf(`hashrand Version: %s
Go Version: %s
Go OS/ARCH: %s %s
`, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
