package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rtsptool/rtsptool/internal/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Info()
			label := color.New(color.Faint)
			for _, key := range []string{"Version", "GitCommit", "BuildTime", "GoVersion", "Platform"} {
				fmt.Printf("%s %s\n", label.Sprintf("%-11s", key+":"), info[key])
			}
		},
	}
}
