package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/imagevault/cmd/do/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Admin and development tools for imagevault",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.SweepCmd())
	rootCmd.AddCommand(cmd.CheckCmd())
	rootCmd.AddCommand(cmd.ThumbsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
