// Command gastronomy-api serves the recipe catalog API and runs its
// maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gastronomy-api",
		Short:         "Recipe catalog REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"YAML config file; GASTRONOMY_* environment variables override it")

	root.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newSetSupervisorCommand(&configPath),
		newCleanupCommand(&configPath),
	)
	return root
}
