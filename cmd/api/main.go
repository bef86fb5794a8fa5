package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mentor-queue",
		Short: "Mentor help queue API",
		Long:  `mentor-queue serves the hackathon help queue and manages its database schema.`,
		// Running the binary with no subcommand starts the server.
		RunE: runServe,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
