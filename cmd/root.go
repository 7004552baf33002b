package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "live-workout-service",
	Short: "Live workout service: multiplayer session coordination over HTTP + WebSocket",
	Long:  `Session actors, presence tracking, progress sync and chat relay. Commands: api, migrate, seed.`,
	RunE:  runAPI, // default: run API (same as "live-workout-service api")
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// Execute runs the root command and returns the error (for main to log.Fatal).
func Execute() error {
	return rootCmd.Execute()
}
