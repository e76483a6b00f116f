// Package cmd defines the concierge command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Concierge - conversational shopping assistant backend",
	Long: `Concierge is the backend service for a conversational shopping assistant.
It orchestrates LLM calls with catalog retrieval tools, persists conversation
threads in PostgreSQL, and exposes an HTTP API for the storefront.

Run "concierge serve" to start the HTTP server.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
