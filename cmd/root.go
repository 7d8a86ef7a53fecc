// Package cmd implements the sitegen command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sitegen",
	Short: "sitegen - AI web app generation service",
	Long: `sitegen turns natural-language prompts into deployable web apps.

It serves a REST API where users create applications, chat with the
generator over SSE, and publish the result as a static site. Run
"sitegen serve" to start the server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
