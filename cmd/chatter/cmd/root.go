package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatter",
	Short: "Real-time chat server",
	Long: `chatter runs the chat backend and a few development helpers.

Available commands:
  serve     Start the HTTP and websocket server
  token     Mint a development token for a username
  tail      Connect to a running server and print received events
  topics    List the pub/sub topics the server publishes
  version   Print the version

Use "chatter [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
