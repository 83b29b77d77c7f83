package cmd

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley chat server",
	Long: `Parley is a real-time chat and friends backend.

It serves websocket channels for chat events, live messages and friend
events, plus request/response endpoints for chats, messages and friend
lists. Configuration is written in HCL.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
}

func GetVerbose() bool {
	return verbose
}

func GetDebug() bool {
	return debug
}
