// Package cmd wires the cvforge CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cvforge",
	Short: "CVForge - resume assistant in your terminal",
	Long: `CVForge is a terminal chat client for the CVForge resume assistant.

It streams the assistant's reasoning and answers live, shows web research
and resume edits as they happen, and keeps your conversation across
invocations.

Running cvforge without arguments starts the interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand: enter chat mode
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
