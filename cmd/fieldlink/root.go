// Package main provides the entry point for the fieldlink CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for fieldlink.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fieldlink",
		Short: "Render links in forum custom user fields",
		Long: `fieldlink renders the links in forum custom user fields.

Field values are stored as plain text, so a website or a markdown link
typed into a profile field shows up as text. fieldlink turns bare URLs,
markdown links and entity-escaped anchors into real anchors, in saved
pages, in a directory of snapshots, or live through a reverse proxy.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .fieldlink in current or home directory)")

	// Add subcommands
	cmd.AddCommand(NewRenderCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewProxyCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
