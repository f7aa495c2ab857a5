// Package cli implements the flowgatectl command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowgatectl",
	Short: "Flowgate webhook gateway CLI",
	Long: `flowgatectl is the command-line companion for the Flowgate webhook
gateway. Seed development environments with a fake resource hierarchy and
drive ingestion traffic against a running gateway.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}
