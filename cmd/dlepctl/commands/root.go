// Package commands implements the dlepctl CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverAddr is the dlepd HTTP bridge address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for dlepctl.
var rootCmd = &cobra.Command{
	Use:   "dlepctl",
	Short: "CLI client for the dlepd daemon",
	Long:  "dlepctl talks to a running dlepd daemon's HTTP-to-remote-control bridge to inspect DLEP sessions and neighbors.",

	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8080",
		"dlepd HTTP bridge address (host:port)")

	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
