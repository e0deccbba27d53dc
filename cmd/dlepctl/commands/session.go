package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect DLEP sessions",
	}

	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())

	return cmd
}

// --- session list ---

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active DLEP sessions across all interfaces",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			out, err := runCommand(serverAddr, "sessions", "")
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

// --- session show ---

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <interface>",
		Short: "List local neighbors of every session on an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			out, err := runCommand(serverAddr, "neighbors", args[0])
			if err != nil {
				return fmt.Errorf("show session: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}
