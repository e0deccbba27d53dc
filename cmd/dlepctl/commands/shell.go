package commands

import (
	"github.com/reeflective/console"
	"github.com/spf13/cobra"
)

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive dlepctl shell",
		Long:  "Launches a console REPL exposing every dlepctl subcommand against the configured dlepd instance.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			app := console.New("dlepctl")

			menu := app.ActiveMenu()
			menu.SetCommands(func() *cobra.Command {
				return rootCmd
			})

			return app.Start()
		},
	}
}
