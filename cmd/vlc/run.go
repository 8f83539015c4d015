package main

import (
	"github.com/spf13/cobra"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Host the module bank until interrupted",
		Long: `run initializes the bank and keeps it alive, sweeping idle plugins every
manage interval. With --watch (or plugins.watch) the bank is reset whenever
plugin files change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Destroy()

			if cmd.Flags().Changed("watch") {
				a.Config().Plugins.Watch = watch
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "reset the bank when plugin files change")

	return cmd
}
