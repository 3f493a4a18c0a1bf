package start

import (
	"madrasah/cmd/madrasah/start/controller"
	"madrasah/cmd/madrasah/start/notifier"

	"github.com/spf13/cobra"
)

func init() {
	Command.AddCommand(controller.Command.Get())
	Command.AddCommand(notifier.Command.Get())
}

var Command = &cobra.Command{
	Use:     "start",
	Aliases: []string{"st"},
	Short:   "Starts one of the long-running services",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}
