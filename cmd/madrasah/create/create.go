package create

import (
	"madrasah/cmd/madrasah/create/owner"

	"github.com/spf13/cobra"
)

func init() {
	Command.AddCommand(owner.Command.Get())
}

var Command = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Creates platform resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}
