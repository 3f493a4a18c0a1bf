package run

import (
	"madrasah/cmd/madrasah/run/migrations"
	"madrasah/cmd/madrasah/run/statuses"
	"madrasah/cmd/madrasah/run/usage"

	"github.com/spf13/cobra"
)

func init() {
	Command.AddCommand(migrations.Command.Get())
	Command.AddCommand(statuses.Command.Get())
	Command.AddCommand(usage.Command.Get())
}

var Command = &cobra.Command{
	Use:     "run",
	Aliases: []string{"r"},
	Short:   "Runs database migrations and scheduled batch jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}
