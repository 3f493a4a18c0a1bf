package migrations

import (
	"fmt"
	"os"
	"strings"

	"madrasah/cmd/madrasah/connect"
	"madrasah/internal/cli"
	"madrasah/internal/config"
	"madrasah/internal/database"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const flagSteps = "steps"

var Command = cli.NewCommand(cli.CommandOpts{
	Name: "migrations",
	Flags: config.GetMysqlFlags().Append(cli.Flags{
		{
			Name:         flagSteps,
			Short:        'n',
			DefaultValue: 0,
			Usage:        "runs this many migrations up, or down when negative, instead of every pending one",
			Type:         cli.FlagTypeInteger,
		},
	}),
	Use:     "migrations",
	Aliases: []string{"migrate", "m"},
	Short:   "Runs the database migrations",
	Run: func(cmd *cobra.Command, opts *cli.Command, args []string) error {
		mysqlInstance, err := connect.Mysql(opts)
		if err != nil {
			return err
		}
		result, err := database.MigrateMysql(database.MigrateOpts{
			Connection:  mysqlInstance.GetClient(),
			Steps:       viper.GetInt(flagSteps),
			ServiceLogs: opts.GetServiceLogs(),
		})
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logrus.Infof("database is at version %v", result.ToVersion)
		return cli.Print(os.Stdout, viper.GetString("output"), result, func() (*cli.Table, error) {
			names, err := database.MigrationNames()
			if err != nil {
				return nil, err
			}
			table := cli.NewTable("migration", "applied")
			for _, name := range names {
				if !strings.HasSuffix(name, ".up.sql") {
					continue
				}
				var version uint
				if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
					return nil, fmt.Errorf("failed to parse version of migration[%s]: %w", name, err)
				}
				table.NewRow(strings.TrimSuffix(name, ".up.sql"), version <= result.ToVersion)
			}
			return table, nil
		})
	},
})
