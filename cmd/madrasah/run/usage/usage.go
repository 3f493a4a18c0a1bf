package usage

import (
	"fmt"
	"os"
	"time"

	"madrasah/cmd/madrasah/connect"
	"madrasah/internal/audit"
	"madrasah/internal/cli"
	"madrasah/internal/config"
	"madrasah/internal/jobs"
	storeMysql "madrasah/internal/store/mysql"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const flagConcurrency = "concurrency"

var Command = cli.NewCommand(cli.CommandOpts{
	Name: "usage",
	Flags: config.GetMysqlFlags().Append(config.GetMongoFlags(), cli.Flags{
		{
			Name:         flagConcurrency,
			DefaultValue: jobs.DefaultConcurrency,
			Usage:        "number of organisations processed at the same time",
			Type:         cli.FlagTypeInteger,
		},
	}),
	Use:   "usage",
	Short: "Records the active student count of every organisation",
	Long:  "Counts active students per operational organisation and writes the figure to the audit trail for platform billing, run this monthly",
	Run: func(cmd *cobra.Command, opts *cli.Command, args []string) error {
		mysqlInstance, err := connect.Mysql(opts)
		if err != nil {
			return err
		}
		dataStore := storeMysql.New(mysqlInstance.GetClient())
		auditLogger, _, err := connect.AuditLogger(opts, &audit.StoreLogger{Store: dataStore})
		if err != nil {
			return err
		}
		job := &jobs.UsageJob{
			Store:       dataStore,
			Audit:       auditLogger,
			Concurrency: viper.GetInt(flagConcurrency),
			ServiceLogs: opts.GetServiceLogs(),
		}
		report, err := job.Run(opts.Context(), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to report usage: %w", err)
		}
		return cli.Print(os.Stdout, viper.GetString("output"), report, func() (*cli.Table, error) {
			return jobs.ReportTable(report, "students"), nil
		})
	},
})
