package statuses

import (
	"fmt"
	"os"
	"time"

	"madrasah/cmd/madrasah/connect"
	"madrasah/internal/audit"
	"madrasah/internal/billing"
	"madrasah/internal/cli"
	"madrasah/internal/config"
	"madrasah/internal/jobs"
	storeMysql "madrasah/internal/store/mysql"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const flagConcurrency = "concurrency"

var Command = cli.NewCommand(cli.CommandOpts{
	Name: "statuses",
	Flags: config.GetMysqlFlags().Append(config.GetMongoFlags(), cli.Flags{
		{
			Name:         flagConcurrency,
			DefaultValue: jobs.DefaultConcurrency,
			Usage:        "number of organisations processed at the same time",
			Type:         cli.FlagTypeInteger,
		},
	}),
	Use:   "statuses",
	Short: "Recalculates the payment statuses of every organisation",
	Long:  "Marks unpaid monthly records and invoices OVERDUE once their due date has passed, run this daily",
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
		job := &jobs.StatusJob{
			Store:       dataStore,
			Billing:     &billing.Service{Store: dataStore, Audit: auditLogger, ServiceLogs: opts.GetServiceLogs()},
			Concurrency: viper.GetInt(flagConcurrency),
			ServiceLogs: opts.GetServiceLogs(),
		}
		report, err := job.Run(opts.Context(), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to recalculate statuses: %w", err)
		}
		return cli.Print(os.Stdout, viper.GetString("output"), report, func() (*cli.Table, error) {
			return jobs.ReportTable(report, "changed"), nil
		})
	},
})
