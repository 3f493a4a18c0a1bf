package notifier

import (
	"context"
	"errors"
	"fmt"

	"madrasah/cmd/madrasah/connect"
	"madrasah/internal/cli"
	"madrasah/internal/config"
	"madrasah/internal/notify"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Command = cli.NewCommand(cli.CommandOpts{
	Name:    "notifier",
	Flags:   config.GetNatsFlags().Append(config.GetEmailFlags(), config.GetSlackFlags()),
	Use:     "notifier",
	Aliases: []string{"n"},
	Short:   "Starts the notifier component",
	Long:    "Starts the notifier component which delivers the emails and platform alerts the controller queues on NATS",
	Run: func(cmd *cobra.Command, opts *cli.Command, args []string) error {
		serviceLogs := opts.GetServiceLogs()
		natsInstance, err := connect.Nats(opts)
		if err != nil {
			return err
		}
		mailer := config.GetMailer(serviceLogs)
		if mailer == nil {
			logrus.Warnf("no email transport is configured, queued emails will be dropped")
		}
		worker := &notify.Worker{
			Queue:       natsInstance,
			Mailer:      mailer,
			Slack:       &notify.SlackNotifier{WebhookUrl: viper.GetString(config.SlackWebhookUrl)},
			ServiceLogs: serviceLogs,
		}
		logrus.Infof("notifier is waiting for notifications...")
		if err := worker.Start(opts.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("notifier stopped: %w", err)
		}
		logrus.Infof("notifier stopped")
		return nil
	},
})
