package controller

import (
	"fmt"
	"time"

	"madrasah/cmd/madrasah/connect"
	"madrasah/internal/audit"
	"madrasah/internal/cache"
	"madrasah/internal/cli"
	"madrasah/internal/common"
	"madrasah/internal/config"
	"madrasah/internal/controller"
	"madrasah/internal/notify"
	storeMysql "madrasah/internal/store/mysql"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// livenessGracePeriod is how long mysql may stay unreachable before the
// liveness probe fails and the orchestrator restarts the controller
const livenessGracePeriod = 30 * time.Second

var Command = cli.NewCommand(cli.CommandOpts{
	Name: "controller",
	Flags: config.GetHttpFlags("54321").Append(
		config.GetMysqlFlags(),
		config.GetRedisFlags(),
		config.GetMongoFlags(),
		config.GetNatsFlags(),
		config.GetEmailFlags(),
		config.GetSlackFlags(),
		config.GetBillingFlags(),
		config.GetSessionFlags(),
		config.GetWebhookFlags(),
	),
	Use:     "controller",
	Aliases: []string{"c"},
	Short:   "Starts the controller component",
	Long:    "Starts the controller component which serves the REST API used by school staff, parents and platform owners",
	Run: func(cmd *cobra.Command, opts *cli.Command, args []string) error {
		serviceLogs := opts.GetServiceLogs()

		mysqlInstance, err := connect.Mysql(opts)
		if err != nil {
			return err
		}
		redisInstance, err := connect.Redis(opts)
		if err != nil {
			return err
		}
		dataStore := storeMysql.New(mysqlInstance.GetClient())
		auditLogger, mongoInstance, err := connect.AuditLogger(opts, &audit.StoreLogger{Store: dataStore})
		if err != nil {
			return err
		}

		logrus.Infof("initialising notifications...")
		slack := &notify.SlackNotifier{WebhookUrl: viper.GetString(config.SlackWebhookUrl)}
		var notifier notify.Notifier
		if viper.GetBool(config.NatsEnabled) {
			natsInstance, err := connect.Nats(opts)
			if err != nil {
				return err
			}
			notifier = &notify.QueueNotifier{Queue: natsInstance}
			logrus.Infof("notifications are queued for the notifier")
		} else {
			mailer := config.GetMailer(serviceLogs)
			if mailer == nil {
				logrus.Warnf("no email transport is configured, emails will be dropped")
			}
			notifier = &notify.Direct{Mailer: mailer, Slack: slack}
			logrus.Infof("notifications are delivered directly")
		}

		readinessChecks := []func() error{
			mysqlInstance.GetStatus().Check,
			redisInstance.GetStatus().Check,
		}
		if mongoInstance != nil {
			readinessChecks = append(readinessChecks, mongoInstance.GetStatus().Check)
		}
		livenessChecks := []func() error{
			func() error {
				status := mysqlInstance.GetStatus()
				if err := status.GetError(); err != nil && time.Since(status.GetLastChangedAt()) > livenessGracePeriod {
					return fmt.Errorf("mysql has been unavailable since %s: %w", status.GetLastChangedAt().Format(time.RFC3339), err)
				}
				return nil
			},
		}

		logrus.Infof("initialising application...")
		handler, err := controller.GetHttpApplication(controller.HttpApplicationOpts{
			Store:           dataStore,
			Cache:           cache.NewRedis(cache.NewRedisOpts{Client: redisInstance.GetClient(), ServiceLogs: serviceLogs}),
			Audit:           auditLogger,
			Notifier:        notifier,
			Lifecycle:       config.GetLifecycleConfig(),
			ClaimCodeTtl:    viper.GetDuration(config.ClaimCodeTtl),
			LivenessChecks:  livenessChecks,
			ReadinessChecks: readinessChecks,
			PublicServerUrl: viper.GetString(config.PublicServerUrl),
			RateLimit: controller.RateLimitOpts{
				Limit:  int64(viper.GetInt(config.RateLimit)),
				Window: viper.GetDuration(config.RateLimitWindow),
			},
			SecureCookies:       viper.GetBool(config.SecureCookies),
			ServiceLogs:         serviceLogs,
			SessionSigningToken: viper.GetString(config.SessionSigningToken),
			SessionTtl:          config.GetSessionTtl(),
			StripeWebhookSecret: viper.GetString(config.StripeWebhookSecret),
			WhatsappVerifyToken: viper.GetString(config.WhatsappVerifyToken),
			WhatsappAppSecret:   viper.GetString(config.WhatsappAppSecret),
		})
		if err != nil {
			return fmt.Errorf("failed to initialise application: %w", err)
		}

		logrus.Infof("initialising application server on host[%s]...", opts.GetHostname())
		httpServerDone := make(chan common.Done)
		httpServer, err := common.NewHttpServer(common.NewHttpServerOpts{
			Addr:           viper.GetString(config.ListenAddr),
			Done:           httpServerDone,
			IpAllowlist:    &common.NewHttpServerIpAllowlistOpts{AllowedIps: viper.GetStringSlice(config.AllowedIps)},
			Handler:        handler,
			TrustedProxies: viper.GetStringSlice(config.TrustedProxies),
			ServiceLogs:    serviceLogs,
		})
		if err != nil {
			return fmt.Errorf("failed to create http server: %w", err)
		}
		go func() {
			<-opts.Context().Done()
			logrus.Infof("received shutdown signal, stopping http server...")
			httpServerDone <- common.Done{}
		}()
		return httpServer.Start()
	},
})
