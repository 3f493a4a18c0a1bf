// Package connect opens the backing services shared by the madrasah
// commands and registers their shutdown with the calling command
package connect

import (
	"fmt"

	"madrasah/internal/audit"
	"madrasah/internal/cli"
	"madrasah/internal/config"
	"madrasah/internal/persistence"
	"madrasah/internal/queue"

	"github.com/sirupsen/logrus"
)

// Mysql connects to the relational database
func Mysql(opts *cli.Command) (*persistence.Mysql, error) {
	logrus.Infof("establishing connection to mysql...")
	connectionOpts, authOpts := config.GetMysqlOpts(opts.GetFullname())
	instance := persistence.NewMysql(connectionOpts, authOpts, opts.GetServiceLogs())
	if err := instance.Init(); err != nil {
		return nil, fmt.Errorf("failed to connect to mysql at %s: %w", connectionOpts.Host, err)
	}
	opts.AddShutdownProcess("mysql", instance.Shutdown)
	logrus.Debugf("established connection[%s] to mysql", instance.GetId())
	return instance, nil
}

// Redis connects to the cache holding sessions and rate limit counters
func Redis(opts *cli.Command) (*persistence.Redis, error) {
	logrus.Infof("establishing connection to redis...")
	connectionOpts, authOpts := config.GetRedisOpts(opts.GetFullname())
	instance := persistence.NewRedis(connectionOpts, authOpts, opts.GetServiceLogs())
	if err := instance.Init(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", connectionOpts.Addr, err)
	}
	opts.AddShutdownProcess("redis", instance.Shutdown)
	logrus.Debugf("established connection[%s] to redis", instance.GetId())
	return instance, nil
}

// AuditLogger returns primary wrapped in a Tee that mirrors into MongoDB
// when mongo hosts are configured, otherwise primary itself
func AuditLogger(opts *cli.Command, primary audit.Logger) (audit.Logger, *persistence.Mongo, error) {
	connectionOpts, authOpts, ok := config.GetMongoOpts(opts.GetFullname())
	if !ok {
		logrus.Debugf("no mongo hosts configured, audit entries are kept in mysql only")
		return primary, nil, nil
	}
	logrus.Infof("establishing connection to mongo...")
	instance := persistence.NewMongo(connectionOpts, authOpts, opts.GetServiceLogs())
	if err := instance.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo at %v: %w", connectionOpts.Hosts, err)
	}
	opts.AddShutdownProcess("mongo", instance.Shutdown)
	mirror, err := audit.NewMongoLogger(instance.GetClient())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise audit mirror: %w", err)
	}
	logrus.Debugf("audit entries are mirrored to mongo")
	return &audit.Tee{Primary: primary, Mirror: mirror, ServiceLogs: opts.GetServiceLogs()}, instance, nil
}

// Nats connects to the notification queue
func Nats(opts *cli.Command) (*queue.Nats, error) {
	logrus.Infof("establishing connection to nats...")
	natsOpts := config.GetNatsOpts()
	natsOpts.ServiceLogs = opts.GetServiceLogs()
	instance, err := queue.NewNats(natsOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create nats queue: %w", err)
	}
	if err := instance.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", natsOpts.Addr, err)
	}
	opts.AddShutdownProcess("nats", instance.Close)
	logrus.Debugf("established connection to nats")
	return instance, nil
}
