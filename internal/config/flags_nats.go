package config

import (
	"madrasah/internal/cli"
	"madrasah/internal/queue"

	"github.com/spf13/viper"
)

const (
	NatsEnabled   = "nats-enabled"
	NatsAddr      = "nats-addr"
	NatsUsername  = "nats-username"
	NatsPassword  = "nats-password"
	NatsNkeyValue = "nats-nkey-value"
)

func GetNatsFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         NatsEnabled,
			DefaultValue: true,
			Usage:        "queues notifications through NATS for the notifier, when disabled the controller sends them itself",
			Type:         cli.FlagTypeBool,
		},
		{
			Name:         NatsAddr,
			DefaultValue: "localhost:4222",
			Usage:        "specifies the hostname (including port) of the NATS server",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         NatsUsername,
			DefaultValue: "madrasah",
			Usage:        "specifies the username used to login to NATS",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         NatsPassword,
			DefaultValue: "password",
			Usage:        "specifies the password used to login to NATS",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         NatsNkeyValue,
			DefaultValue: "",
			Usage:        "specifies the nkey seed used to login to NATS, takes precedence over the username and password",
			Type:         cli.FlagTypeString,
		},
	}
}

func GetNatsOpts() queue.NewNatsOpts {
	return queue.NewNatsOpts{
		Addr:     viper.GetString(NatsAddr),
		Username: viper.GetString(NatsUsername),
		Password: viper.GetString(NatsPassword),
		NKey:     viper.GetString(NatsNkeyValue),
	}
}
