package config

import (
	"madrasah/internal/cli"
	"madrasah/internal/persistence"

	"github.com/spf13/viper"
)

const (
	MongoHosts    = "mongo-hosts"
	MongoUsername = "mongo-username"
	MongoPassword = "mongo-password"
)

func GetMongoFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         MongoHosts,
			DefaultValue: []string{},
			Usage:        "specifies the host:port of MongoDB instances that mirror the audit trail, the mirror is off when empty",
			Type:         cli.FlagTypeStringSlice,
		},
		{
			Name:         MongoUsername,
			DefaultValue: "",
			Usage:        "specifies the username to use to login to MongoDB",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         MongoPassword,
			DefaultValue: "",
			Usage:        "specifies the password to use to login to MongoDB",
			Type:         cli.FlagTypeString,
		},
	}
}

// GetMongoOpts reads the bound mongo flags; ok is false when no hosts
// are configured
func GetMongoOpts(appName string) (persistence.MongoConnectionOpts, persistence.MongoAuthOpts, bool) {
	hosts := viper.GetStringSlice(MongoHosts)
	return persistence.MongoConnectionOpts{
			AppName:  appName,
			Hosts:    hosts,
			IsDirect: len(hosts) == 1,
		}, persistence.MongoAuthOpts{
			Username: viper.GetString(MongoUsername),
			Password: viper.GetString(MongoPassword),
		}, len(hosts) > 0
}
