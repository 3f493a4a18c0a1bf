package config

import (
	"madrasah/internal/cli"
	"madrasah/internal/persistence"

	"github.com/spf13/viper"
)

const (
	RedisAddr     = "redis-addr"
	RedisUsername = "redis-username"
	RedisPassword = "redis-password"
)

func GetRedisFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         RedisAddr,
			DefaultValue: "localhost:6379",
			Usage:        "defines the hostname (including port) of the redis server holding sessions and rate limits",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         RedisUsername,
			DefaultValue: "",
			Usage:        "defines the username used to login to redis",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         RedisPassword,
			DefaultValue: "password",
			Usage:        "defines the password used to login to redis",
			Type:         cli.FlagTypeString,
		},
	}
}

func GetRedisOpts(appName string) (persistence.RedisConnectionOpts, persistence.RedisAuthOpts) {
	return persistence.RedisConnectionOpts{
			AppName: appName,
			Addr:    viper.GetString(RedisAddr),
		}, persistence.RedisAuthOpts{
			Username: viper.GetString(RedisUsername),
			Password: viper.GetString(RedisPassword),
		}
}
