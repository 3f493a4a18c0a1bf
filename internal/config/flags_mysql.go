package config

import (
	"fmt"

	"madrasah/internal/cli"
	"madrasah/internal/persistence"

	"github.com/spf13/viper"
)

const (
	MysqlHost     = "mysql-host"
	MysqlPort     = "mysql-port"
	MysqlDatabase = "mysql-database"
	MysqlUsername = "mysql-username"
	MysqlPassword = "mysql-password"
)

func GetMysqlFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         MysqlHost,
			DefaultValue: "127.0.0.1",
			Usage:        "specifies the hostname of the database",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         MysqlPort,
			DefaultValue: "3306",
			Usage:        "specifies the port which the database is listening on",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         MysqlDatabase,
			DefaultValue: "madrasah",
			Usage:        "specifies the name of the database schema",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         MysqlUsername,
			DefaultValue: "madrasah",
			Usage:        "specifies the username to use to login",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         MysqlPassword,
			DefaultValue: "password",
			Usage:        "specifies the password to use to login",
			Type:         cli.FlagTypeString,
		},
	}
}

// GetMysqlOpts reads the bound mysql flags
func GetMysqlOpts(appName string) (persistence.MysqlConnectionOpts, persistence.MysqlAuthOpts) {
	return persistence.MysqlConnectionOpts{
			AppName:  appName,
			Host:     fmt.Sprintf("%s:%s", viper.GetString(MysqlHost), viper.GetString(MysqlPort)),
			Database: viper.GetString(MysqlDatabase),
		}, persistence.MysqlAuthOpts{
			Username: viper.GetString(MysqlUsername),
			Password: viper.GetString(MysqlPassword),
		}
}
