package config

import (
	"madrasah/internal/cli"
	"madrasah/internal/common"
	"madrasah/internal/email"

	"github.com/spf13/viper"
)

const (
	SenderEmail    = "sender-email"
	SenderName     = "sender-name"
	SmtpUsername   = "smtp-username"
	SmtpPassword   = "smtp-password"
	SmtpHostname   = "smtp-hostname"
	SmtpPort       = "smtp-port"
	SendgridApiKey = "sendgrid-api-key"
)

// GetEmailFlags covers both transports; SendGrid is used when its api
// key is set, SMTP otherwise
func GetEmailFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         SenderEmail,
			DefaultValue: "noreply@madrasah.app",
			Usage:        "defines the notification sender's address",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SenderName,
			DefaultValue: "Madrasah OS",
			Usage:        "defines the notification sender's name",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SmtpUsername,
			DefaultValue: "",
			Usage:        "defines the smtp server user's email address",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SmtpPassword,
			DefaultValue: "",
			Usage:        "defines the smtp server user's password",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SmtpHostname,
			DefaultValue: "",
			Usage:        "defines the smtp server's hostname",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SmtpPort,
			DefaultValue: 587,
			Usage:        "defines the smtp server's port",
			Type:         cli.FlagTypeInteger,
		},
		{
			Name:         SendgridApiKey,
			DefaultValue: "",
			Usage:        "defines the SendGrid api key, takes precedence over smtp when set",
			Type:         cli.FlagTypeString,
		},
	}
}

// GetMailer returns the configured email transport, nil when neither
// SendGrid nor SMTP is configured
func GetMailer(serviceLogs chan<- common.ServiceLog) email.Sender {
	from := email.User{Address: viper.GetString(SenderEmail), Name: viper.GetString(SenderName)}
	if apiKey := viper.GetString(SendgridApiKey); apiKey != "" {
		return &email.SendgridSender{ApiKey: apiKey, From: from}
	}
	smtpConfig := email.SmtpConfig{
		Hostname: viper.GetString(SmtpHostname),
		Port:     viper.GetInt(SmtpPort),
		Username: viper.GetString(SmtpUsername),
		Password: viper.GetString(SmtpPassword),
	}
	if smtpConfig.Hostname == "" {
		return nil
	}
	return &email.SmtpSender{Smtp: smtpConfig, From: from, ServiceLogs: serviceLogs}
}
