package config

import "madrasah/internal/cli"

const (
	StripeWebhookSecret = "stripe-webhook-secret"
	WhatsappVerifyToken = "whatsapp-verify-token"
	WhatsappAppSecret   = "whatsapp-app-secret"
	SlackWebhookUrl     = "slack-webhook-url"
)

func GetWebhookFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         StripeWebhookSecret,
			DefaultValue: "",
			Usage:        "specifies the Stripe signing secret (whsec_...) used to verify webhook events",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         WhatsappVerifyToken,
			DefaultValue: "",
			Usage:        "specifies the token WhatsApp echoes when verifying the webhook subscription",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         WhatsappAppSecret,
			DefaultValue: "",
			Usage:        "specifies the app secret used to verify WhatsApp webhook signatures",
			Type:         cli.FlagTypeString,
		},
	}
}

func GetSlackFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         SlackWebhookUrl,
			DefaultValue: "",
			Usage:        "specifies the incoming webhook url platform alerts are posted to",
			Type:         cli.FlagTypeString,
		},
	}
}
