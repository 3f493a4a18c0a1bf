package config

import (
	"time"

	"madrasah/internal/cli"
)

const (
	ListenAddr      = "listen-addr"
	PublicServerUrl = "public-server-url"
	SecureCookies   = "secure-cookies"
	RateLimit       = "rate-limit"
	RateLimitWindow = "rate-limit-window"
	AllowedIps      = "allowed-ips"
	TrustedProxies  = "trusted-proxies"
)

func GetHttpFlags(port string) cli.Flags {
	return cli.Flags{
		{
			Name:         ListenAddr,
			DefaultValue: "0.0.0.0:" + port,
			Usage:        "specifies the listen address of the server",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         PublicServerUrl,
			DefaultValue: "http://localhost:3000",
			Usage:        "specifies the url parents and staff reach the app at, used in emails and claim links",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SecureCookies,
			DefaultValue: false,
			Usage:        "marks the session cookie as Secure, enable this behind https",
			Type:         cli.FlagTypeBool,
		},
		{
			Name:         RateLimit,
			DefaultValue: 10,
			Usage:        "number of requests a client ip may make per window to the login, signup and claim endpoints",
			Type:         cli.FlagTypeInteger,
		},
		{
			Name:         RateLimitWindow,
			DefaultValue: time.Minute,
			Usage:        "window of the public endpoint rate limits",
			Type:         cli.FlagTypeDuration,
		},
		{
			Name:         AllowedIps,
			DefaultValue: []string{},
			Usage:        "restricts the server to these cidrs when set",
			Type:         cli.FlagTypeStringSlice,
		},
		{
			Name:         TrustedProxies,
			DefaultValue: []string{},
			Usage:        "cidrs of the load balancers whose X-Forwarded-For header is believed, the peer address is used otherwise",
			Type:         cli.FlagTypeStringSlice,
		},
	}
}
