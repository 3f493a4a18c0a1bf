package config

import (
	"time"

	"madrasah/internal/auth"
	"madrasah/internal/claims"
	"madrasah/internal/cli"
	"madrasah/internal/lifecycle"

	"github.com/spf13/viper"
)

const (
	PauseThreshold      = "pause-threshold"
	SuspendThreshold    = "suspend-threshold"
	ClaimCodeTtl        = "claim-code-ttl"
	SessionTtl          = "session-ttl"
	SessionSigningToken = "session-signing-token"
)

func GetBillingFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         PauseThreshold,
			DefaultValue: lifecycle.DefaultPauseThreshold,
			Usage:        "consecutive platform payment failures after which an active organisation is paused",
			Type:         cli.FlagTypeInteger,
		},
		{
			Name:         SuspendThreshold,
			DefaultValue: lifecycle.DefaultSuspendThreshold,
			Usage:        "consecutive platform payment failures after which an organisation is suspended",
			Type:         cli.FlagTypeInteger,
		},
		{
			Name:         ClaimCodeTtl,
			DefaultValue: claims.DefaultTtl,
			Usage:        "how long a generated claim code stays valid",
			Type:         cli.FlagTypeDuration,
		},
	}
}

func GetLifecycleConfig() lifecycle.Config {
	return lifecycle.Config{
		PauseThreshold:   viper.GetInt(PauseThreshold),
		SuspendThreshold: viper.GetInt(SuspendThreshold),
	}
}

func GetSessionFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         SessionSigningToken,
			DefaultValue: "",
			Usage:        "specifies the secret used to sign session tokens, changing it ends every session",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SessionTtl,
			DefaultValue: auth.DefaultSessionTtl,
			Usage:        "lifetime of a session",
			Type:         cli.FlagTypeDuration,
		},
	}
}

func GetSessionTtl() time.Duration {
	return viper.GetDuration(SessionTtl)
}
