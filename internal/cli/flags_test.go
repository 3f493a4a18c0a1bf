package cli

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestFlags(t *testing.T) {
	flags := Flags{
		{Name: "test-listen-addr", Short: 'a', DefaultValue: "0.0.0.0:8080", Usage: "addr", Type: FlagTypeString},
		{Name: "test-session-ttl", DefaultValue: time.Hour, Usage: "ttl", Type: FlagTypeDuration},
	}.Append(Flags{
		{Name: "test-pause-threshold", DefaultValue: 3, Usage: "pause", Type: FlagTypeInteger},
	})
	require.Len(t, flags, 3)

	command := &cobra.Command{Use: "test"}
	flags.AddToCommand(command)
	require.NoError(t, command.ParseFlags([]string{"-a", "127.0.0.1:9000", "--test-pause-threshold", "5"}))
	flags.BindViper(command)

	require.Equal(t, "127.0.0.1:9000", viper.GetString("test-listen-addr"))
	require.Equal(t, time.Hour, viper.GetDuration("test-session-ttl"))
	require.Equal(t, 5, viper.GetInt("test-pause-threshold"))
}

func TestFlagsPanicOnUnknownType(t *testing.T) {
	require.Panics(t, func() {
		Flags{{Name: "test-broken", DefaultValue: "x", Type: FlagType("complex")}}.AddToCommand(&cobra.Command{Use: "test"})
	})
}
