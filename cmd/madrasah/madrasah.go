package madrasah

import (
	"fmt"
	"os"
	"strings"

	"madrasah/cmd/madrasah/create"
	"madrasah/cmd/madrasah/run"
	"madrasah/cmd/madrasah/start"
	"madrasah/internal/cli"
	"madrasah/internal/common"
	"madrasah/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagOutput   = "output"
	flagRedact   = "redact-logs"
)

var persistentFlags = cli.Flags{
	{
		Name:         flagConfig,
		Short:        'C',
		DefaultValue: "./madrasah.yaml",
		Usage:        "defines the location of an optional yaml file whose keys are flag names",
		Type:         cli.FlagTypeString,
	},
	{
		Name:         flagLogLevel,
		Short:        'l',
		DefaultValue: common.LogLevelInfo,
		Usage:        fmt.Sprintf("sets the log level (one of [%s])", strings.Join(common.LogLevels, ", ")),
		Type:         cli.FlagTypeString,
	},
	{
		Name:         flagOutput,
		Short:        'o',
		DefaultValue: cli.OutputText,
		Usage:        fmt.Sprintf("sets the output format where applicable (one of [%s])", strings.Join(cli.Outputs, ", ")),
		Type:         cli.FlagTypeString,
	},
	{
		Name:         flagRedact,
		DefaultValue: true,
		Usage:        "masks passwords, tokens, secrets and claim codes in logs",
		Type:         cli.FlagTypeBool,
	},
}

func init() {
	Command.AddCommand(create.Command)
	Command.AddCommand(run.Command)
	Command.AddCommand(start.Command)
	Command.SilenceErrors = true
	Command.SilenceUsage = true

	persistentFlags.AddToCommand(Command, true)

	logrus.SetOutput(os.Stderr)
	cobra.OnInitialize(func() {
		persistentFlags.BindViper(Command, true)
		cli.InitLogging(viper.GetString(flagLogLevel), viper.GetBool(flagRedact))
		if err := config.LoadFile(viper.GetString(flagConfig)); err != nil {
			logrus.Warnf("ignoring config file: %s", err)
		}
	})

	cli.InitConfig()
}

var Command = &cobra.Command{
	Use:     "madrasah",
	Short:   "School administration for supplementary Islamic schools",
	Long:    "Runs the Madrasah OS services and the batch jobs that keep fees and organisation statuses current",
	Version: config.GetVersion(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}
