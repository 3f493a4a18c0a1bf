package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// InitConfig makes every flag settable through an environment variable
// named after it, eg --mysql-host becomes MYSQL_HOST
func InitConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Flags is a group of flags that commands add and bind together
type Flags []FlagData

func (f Flags) AddToCommand(command *cobra.Command, persistent ...bool) {
	for _, flag := range f {
		flag.AddToCommand(command, persistent...)
	}
}

func (f Flags) Append(more ...Flags) Flags {
	output := append(Flags{}, f...)
	for _, group := range more {
		output = append(output, group...)
	}
	return output
}

func (f Flags) BindViper(command *cobra.Command, persistent ...bool) {
	for _, flag := range f {
		flag.BindViper(command, persistent...)
	}
}

// FlagData describes one flag; Name doubles as the viper key
type FlagData struct {
	Name         string
	Short        rune
	DefaultValue any
	Usage        string
	Type         FlagType
}

type FlagType string

func flagSet(command *cobra.Command, persistent []bool) *pflag.FlagSet {
	if len(persistent) > 0 && persistent[0] {
		return command.PersistentFlags()
	}
	return command.Flags()
}

// AddToCommand registers the flag on command, call it from init(). It
// panics when Type is unknown or DefaultValue does not match it
func (f *FlagData) AddToCommand(command *cobra.Command, persistent ...bool) {
	flags := flagSet(command, persistent)
	short := ""
	if f.Short != 0 {
		short = string(f.Short)
	}
	switch f.Type {
	case FlagTypeBool:
		flags.BoolP(f.Name, short, f.DefaultValue.(bool), f.Usage)
	case FlagTypeDuration:
		flags.DurationP(f.Name, short, f.DefaultValue.(time.Duration), f.Usage)
	case FlagTypeFloat:
		flags.Float64P(f.Name, short, f.DefaultValue.(float64), f.Usage)
	case FlagTypeInteger:
		flags.IntP(f.Name, short, f.DefaultValue.(int), f.Usage)
	case FlagTypeString:
		flags.StringP(f.Name, short, f.DefaultValue.(string), f.Usage)
	case FlagTypeStringSlice:
		flags.StringSliceP(f.Name, short, f.DefaultValue.([]string), f.Usage)
	default:
		panic(fmt.Sprintf("unknown FlagType[%s]", f.Type))
	}
}

// BindViper binds the flag to its viper key, do this in PreRun so that
// commands sharing a flag name do not overwrite each other
func (f *FlagData) BindViper(command *cobra.Command, persistent ...bool) {
	viper.BindPFlag(f.Name, flagSet(command, persistent).Lookup(f.Name))
	viper.BindEnv(f.Name)
}
