package config

import (
	"errors"
	"fmt"
	"os"

	"madrasah/internal/common"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LoadFile merges a YAML config file into viper; keys are flag names.
// A missing file is not an error so that flags and environment
// variables alone are enough to run
func LoadFile(from string) error {
	if from == "" {
		return nil
	}
	from, err := common.ToAbsolutePath(from)
	if err != nil {
		return fmt.Errorf("failed to resolve config file path: %w", err)
	}
	fileInfo, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		logrus.Debugf("config file not found at path[%s], using flags and environment only", from)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat config file[%s]: %w", from, err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("config file path[%s] is a directory", from)
	}
	viper.SetConfigFile(from)
	viper.SetConfigType("yaml")
	if err := viper.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config file[%s]: %w", from, err)
	}
	logrus.Infof("loaded configuration from path[%s]", from)
	return nil
}
