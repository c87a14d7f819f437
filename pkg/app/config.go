package app

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFlagName = "config"

func addConfigFlag(name string, fs *pflag.FlagSet) {
	fs.StringP(configFlagName, "c", "", fmt.Sprintf("Read %s configuration from the specified file (yaml, json or toml). Flags override file values.", name))
}

// loadConfig merges the --config file, if any, under the flags already bound
// to v.
func loadConfig(v *viper.Viper, fs *pflag.FlagSet) error {
	path, err := fs.GetString(configFlagName)
	if err != nil || path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return nil
}
