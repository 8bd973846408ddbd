// Package cli holds the cobra/viper plumbing shared by y12d and y12ctl.
package cli

import (
	"fmt"
	"strings"

	"github.com/bitswalk/y12/src/common/logs"
	"github.com/bitswalk/y12/src/common/paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigOptions describes where a binary looks for its configuration
type ConfigOptions struct {
	// ConfigFile is an explicit path from --config, it disables searching
	ConfigFile string
	ConfigName string
	ConfigType string
	// EnvPrefix maps keys to env vars, e.g. Y12 + server.port -> Y12_SERVER_PORT
	EnvPrefix   string
	SearchPaths []string
}

// DefaultConfigOptions returns the standard search locations for a y12 binary
func DefaultConfigOptions(configName, envPrefix string) ConfigOptions {
	return ConfigOptions{
		ConfigName: configName,
		ConfigType: "yaml",
		EnvPrefix:  envPrefix,
		SearchPaths: []string{
			"/etc/y12",
			"$HOME/.config/y12",
			".",
		},
	}
}

// InitConfig loads the config file, if any, and wires environment overrides.
// A missing config file is not an error.
func InitConfig(opts ConfigOptions) error {
	if opts.ConfigFile != "" {
		viper.SetConfigFile(paths.Expand(opts.ConfigFile))
	} else {
		viper.SetConfigName(opts.ConfigName)
		viper.SetConfigType(opts.ConfigType)
		for _, p := range opts.SearchPaths {
			viper.AddConfigPath(paths.Expand(p))
		}
	}

	if opts.EnvPrefix != "" {
		viper.SetEnvPrefix(opts.EnvPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// RegisterLogFlags adds --log-output and --log-level bound to log.output and log.level
func RegisterLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-output", "auto", "Log output destination (auto, stdout, stderr, journald)")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")

	_ = viper.BindPFlag("log.output", cmd.Flags().Lookup("log-output"))
	_ = viper.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))

	viper.SetDefault("log.output", "auto")
	viper.SetDefault("log.level", "info")
}

// RegisterConfigFlag adds the persistent --config flag
func RegisterConfigFlag(cmd *cobra.Command, cfgFile *string, defaultPath string) {
	cmd.PersistentFlags().StringVar(cfgFile, "config", "", fmt.Sprintf("config file (default: %s)", defaultPath))
}

// InitLogger builds a logger from the log.* keys. Call it after InitConfig.
func InitLogger(prefix string) *logs.Logger {
	return logs.New(logs.Config{
		Output: logs.LogOutput(viper.GetString("log.output")),
		Level:  viper.GetString("log.level"),
		Prefix: prefix,
	})
}

// BindFlag binds a local flag to a viper key
func BindFlag(cmd *cobra.Command, flagName, key string) error {
	return viper.BindPFlag(key, cmd.Flags().Lookup(flagName))
}

// BindPersistentFlag binds a persistent flag to a viper key
func BindPersistentFlag(cmd *cobra.Command, flagName, key string) error {
	return viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flagName))
}

// GetExpandedString reads a path-like key and expands ~ and env vars
func GetExpandedString(key string) string {
	return paths.Expand(viper.GetString(key))
}
