package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bitswalk/y12/src/common/cli"
	"github.com/bitswalk/y12/src/common/logs"
	"github.com/bitswalk/y12/src/common/version"
	"github.com/bitswalk/y12/src/y12ctl/internal/client"
	"github.com/bitswalk/y12/src/y12ctl/internal/output"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	cfgFile string

	// outputFormat is empty until set by --output or the config file
	outputFormat string

	apiClient *client.Client

	log = logs.NewDefault()
)

// Linker variables - set via ldflags at build time
var (
	Version        = "dev"
	ReleaseName    = "Kestrel"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "y12ctl",
	Short: "y12 CLI client",
	Long: `y12ctl is the command-line client for the y12 build API.

It submits build requests to y12d, follows their progress, downloads
the generated build kit and uploads the final image from a runner.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.ReleaseName = ReleaseName
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		output.PrintError(err)
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle: initConfig reads rootCmd's flags.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" && !cmd.Flags().Changed("server") {
			return nil
		}
		return initConfig()
	}

	cli.RegisterConfigFlag(rootCmd, &cfgFile, "~/.config/y12/y12ctl.yaml")

	rootCmd.PersistentFlags().StringP("server", "s", "", "y12d server URL (default: http://localhost:8080)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: table, json, yaml (default: table on a terminal, json otherwise)")
	rootCmd.PersistentFlags().String("secret", "", "Build secret for image uploads and progress reports")
	rootCmd.PersistentFlags().Int("retries", 3, "Retries for failed requests")
	rootCmd.PersistentFlags().Bool("debug", false, "Log HTTP retries")

	_ = cli.BindPersistentFlag(rootCmd, "server", "server.url")
	_ = cli.BindPersistentFlag(rootCmd, "secret", "build_secret")
	_ = cli.BindPersistentFlag(rootCmd, "retries", "client.retries")

	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("client.retries", 3)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(distrosCmd)
	rootCmd.AddCommand(overlaysCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(selfTestCmd)

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{output.FormatTable, output.FormatJSON, output.FormatYAML}, cobra.ShellCompDirectiveNoFileComp
	})
}

func initConfig() error {
	opts := cli.DefaultConfigOptions("y12ctl", "Y12")
	opts.ConfigFile = cfgFile
	if err := cli.InitConfig(opts); err != nil {
		return err
	}

	if debug, _ := rootCmd.PersistentFlags().GetBool("debug"); debug {
		log = logs.New(logs.Config{Output: logs.OutputStderr, Level: "debug", Prefix: "y12ctl"})
	}

	if outputFormat == "" {
		outputFormat = viper.GetString("output")
	}
	if outputFormat != "" && !output.ValidFormat(outputFormat) {
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	return nil
}

// getClient returns the API client, creating it if needed
func getClient() *client.Client {
	if apiClient == nil {
		opts := client.Options{RetryMax: viper.GetInt("client.retries")}
		if debug, _ := rootCmd.PersistentFlags().GetBool("debug"); debug {
			opts.Logger = log
		}
		apiClient = client.NewWithOptions(viper.GetString("server.url"), opts)
		apiClient.Secret = viper.GetString("build_secret")
		apiClient.UserAgent = VersionInfo.UserAgent("y12ctl")
	}
	return apiClient
}

// getOutputFormat returns the current output format
func getOutputFormat() string {
	if outputFormat == "" {
		return output.DefaultFormat()
	}
	return outputFormat
}
