// Package core provides the root command and server wiring of y12d.
package core

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bitswalk/y12/src/common/cli"
	"github.com/bitswalk/y12/src/common/logs"
	"github.com/bitswalk/y12/src/common/version"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Global logger instance
	log = logs.NewDefault()

	// Configuration file path
	cfgFile string
)

// Linker variables - these are set via ldflags at build time
var (
	Version        = "dev"
	ReleaseName    = "Kestrel"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "y12d",
	Short: "y12 build orchestration server",
	Long: `y12d turns a distro, a mode, overlays and detected hardware into a
reproducible build kit: kernel config, build script, Dockerfile, compose file
and README, validated and checksummed, then hands the ISO build to a runner.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), VersionInfo.Full())
	},
}

// Execute runs the root command
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.ReleaseName = ReleaseName
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)

	cli.RegisterConfigFlag(rootCmd, &cfgFile, "/etc/y12/y12d.yaml")

	// Server flags
	rootCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.Flags().StringP("bind", "b", "0.0.0.0", "Address to bind to")

	cli.RegisterLogFlags(rootCmd)

	// Job store flags
	rootCmd.Flags().String("db-path", "~/.y12/y12d.db", "Path the job store is persisted to")
	rootCmd.Flags().Duration("jobs-ttl", 7*24*time.Hour, "Job record lifetime")

	// Storage flags
	rootCmd.Flags().String("storage-type", "local", "Artifact storage backend: 'local' or 's3'")
	rootCmd.Flags().String("storage-path", "~/.y12/artifacts", "Local storage path (for local backend)")
	rootCmd.Flags().String("s3-endpoint", "", "S3-compatible storage endpoint URL")
	rootCmd.Flags().String("s3-region", "auto", "S3 region")
	rootCmd.Flags().String("s3-bucket", "y12-builds", "S3 bucket for build artifacts")
	rootCmd.Flags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.Flags().String("s3-secret-key", "", "S3 secret access key")
	rootCmd.Flags().Bool("s3-path-style", true, "Use path-style addressing for S3")

	// Integration flags
	rootCmd.Flags().String("catalog", "", "TOML catalog replacing the built-in package mappings")
	rootCmd.Flags().String("ai-model", "", "Completion model used for kernel configs")
	rootCmd.Flags().String("github-repo", "", "Repository running the ISO workflow (owner/name)")
	rootCmd.Flags().String("callback-url", "", "Public API URL the runner reports to")
	rootCmd.Flags().String("callback-auth", "none", "Progress callback auth: 'none' or 'required'")
	rootCmd.Flags().Int("rate-limit", 10, "Build creations per client per minute, 0 disables")

	_ = cli.BindFlag(rootCmd, "port", "server.port")
	_ = cli.BindFlag(rootCmd, "bind", "server.bind")
	_ = cli.BindFlag(rootCmd, "db-path", "database.path")
	_ = cli.BindFlag(rootCmd, "jobs-ttl", "jobs.ttl")
	_ = cli.BindFlag(rootCmd, "storage-type", "storage.type")
	_ = cli.BindFlag(rootCmd, "storage-path", "storage.local.path")
	_ = cli.BindFlag(rootCmd, "s3-endpoint", "storage.s3.endpoint")
	_ = cli.BindFlag(rootCmd, "s3-region", "storage.s3.region")
	_ = cli.BindFlag(rootCmd, "s3-bucket", "storage.s3.bucket")
	_ = cli.BindFlag(rootCmd, "s3-access-key", "storage.s3.access_key")
	_ = cli.BindFlag(rootCmd, "s3-secret-key", "storage.s3.secret_key")
	_ = cli.BindFlag(rootCmd, "s3-path-style", "storage.s3.path_style")
	_ = cli.BindFlag(rootCmd, "catalog", "catalog.path")
	_ = cli.BindFlag(rootCmd, "ai-model", "ai.model")
	_ = cli.BindFlag(rootCmd, "github-repo", "dispatch.github.repo")
	_ = cli.BindFlag(rootCmd, "callback-url", "dispatch.callback_url")
	_ = cli.BindFlag(rootCmd, "callback-auth", "security.callback_auth")
	_ = cli.BindFlag(rootCmd, "rate-limit", "api.rate_limit")

	// Set defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.bind", "0.0.0.0")
	viper.SetDefault("database.path", "~/.y12/y12d.db")
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.path", "~/.y12/artifacts")
	viper.SetDefault("storage.s3.region", "auto")
	viper.SetDefault("storage.s3.bucket", "y12-builds")
	viper.SetDefault("storage.s3.path_style", true)
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("dispatch.github.workflow", "build-iso.yml")
	viper.SetDefault("dispatch.github.ref", "main")
	viper.SetDefault("dispatch.github.api_url", "https://api.github.com")
	viper.SetDefault("dispatch.timeout", "15s")
	viper.SetDefault("security.callback_auth", "none")
	viper.SetDefault("jobs.ttl", "168h")
	viper.SetDefault("jobs.purge_interval", "1h")
	viper.SetDefault("jobs.persist_interval", "5m")
	viper.SetDefault("api.rate_limit", 10)
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	opts := cli.DefaultConfigOptions("y12d", "Y12")
	opts.ConfigFile = cfgFile

	if err := cli.InitConfig(opts); err != nil {
		return err
	}

	log = cli.InitLogger("y12d")
	return nil
}
