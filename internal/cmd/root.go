package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/config"
	"github.com/namelens/repolens/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Extract GitHub repository metadata into a local store",
	Long: `repolens reads a CSV of GitHub repositories, fetches their metadata from the
GraphQL API while rotating credentials and honouring rate limits, and loads
normalized project rows into a libsql database.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	defaultPath := config.DefaultConfigPath()
	if defaultPath == "" {
		defaultPath = "./config/" + config.AppName + ".yaml"
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is %s)", defaultPath))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads the config file and REPOLENS_* environment variables,
// then builds the CLI logger from the result.
func initConfig() {
	if err := config.Configure(viper.GetViper(), cfgFile); err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to read config file", err)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Invalid configuration", err)
	}

	observability.InitCLILogger(cfg.Logging, verbose)
	if used := viper.ConfigFileUsed(); used != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", used))
	} else {
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	}
}

// loadedConfig returns the configuration resolved by initConfig.
func loadedConfig() (*config.Config, error) {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	return config.Load(viper.GetViper())
}
