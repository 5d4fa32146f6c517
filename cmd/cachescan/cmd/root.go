/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/cachescan/pkg/config"
	"github.com/ssargent/cachescan/pkg/di"
)

var (
	container *di.Container
	cfg       *config.Config
)

// annotationNoConfig marks commands that run before a config file exists
const annotationNoConfig = "no-config"

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cachescan",
	Short: "cachescan - Traffic Server cache inspector",
	Long: `cachescan decodes Apache Traffic Server cache directory entries and the
object headers they point at. It works on raw dumps of a stripe directory
and on stripe content images, and can record scan findings in a local
catalog that the REST API serves.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		logLevel, _ := cmd.Flags().GetString("log-level")

		if cmd.Annotations[annotationNoConfig] != "" {
			configPath = ""
		}
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level = logLevel
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		if container == nil {
			container = di.NewContainer()
		}
		return container.ConfigureLogger(cfg.Logging.Level)
	},
}

// loadConfig reads the config file when present and falls back to defaults
func loadConfig(configPath string) (*config.Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = config.GetDefaultConfigPath()
	}
	if !config.ConfigExists(configPath) {
		if explicit {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(configPath)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table or json)")
}
