/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/cachescan/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:         "init",
	Annotations: map[string]string{annotationNoConfig: "true"},
	Short:       "Create a cachescan configuration",
	Long: `Create a configuration file with a generated API key.

This command will:
- Write the config file (default: OS-specific location)
- Generate a 256-bit API key for the REST API
- Create the data directory setting used for the scan catalog

Examples:
  cachescan init
  cachescan init --data-dir ./data --content-offset 0x6000
  cachescan init --config ./cachescan.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
			return nil
		}

		created, err := config.BootstrapConfig(configPath, dataDir)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("content-offset") {
			offset, err := contentOffsetFlag(cmd)
			if err != nil {
				return err
			}
			created.Scan.ContentOffset = offset
			if err := config.SaveConfig(created, configPath); err != nil {
				return err
			}
		}

		cmd.Printf("Configuration written to %s\n", configPath)
		cmd.Printf("API key: %s\n", created.Security.APIKey)
		cmd.Printf("Data directory: %s\n", created.DataDir)
		cmd.Printf("\nYou can now start the server with:\n")
		cmd.Printf("  cachescan serve --config %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringP("data-dir", "d", "./data", "Data directory for the scan catalog")
	initCmd.Flags().String("content-offset", "0", "Default stripe content offset for scans")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
