/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/cachescan/pkg/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the cachescan REST API server. It decodes directory entries and
object headers posted to it, runs scans of files visible to the server and
serves the scan catalog. Prometheus metrics are served on /metrics.

The API key, port, bind address and data directory come from the config file
(see 'cachescan init') unless overridden by flags.

Examples:
  cachescan serve
  cachescan serve --port 9000 --bind 0.0.0.0 --api-key mysecretkey
  cachescan serve --scan-root /var/cache/dumps`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverConfig, dataDir, err := serverConfigFromFlags(cmd)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(dataDir, 0750); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		cat, err := container.GetCatalogOpener()(dataDir)
		if err != nil {
			return err
		}
		defer cat.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		starter := container.GetServerFactory().CreateServerStarter()
		cmd.Printf("Starting cachescan server on %s:%d\n", serverConfig.Bind, serverConfig.Port)
		cmd.Printf("Data directory: %s\n", dataDir)
		return starter.StartServer(ctx, cat, serverConfig, container.GetLogger())
	},
}

// serverConfigFromFlags merges flags over the loaded config
func serverConfigFromFlags(cmd *cobra.Command) (api.ServerConfig, string, error) {
	port, _ := cmd.Flags().GetInt("port")
	bind, _ := cmd.Flags().GetString("bind")
	apiKey, _ := cmd.Flags().GetString("api-key")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	scanRoot, _ := cmd.Flags().GetString("scan-root")

	sc := api.ServerConfig{
		Port:     cfg.Port,
		Bind:     cfg.Bind,
		APIKey:   cfg.Security.APIKey,
		Workers:  cfg.Scan.Workers,
		ScanRoot: cfg.Scan.Root,
	}
	if cmd.Flags().Changed("port") {
		sc.Port = port
	}
	if cmd.Flags().Changed("bind") {
		sc.Bind = bind
	}
	if cmd.Flags().Changed("api-key") {
		sc.APIKey = apiKey
	}
	if cmd.Flags().Changed("scan-root") {
		sc.ScanRoot = scanRoot
	}
	if !cmd.Flags().Changed("data-dir") {
		dataDir = cfg.DataDir
	}

	if sc.APIKey == "" || sc.APIKey == "auto" {
		return sc, "", fmt.Errorf("no API key configured: run 'cachescan init' or pass --api-key")
	}
	return sc, dataDir, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind server to")
	serveCmd.Flags().String("api-key", "", "API key for client authentication")
	serveCmd.Flags().StringP("data-dir", "d", "./data", "Data directory holding the catalog")
	serveCmd.Flags().String("scan-root", "", "Only allow API scans of files beneath this directory")
}
