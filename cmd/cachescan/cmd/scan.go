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

	"github.com/ssargent/cachescan/pkg/catalog"
	"github.com/ssargent/cachescan/pkg/scan"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <dir-dump> <content>",
	Short: "Decode the header behind every selected directory entry",
	Long: `Walk a directory dump and decode the object header each selected entry
points at. Every header read ends as one of: ok, invalid_magic, corrupt,
short_read or format. With --record the scan and its findings are stored in
the catalog under the configured data directory.

Examples:
  cachescan scan ./dir.dump ./span.img --content-offset 0x6000
  cachescan scan ./dir.dump ./span.img --heads-only --phase --record
  cachescan scan ./dir.dump ./span.img --validity-limit 1048576 --show`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")
		headsOnly, _ := cmd.Flags().GetBool("heads-only")
		phase, _ := cmd.Flags().GetBool("phase")
		validityLimit, _ := cmd.Flags().GetUint64("validity-limit")
		record, _ := cmd.Flags().GetBool("record")
		show, _ := cmd.Flags().GetBool("show")
		start, _ := cmd.Flags().GetInt64("start")
		out := cmd.OutOrStdout()

		if !cmd.Flags().Changed("workers") {
			workers = cfg.Scan.Workers
		}
		if !cmd.Flags().Changed("heads-only") {
			headsOnly = cfg.Scan.HeadsOnly
		}
		if !cmd.Flags().Changed("record") {
			record = cfg.Scan.Record
		}
		contentOffset, err := contentOffsetFlag(cmd)
		if err != nil {
			return err
		}

		job := scan.Job{
			DirPath:       args[0],
			ContentPath:   args[1],
			ContentOffset: contentOffset,
			StartIndex:    start,
			Options: scan.Options{
				Workers:       workers,
				HeadsOnly:     headsOnly,
				StripePhase:   phase,
				ValidityLimit: validityLimit,
			},
		}

		var cat *catalog.Catalog
		if record {
			if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			cat, err = container.GetCatalogOpener()(cfg.DataDir)
			if err != nil {
				return err
			}
			defer cat.Close()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var jobCatalog scan.Catalog
		if cat != nil {
			jobCatalog = cat
		}
		report, err := job.Run(ctx, jobCatalog, nil, container.GetLogger())
		if err != nil {
			return err
		}

		if wantJSON(cmd) {
			return outputJSON(out, report)
		}
		if report.Scan != nil {
			fmt.Fprintf(out, "Scan %s\n", report.Scan.ID)
		}
		if err := outputStatsTable(out, report.Result.Stats); err != nil {
			return err
		}
		outputDuplicates(out, report.Duplicates)
		if show {
			fmt.Fprintln(out)
			return outputFindingsTable(out, report.Result.Findings)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Int("workers", 4, "Concurrent header reads (default from config)")
	scanCmd.Flags().Bool("heads-only", false, "Only decode head entries written in the stripe phase")
	scanCmd.Flags().Bool("phase", false, "Current phase of the stripe")
	scanCmd.Flags().Uint64("validity-limit", 0, "Stripe write position in cache blocks; enables the phase check")
	scanCmd.Flags().String("content-offset", "0", "Where the stripe content starts in the content file")
	scanCmd.Flags().Int64("start", 0, "Slot to start at")
	scanCmd.Flags().Bool("record", false, "Store the scan in the catalog (default from config)")
	scanCmd.Flags().Bool("show", false, "Print every finding")
}
