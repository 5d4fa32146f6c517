/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/cachescan/pkg/catalog"
	"github.com/ssargent/cachescan/pkg/store"
)

// scansCmd represents the scans command
var scansCmd = &cobra.Command{
	Use:   "scans [scan-id]",
	Short: "List recorded scans or show one",
	Long: `List the scans recorded in the catalog, show the findings of one scan, or
find every recorded slot whose header carried an object key.

Examples:
  cachescan scans
  cachescan scans 2GcR9yqYBqBRaGtGqcFCrcPmHxP --outcome corrupt
  cachescan scans --key 00000000deadbeef00000000feedface`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		outcome, _ := cmd.Flags().GetString("outcome")
		out := cmd.OutOrStdout()

		cat, err := container.GetCatalogOpener()(cfg.DataDir)
		if err != nil {
			return err
		}
		defer cat.Close()

		switch {
		case key != "":
			k, err := store.ParseObjectKey(key)
			if err != nil {
				return err
			}
			refs, err := cat.LookupKey(k[0], k[1])
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return outputJSON(out, refs)
			}
			if len(refs) == 0 {
				fmt.Fprintln(out, "Key not found in any recorded scan")
				return nil
			}
			tw := newTable(out)
			defer tw.Flush()
			fmt.Fprintln(tw, "SCAN\tSLOT")
			for _, r := range refs {
				fmt.Fprintf(tw, "%s\t%d\n", r.ScanID, r.Slot)
			}
			return nil

		case len(args) == 1:
			scan, err := cat.Scan(args[0])
			if err != nil {
				if err == catalog.ErrNotFound {
					return fmt.Errorf("scan %s not found", args[0])
				}
				return err
			}
			findings, err := cat.Findings(args[0])
			if err != nil {
				return err
			}
			if outcome != "" {
				filtered := findings[:0]
				for _, f := range findings {
					if string(f.Outcome) == outcome {
						filtered = append(filtered, f)
					}
				}
				findings = filtered
			}
			if wantJSON(cmd) {
				return outputJSON(out, map[string]interface{}{"scan": scan, "findings": findings})
			}
			fmt.Fprintf(out, "Scan %s of %s\n", scan.ID, scan.DirPath)
			fmt.Fprintf(out, "Status: %s\n", scan.Status)
			if scan.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", scan.Error)
			}
			if err := outputStatsTable(out, scan.Stats); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return outputFindingsTable(out, findings)

		default:
			scans, err := cat.Scans()
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return outputJSON(out, scans)
			}
			return outputScansTable(out, scans)
		}
	},
}

func init() {
	rootCmd.AddCommand(scansCmd)

	scansCmd.Flags().String("key", "", "Find slots whose header carried this key (32 hex digits)")
	scansCmd.Flags().String("outcome", "", "Only show findings with this outcome")
}
