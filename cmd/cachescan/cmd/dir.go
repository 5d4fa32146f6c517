/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/cachescan/pkg/api"
	"github.com/ssargent/cachescan/pkg/codec"
	"github.com/ssargent/cachescan/pkg/store"
)

// dirCmd represents the dir command
var dirCmd = &cobra.Command{
	Use:   "dir [dump]",
	Short: "Decode directory entries",
	Long: `Decode the 10-byte directory entries of a raw stripe directory dump, or a
single entry given as hex.

Examples:
  cachescan dir ./dir.dump
  cachescan dir ./dir.dump --start 4096 --limit 100 --all
  cachescan dir --hex "0200 0004 0030 0500 0000"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hexEntry, _ := cmd.Flags().GetString("hex")
		start, _ := cmd.Flags().GetInt64("start")
		limit, _ := cmd.Flags().GetInt64("limit")
		all, _ := cmd.Flags().GetBool("all")
		out := cmd.OutOrStdout()

		if hexEntry != "" {
			raw, err := parseHexArg(hexEntry)
			if err != nil {
				return err
			}
			entry, err := codec.DecodeDirEntry(raw)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return outputJSON(out, api.NewDirEntryResponse(entry))
			}
			fmt.Fprintln(out, entry.String())
			return nil
		}

		if len(args) != 1 {
			return fmt.Errorf("a directory dump path or --hex is required")
		}
		slots, err := readSlots(args[0], start, limit, all)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			views := make([]slotView, 0, len(slots))
			for _, s := range slots {
				views = append(views, slotView{Slot: s.Index, Entry: api.NewDirEntryResponse(s.Entry)})
			}
			return outputJSON(out, views)
		}
		return outputSlotsTable(out, slots)
	},
}

// readSlots reads up to limit slots (0 for no limit) starting at start.
// Unused slots are skipped unless all is set; they do not count toward limit.
func readSlots(path string, start, limit int64, all bool) ([]store.Slot, error) {
	reader, err := store.NewDirReader(store.DirReaderConfig{FilePath: path, StartIndex: start})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var slots []store.Slot
	for limit <= 0 || int64(len(slots)) < limit {
		slot, err := reader.ReadNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return slots, err
		}
		if !all && !slot.Entry.IsValid() {
			continue
		}
		slots = append(slots, *slot)
	}
	return slots, nil
}

type slotView struct {
	Slot  int64                `json:"slot"`
	Entry api.DirEntryResponse `json:"entry"`
}

func init() {
	rootCmd.AddCommand(dirCmd)

	dirCmd.Flags().String("hex", "", "Decode a single entry given as 20 hex digits")
	dirCmd.Flags().Int64("start", 0, "Slot to start at")
	dirCmd.Flags().Int64("limit", 0, "Maximum number of entries to print (0 for all)")
	dirCmd.Flags().Bool("all", false, "Include unused slots")
}
