/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ssargent/cachescan/pkg/api"
	"github.com/ssargent/cachescan/pkg/codec"
	"github.com/ssargent/cachescan/pkg/store"
)

// headerCmd represents the header command
var headerCmd = &cobra.Command{
	Use:   "header [content]",
	Short: "Decode an object header",
	Long: `Decode the 72-byte object header that starts every fragment.

The header can be given as hex, read at an absolute position of a file, or
located through a directory slot. Slot offsets are relative to the stripe
content, so --content-offset gives where that content starts in the file
(scan.content_offset in the config file by default).

Examples:
  cachescan header --hex 139b125f...
  cachescan header ./span.img --at 0x6000
  cachescan header ./span.img --dir ./dir.dump --slot 42 --content-offset 0x6000`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hexHeader, _ := cmd.Flags().GetString("hex")
		out := cmd.OutOrStdout()

		if hexHeader != "" {
			raw, err := parseHexArg(hexHeader)
			if err != nil {
				return err
			}
			hdr, err := codec.DecodeHeader(raw)
			if err != nil {
				return err
			}
			return printHeader(cmd, hdr)
		}

		if len(args) != 1 {
			return fmt.Errorf("a content file or --hex is required")
		}

		if cmd.Flags().Changed("at") {
			atFlag, _ := cmd.Flags().GetString("at")
			at, err := parseByteValue(atFlag)
			if err != nil {
				return err
			}
			hdr, err := readHeaderAt(args[0], int64(at))
			if err != nil {
				return err
			}
			return printHeader(cmd, hdr)
		}

		dirPath, _ := cmd.Flags().GetString("dir")
		slotIndex, _ := cmd.Flags().GetInt64("slot")
		if dirPath == "" {
			return fmt.Errorf("either --at or --dir with --slot is required")
		}
		contentOffset, err := contentOffsetFlag(cmd)
		if err != nil {
			return err
		}

		frag, slot, err := readSlotFragment(dirPath, args[0], slotIndex, contentOffset)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return outputJSON(out, fragmentView{
				Slot:      slot.Index,
				Entry:     api.NewDirEntryResponse(slot.Entry),
				Header:    api.NewHeaderResponse(frag.Header),
				BodyBytes: len(frag.Body),
				DataBytes: len(frag.Data),
				Truncated: frag.Truncated,
			})
		}
		fmt.Fprintf(out, "Slot %d: %s\n\n", slot.Index, slot.Entry.Summary())
		if err := outputHeaderTable(out, frag.Header); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nRead %s of alternates and %s of data",
			humanize.IBytes(uint64(len(frag.Body))), humanize.IBytes(uint64(len(frag.Data))))
		if frag.Truncated {
			fmt.Fprint(out, " (truncated)")
		}
		fmt.Fprintln(out)
		return nil
	},
}

type fragmentView struct {
	Slot      int64                `json:"slot"`
	Entry     api.DirEntryResponse `json:"entry"`
	Header    api.HeaderResponse   `json:"header"`
	BodyBytes int                  `json:"body_bytes"`
	DataBytes int                  `json:"data_bytes"`
	Truncated bool                 `json:"truncated"`
}

func printHeader(cmd *cobra.Command, hdr codec.Header) error {
	if wantJSON(cmd) {
		return outputJSON(cmd.OutOrStdout(), api.NewHeaderResponse(hdr))
	}
	return outputHeaderTable(cmd.OutOrStdout(), hdr)
}

// readHeaderAt decodes the header at an absolute file position
func readHeaderAt(path string, at int64) (codec.Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return codec.Header{}, fmt.Errorf("failed to open content file: %w", err)
	}
	defer file.Close()

	buf := make([]byte, codec.HeaderSize)
	n, err := file.ReadAt(buf, at)
	if err != nil && err != io.EOF {
		return codec.Header{}, fmt.Errorf("failed to read header: %w", err)
	}
	return codec.DecodeHeader(buf[:n])
}

// readSlotFragment follows one directory slot into the content file
func readSlotFragment(dirPath, contentPath string, slotIndex, contentOffset int64) (*store.Fragment, *store.Slot, error) {
	dir, err := store.NewDirReader(store.DirReaderConfig{FilePath: dirPath})
	if err != nil {
		return nil, nil, err
	}
	defer dir.Close()

	slot, err := dir.ReadAt(slotIndex)
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("slot %d is past the end of the dump", slotIndex)
		}
		return nil, nil, err
	}

	fragments, err := store.NewFragmentReader(store.FragmentReaderConfig{
		FilePath:      contentPath,
		ContentOffset: contentOffset,
	})
	if err != nil {
		return nil, nil, err
	}
	defer fragments.Close()

	frag, err := fragments.ReadFragment(slot.Entry)
	if err != nil {
		return nil, slot, err
	}
	return frag, slot, nil
}

// contentOffsetFlag returns --content-offset, falling back to the config file
func contentOffsetFlag(cmd *cobra.Command) (int64, error) {
	if !cmd.Flags().Changed("content-offset") {
		if cfg != nil {
			return cfg.Scan.ContentOffset, nil
		}
		return 0, nil
	}
	raw, _ := cmd.Flags().GetString("content-offset")
	v, err := parseByteValue(raw)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func init() {
	rootCmd.AddCommand(headerCmd)

	headerCmd.Flags().String("hex", "", "Decode a header given as 144 hex digits")
	headerCmd.Flags().String("at", "0", "Absolute byte position of the header in the file")
	headerCmd.Flags().String("dir", "", "Directory dump to take the slot from")
	headerCmd.Flags().Int64("slot", 0, "Directory slot whose fragment to read")
	headerCmd.Flags().String("content-offset", "0", "Where the stripe content starts in the file")
}
