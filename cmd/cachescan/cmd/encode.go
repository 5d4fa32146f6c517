/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/cachescan/pkg/api"
	"github.com/ssargent/cachescan/pkg/codec"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode <entry-hex>",
	Short: "Re-point a directory entry at a new offset",
	Long: `Rewrite the offset of an encoded directory entry and print the result.
Size class, flags, tag and next pointer are kept. The offset must be a
multiple of 512 bytes.

Examples:
  cachescan encode "0200 0004 0030 0500 0000" --offset 0x200000000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offsetFlag, _ := cmd.Flags().GetString("offset")
		out := cmd.OutOrStdout()

		raw, err := parseHexArg(args[0])
		if err != nil {
			return err
		}
		offset, err := parseByteValue(offsetFlag)
		if err != nil {
			return err
		}

		if err := codec.SetDirEntryOffset(raw, offset); err != nil {
			return err
		}
		entry, err := codec.DecodeDirEntry(raw)
		if err != nil {
			return err
		}

		if wantJSON(cmd) {
			return outputJSON(out, api.NewDirEntryResponse(entry))
		}
		fmt.Fprintln(out, hex.EncodeToString(raw))
		fmt.Fprintln(out, entry.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().String("offset", "", "New byte offset into the stripe content (required)")
	if err := encodeCmd.MarkFlagRequired("offset"); err != nil {
		panic(err)
	}
}
