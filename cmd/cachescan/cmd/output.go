package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ssargent/cachescan/pkg/catalog"
	"github.com/ssargent/cachescan/pkg/codec"
	"github.com/ssargent/cachescan/pkg/store"
)

func wantJSON(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}

func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// flagString renders the entry flags as a fixed four-letter field
func flagString(e codec.DirEntry) string {
	b := []byte("----")
	if e.Head {
		b[0] = 'H'
	}
	if e.Phase {
		b[1] = 'P'
	}
	if e.Pinned {
		b[2] = 'N'
	}
	if e.Token {
		b[3] = 'T'
	}
	return string(b)
}

// outputSlotsTable displays directory slots
func outputSlotsTable(w io.Writer, slots []store.Slot) error {
	if len(slots) == 0 {
		fmt.Fprintln(w, "No entries found")
		return nil
	}

	tw := newTable(w)
	defer tw.Flush()

	fmt.Fprintln(tw, "SLOT\tOFFSET\tLENGTH\tFLAGS\tTAG\tNEXT")
	for _, s := range slots {
		e := s.Entry
		if !e.IsValid() {
			fmt.Fprintf(tw, "%d\t-\t-\t----\t-\t%d\n", s.Index, e.Next)
			continue
		}
		fmt.Fprintf(tw, "%d\t0x%X\t%s\t%s\t0x%03X\t%d\n",
			s.Index, e.Offset, humanize.IBytes(e.Length), flagString(e), e.Tag, e.Next)
	}
	return nil
}

// outputHeaderTable displays a single object header
func outputHeaderTable(w io.Writer, h codec.Header) error {
	tw := newTable(w)
	defer tw.Flush()

	fmt.Fprintf(tw, "Magic:\t0x%08X\n", h.Magic)
	fmt.Fprintf(tw, "Version:\t%s\n", h.Version())
	fmt.Fprintf(tw, "Doc type:\t%d\n", h.DocType)
	fmt.Fprintf(tw, "Length:\t%s (%d)\n", humanize.IBytes(uint64(h.Length)), h.Length)
	fmt.Fprintf(tw, "Total length:\t%s (%d)\n", humanize.IBytes(h.TotalLength), h.TotalLength)
	fmt.Fprintf(tw, "Alternates:\t%s\n", humanize.IBytes(uint64(h.HLen)))
	fmt.Fprintf(tw, "Data:\t%s\n", humanize.IBytes(h.DataLength()))
	fmt.Fprintf(tw, "Keys:\t%016x %016x %016x %016x\n", h.Keys[0], h.Keys[1], h.Keys[2], h.Keys[3])
	fmt.Fprintf(tw, "Serials:\tsync=%d write=%d\n", h.SyncSerial, h.WriteSerial)
	fmt.Fprintf(tw, "Pinned:\t%d\n", h.Pinned)
	fmt.Fprintf(tw, "Checksum:\t0x%08X\n", h.Checksum)
	return nil
}

// outputStatsTable displays the counters of a scan
func outputStatsTable(w io.Writer, stats catalog.Stats) error {
	tw := newTable(w)
	defer tw.Flush()

	fmt.Fprintf(tw, "Slots:\t%s\n", humanize.Comma(stats.Slots))
	fmt.Fprintf(tw, "Valid:\t%s\n", humanize.Comma(stats.Valid))
	fmt.Fprintf(tw, "Selected:\t%s\n", humanize.Comma(stats.Selected))
	for _, o := range catalog.Outcomes {
		fmt.Fprintf(tw, "  %s:\t%s\n", o, humanize.Comma(stats.Outcomes[o]))
	}
	return nil
}

// outputFindingsTable displays scan findings
func outputFindingsTable(w io.Writer, findings []catalog.Finding) error {
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings")
		return nil
	}

	tw := newTable(w)
	defer tw.Flush()

	fmt.Fprintln(tw, "SLOT\tOFFSET\tOUTCOME\tVERSION\tKEY\tDETAIL")
	for _, f := range findings {
		key := "-"
		if f.Outcome == catalog.OutcomeOK {
			key = fmt.Sprintf("%016x%016x", f.Keys[0], f.Keys[1])
		}
		version := f.Version
		if version == "" {
			version = "-"
		}
		detail := f.Error
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		fmt.Fprintf(tw, "%d\t0x%X\t%s\t%s\t%s\t%s\n", f.Slot, f.Offset, f.Outcome, version, key, detail)
	}
	return nil
}

// outputScansTable displays recorded scans
func outputScansTable(w io.Writer, scans []catalog.Scan) error {
	if len(scans) == 0 {
		fmt.Fprintln(w, "No scans recorded")
		return nil
	}

	tw := newTable(w)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tSTATUS\tSTARTED\tSLOTS\tOK\tDIRECTORY")
	for _, s := range scans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Status,
			humanize.Time(s.StartedAt),
			humanize.Comma(s.Stats.Slots),
			humanize.Comma(s.Stats.Outcomes[catalog.OutcomeOK]),
			s.DirPath)
	}
	return nil
}

// outputDuplicates lists object keys found in more than one slot
func outputDuplicates(w io.Writer, dups map[store.ObjectKey][]int64) {
	if len(dups) == 0 {
		return
	}
	keys := make([]store.ObjectKey, 0, len(dups))
	for k := range dups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	fmt.Fprintf(w, "\n%d keys appear in more than one slot:\n", len(dups))
	for _, k := range keys {
		fmt.Fprintf(w, "  %016x%016x  slots %v\n", k[0], k[1], dups[k])
	}
}
