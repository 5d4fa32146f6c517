package codec

import (
	"fmt"
	"strings"
)

// String returns a verbose description of the entry.
func (e DirEntry) String() string {
	return fmt.Sprintf("DirEntry(length=%d, offset=0x%X, next=%d, phase=%t, head=%t, pinned=%t, token=%t, tag=0x%X)",
		e.Length, e.Offset, e.Next, e.Phase, e.Head, e.Pinned, e.Token, e.Tag)
}

// Summary returns a one-line "<length>B -> 0x<offset>" form.
func (e DirEntry) Summary() string {
	return fmt.Sprintf("%dB -> 0x%X", e.Length, e.Offset)
}

// String returns a verbose description of the header.
func (h Header) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Header(length=%d, totalLength=%d, keys=[", h.Length, h.TotalLength)
	for i, k := range h.Keys {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%016x", k)
	}
	fmt.Fprintf(&b, "], hlen=%d, docType=%d, version=%s, syncSerial=%d, writeSerial=%d, pinned=%d, checksum=0x%08X)",
		h.HLen, h.DocType, h.Version(), h.SyncSerial, h.WriteSerial, h.Pinned, h.Checksum)
	return b.String()
}
