package codec

import "fmt"

// FormatError reports a buffer whose length does not match the record size.
type FormatError struct {
	Record string // "directory entry" or "object header"
	Want   int
	Got    int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("codec: %s needs %d bytes, got %d", e.Record, e.Want, e.Got)
}

// RangeError reports an offset that cannot be stored in a directory entry.
type RangeError struct {
	Offset uint64
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("codec: offset 0x%X out of range: %s", e.Offset, e.Reason)
}

// InvalidMagicError means the buffer is not positioned at an object header.
type InvalidMagicError struct {
	Magic uint32
}

func (e *InvalidMagicError) Error() string {
	return fmt.Sprintf("codec: bad header magic 0x%08X, want 0x%08X", e.Magic, HeaderMagic)
}

// CorruptedRecordError means the engine itself marked the header corrupt.
type CorruptedRecordError struct {
	Magic uint32
}

func (e *CorruptedRecordError) Error() string {
	return fmt.Sprintf("codec: header marked corrupt (magic 0x%08X)", e.Magic)
}
