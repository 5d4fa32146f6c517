package store

import (
	"github.com/ssargent/cachescan/pkg/codec"
)

// Slot is one decoded position of a directory dump
type Slot struct {
	Index int64 // Slot number within the dump
	Entry codec.DirEntry
}

// Fragment is an object header together with the bytes that follow it
type Fragment struct {
	Header    codec.Header
	Body      []byte // Raw alternates body, HLen bytes, not interpreted
	Data      []byte // Fragment payload
	Truncated bool   // Fewer bytes were available than the header declares
}

// DirReaderConfig holds configuration for the directory reader
type DirReaderConfig struct {
	FilePath   string // Path to a raw directory dump
	StartIndex int64  // Slot to start reading from
}

// FragmentReaderConfig holds configuration for the fragment reader
type FragmentReaderConfig struct {
	FilePath      string // Path to the stripe content (or a full span image)
	ContentOffset int64  // Byte position of the stripe content within FilePath
}

// SlotIterator provides streaming access to directory slots
type SlotIterator interface {
	Next() bool
	Slot() *Slot
	Err() error
	Close() error
}

// Errors
var (
	ErrShortRead  = &StoreError{"short read"}
	ErrUnusedSlot = &StoreError{"directory entry is not in use"}
)

// StoreError represents a buffer source error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
