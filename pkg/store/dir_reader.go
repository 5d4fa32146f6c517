package store

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ssargent/cachescan/pkg/codec"
)

// DirReader provides sequential and random access to the slots of a raw
// directory dump: a file of consecutive codec.DirEntrySize records.
type DirReader struct {
	file   *os.File
	reader *bufio.Reader
	codec  *codec.DirEntryCodec
	index  int64
	config DirReaderConfig
}

// NewDirReader opens the dump named in config
func NewDirReader(config DirReaderConfig) (*DirReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, errors.Wrap(err, "open directory dump")
	}

	r := &DirReader{
		file:   file,
		codec:  codec.NewDirEntryCodec(),
		config: config,
	}
	if err := r.Seek(config.StartIndex); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// ReadNext reads the slot at the current position. It returns io.EOF at the
// end of the dump and ErrShortRead if the dump ends inside a slot.
func (r *DirReader) ReadNext() (*Slot, error) {
	buf := make([]byte, codec.DirEntrySize)
	if _, err := io.ReadFull(r.reader, buf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(ErrShortRead, "slot %d", r.index)
		}
		return nil, errors.Wrapf(err, "read slot %d", r.index)
	}

	entry, err := r.codec.Decode(buf)
	if err != nil {
		return nil, err
	}

	slot := &Slot{Index: r.index, Entry: entry}
	r.index++
	return slot, nil
}

// ReadAt reads a single slot without moving the sequential position
func (r *DirReader) ReadAt(index int64) (*Slot, error) {
	if index < 0 {
		return nil, errors.Errorf("negative slot index %d", index)
	}

	buf := make([]byte, codec.DirEntrySize)
	n, err := r.file.ReadAt(buf, index*codec.DirEntrySize)
	if n < len(buf) {
		if err == io.EOF && n == 0 {
			return nil, io.EOF
		}
		if err == nil || err == io.EOF {
			err = ErrShortRead
		}
		return nil, errors.Wrapf(err, "read slot %d", index)
	}

	entry, err := r.codec.Decode(buf)
	if err != nil {
		return nil, err
	}
	return &Slot{Index: index, Entry: entry}, nil
}

// Seek moves the sequential position to the given slot
func (r *DirReader) Seek(index int64) error {
	if index < 0 {
		return errors.Errorf("negative slot index %d", index)
	}
	if _, err := r.file.Seek(index*codec.DirEntrySize, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to slot %d", index)
	}

	r.reader = bufio.NewReader(r.file) // Recreate reader to clear buffer
	r.index = index
	return nil
}

// Index returns the slot number ReadNext will return next
func (r *DirReader) Index() int64 {
	return r.index
}

// Count returns the number of complete slots in the dump
func (r *DirReader) Count() (int64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat directory dump")
	}
	return info.Size() / codec.DirEntrySize, nil
}

// Iterator returns a streaming iterator starting at the current position
func (r *DirReader) Iterator() SlotIterator {
	return &dirSlotIterator{reader: r}
}

// Close closes the dump file
func (r *DirReader) Close() error {
	return r.file.Close()
}

// dirSlotIterator implements SlotIterator for streaming access
type dirSlotIterator struct {
	reader *DirReader
	slot   *Slot
	err    error
}

func (it *dirSlotIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.slot, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *dirSlotIterator) Slot() *Slot {
	return it.slot
}

// Err returns the error that stopped iteration, nil at a clean end
func (it *dirSlotIterator) Err() error {
	if it.err == io.EOF {
		return nil
	}
	return it.err
}

func (it *dirSlotIterator) Close() error {
	// Don't close the underlying reader as it's owned by the caller
	return nil
}
