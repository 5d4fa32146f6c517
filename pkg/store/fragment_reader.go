package store

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ssargent/cachescan/pkg/codec"
)

// FragmentReader reads the fragment a directory entry points at. Entry
// offsets are relative to the stripe content, so the reader adds the
// configured content offset before every read.
type FragmentReader struct {
	src           io.ReaderAt
	closer        io.Closer
	codec         *codec.HeaderCodec
	contentOffset int64
}

// NewFragmentReader opens the content file named in config
func NewFragmentReader(config FragmentReaderConfig) (*FragmentReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, errors.Wrap(err, "open content file")
	}

	r := NewFragmentReaderFrom(file, config.ContentOffset)
	r.closer = file
	return r, nil
}

// NewFragmentReaderFrom reads fragments from an already open source
func NewFragmentReaderFrom(src io.ReaderAt, contentOffset int64) *FragmentReader {
	return &FragmentReader{
		src:           src,
		codec:         codec.NewHeaderCodec(),
		contentOffset: contentOffset,
	}
}

// ReadHeader reads and decodes the object header an entry points at
func (r *FragmentReader) ReadHeader(e codec.DirEntry) (codec.Header, error) {
	pos, err := r.position(e)
	if err != nil {
		return codec.Header{}, err
	}

	buf := make([]byte, codec.HeaderSize)
	n, err := r.src.ReadAt(buf, pos)
	if n < len(buf) {
		if err == nil || err == io.EOF {
			err = ErrShortRead
		}
		return codec.Header{}, errors.Wrapf(err, "read header at 0x%X", pos)
	}

	return r.codec.Decode(buf)
}

// ReadFragment reads up to the entry's approximate length and splits it into
// header, alternates body and payload. The body is returned raw.
func (r *FragmentReader) ReadFragment(e codec.DirEntry) (*Fragment, error) {
	pos, err := r.position(e)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, e.Length)
	n, err := r.src.ReadAt(buf, pos)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read fragment at 0x%X", pos)
	}
	if n < codec.HeaderSize {
		return nil, errors.Wrapf(ErrShortRead, "read fragment at 0x%X", pos)
	}
	buf = buf[:n]

	hdr, err := r.codec.Decode(buf[:codec.HeaderSize])
	if err != nil {
		return nil, err
	}

	frag := &Fragment{Header: hdr}
	end := uint64(hdr.Length)
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
		frag.Truncated = true
	}
	bodyStart, bodyEnd := hdr.BodyRange()
	if bodyEnd > end {
		bodyEnd = end
	}
	if bodyStart < bodyEnd {
		frag.Body = buf[bodyStart:bodyEnd]
	}
	if bodyEnd < end {
		frag.Data = buf[bodyEnd:end]
	}
	return frag, nil
}

// Close closes the content file if this reader opened it
func (r *FragmentReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *FragmentReader) position(e codec.DirEntry) (int64, error) {
	if !e.IsValid() {
		return 0, ErrUnusedSlot
	}
	return r.contentOffset + int64(e.Offset), nil
}
