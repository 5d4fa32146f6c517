package codec

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed object header that precedes every fragment on disk.
//
// The header is read in host byte order: the engine writes it with its
// native layout and the host reading it must share that byte order.
type Header struct {
	Magic        uint32
	Length       uint32 // fragment length including this header and the alternates body
	TotalLength  uint64 // length of the whole object across fragments
	Keys         [4]uint64
	HLen         uint32 // length of the alternates body following the header
	DocType      uint8
	VersionMajor uint8
	VersionMinor uint8
	Unused       uint8
	SyncSerial   uint32
	WriteSerial  uint32
	Pinned       uint32
	Checksum     uint32 // exposed as stored, never verified here
}

// HeaderCodec decodes object headers. The zero value is ready to use and
// safe for concurrent use.
type HeaderCodec struct{}

// NewHeaderCodec creates a new object header codec
func NewHeaderCodec() *HeaderCodec {
	return &HeaderCodec{}
}

// Decode decodes exactly HeaderSize bytes into a Header.
//
// The length check runs before the magic checks. A corrupt-marked header
// yields *CorruptedRecordError; any other unexpected magic yields
// *InvalidMagicError.
func (c *HeaderCodec) Decode(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, &FormatError{Record: "object header", Want: HeaderSize, Got: len(buf)}
	}

	ne := binary.NativeEndian
	magic := ne.Uint32(buf[hdrMagicOff:])
	switch magic {
	case HeaderMagic:
	case CorruptMagic:
		return Header{}, &CorruptedRecordError{Magic: magic}
	default:
		return Header{}, &InvalidMagicError{Magic: magic}
	}

	packed := ne.Uint32(buf[hdrPackedOff:])
	h := Header{
		Magic:        magic,
		Length:       ne.Uint32(buf[hdrLengthOff:]),
		TotalLength:  ne.Uint64(buf[hdrTotalLengthOff:]),
		HLen:         ne.Uint32(buf[hdrHLenOff:]),
		DocType:      uint8(packed),
		VersionMajor: uint8(packed >> 8),
		VersionMinor: uint8(packed >> 16),
		Unused:       uint8(packed >> 24),
		SyncSerial:   ne.Uint32(buf[hdrSyncSerialOff:]),
		WriteSerial:  ne.Uint32(buf[hdrWriteSerialOff:]),
		Pinned:       ne.Uint32(buf[hdrPinnedOff:]),
		Checksum:     ne.Uint32(buf[hdrChecksumOff:]),
	}
	for i := range h.Keys {
		h.Keys[i] = ne.Uint64(buf[hdrKeysOff+8*i:])
	}
	return h, nil
}

var defaultHeaderCodec HeaderCodec

// DecodeHeader decodes buf with the default codec.
func DecodeHeader(buf []byte) (Header, error) {
	return defaultHeaderCodec.Decode(buf)
}

// Version returns the cache format version as "major.minor".
func (h Header) Version() string {
	return fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)
}

// HasAlternates reports whether an alternates body follows the header.
// Only the first fragment of an object carries one.
func (h Header) HasAlternates() bool {
	return h.HLen > 0
}

// BodyRange returns the fragment-relative byte range of the alternates body.
func (h Header) BodyRange() (start, end uint64) {
	return HeaderSize, HeaderSize + uint64(h.HLen)
}

// DataLength returns the payload size of this fragment, or 0 when the
// declared lengths do not leave room for one.
func (h Header) DataLength() uint64 {
	overhead := uint64(HeaderSize) + uint64(h.HLen)
	if uint64(h.Length) <= overhead {
		return 0
	}
	return uint64(h.Length) - overhead
}

// Encode writes h into a HeaderSize buffer in host byte order. It exists for
// tooling and tests that need to fabricate headers; Magic is written as is.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	ne := binary.NativeEndian
	ne.PutUint32(buf[hdrMagicOff:], h.Magic)
	ne.PutUint32(buf[hdrLengthOff:], h.Length)
	ne.PutUint64(buf[hdrTotalLengthOff:], h.TotalLength)
	for i, k := range h.Keys {
		ne.PutUint64(buf[hdrKeysOff+8*i:], k)
	}
	ne.PutUint32(buf[hdrHLenOff:], h.HLen)
	ne.PutUint32(buf[hdrPackedOff:],
		uint32(h.DocType)|uint32(h.VersionMajor)<<8|uint32(h.VersionMinor)<<16|uint32(h.Unused)<<24)
	ne.PutUint32(buf[hdrSyncSerialOff:], h.SyncSerial)
	ne.PutUint32(buf[hdrWriteSerialOff:], h.WriteSerial)
	ne.PutUint32(buf[hdrPinnedOff:], h.Pinned)
	ne.PutUint32(buf[hdrChecksumOff:], h.Checksum)
	return buf
}
