package codec

import (
	"encoding/binary"
)

// DirEntry is a decoded directory entry. It locates the first fragment of a
// cached object within a stripe's content region.
//
// Word layout (little-endian uint16 words w0..w4):
//
//	w0  offset bits 0-15
//	w1  offset bits 16-23 | size class | big
//	w2  tag(12) | phase | head | pinned | token
//	w3  next
//	w4  offset bits 24-39
type DirEntry struct {
	RawOffset uint64 // 1-based count of cache blocks, 0 for an unused slot
	Offset    uint64 // byte offset into the stripe content, 0 for an unused slot
	SizeClass uint8
	Big       uint8
	Length    uint64 // upper bound on the fragment length in bytes
	Token     bool
	Pinned    bool
	Head      bool
	Phase     bool
	Tag       uint16
	Next      uint16 // segment-relative index of the next entry in the bucket, 0 ends the chain

	words [5]uint16
}

// DirEntryCodec decodes directory entries and re-encodes their offset.
// The zero value is ready to use and safe for concurrent use.
type DirEntryCodec struct{}

// NewDirEntryCodec creates a new directory entry codec
func NewDirEntryCodec() *DirEntryCodec {
	return &DirEntryCodec{}
}

// Decode decodes exactly DirEntrySize bytes into a DirEntry.
// Any bit pattern is a legal entry; only the length is checked.
func (c *DirEntryCodec) Decode(buf []byte) (DirEntry, error) {
	if len(buf) != DirEntrySize {
		return DirEntry{}, &FormatError{Record: "directory entry", Want: DirEntrySize, Got: len(buf)}
	}

	var w [5]uint16
	for i := range w {
		w[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}
	return entryFromWords(w), nil
}

// SetOffset rewrites the offset bits of an encoded entry in place so that it
// points at the given byte offset. The size class, flags, tag and next
// pointer are left untouched.
func (c *DirEntryCodec) SetOffset(buf []byte, offset uint64) error {
	if len(buf) != DirEntrySize {
		return &FormatError{Record: "directory entry", Want: DirEntrySize, Got: len(buf)}
	}
	if offset%CacheBlockSize != 0 {
		return &RangeError{Offset: offset, Reason: "not a multiple of the cache block size"}
	}
	blocks := offset>>CacheBlockShift + 1
	if blocks > MaxBlockCount {
		return &RangeError{Offset: offset, Reason: "block count exceeds 32 bits"}
	}

	w1 := binary.LittleEndian.Uint16(buf[2:])
	binary.LittleEndian.PutUint16(buf[0:], uint16(blocks))
	binary.LittleEndian.PutUint16(buf[2:], uint16((blocks>>16)&offsetMidMask)|(w1&^offsetMidMask))
	binary.LittleEndian.PutUint16(buf[8:], uint16(blocks>>24))
	return nil
}

// IsValid reports whether the entry is in use.
func (c *DirEntryCodec) IsValid(e DirEntry) bool {
	return e.IsValid()
}

// ApproximateLength returns the entry's length, an upper bound on the
// fragment size, never an exact one.
func (c *DirEntryCodec) ApproximateLength(e DirEntry) uint64 {
	return e.Length
}

var defaultDirEntryCodec DirEntryCodec

// DecodeDirEntry decodes buf with the default codec.
func DecodeDirEntry(buf []byte) (DirEntry, error) {
	return defaultDirEntryCodec.Decode(buf)
}

// SetDirEntryOffset rewrites the offset of the encoded entry in buf.
func SetDirEntryOffset(buf []byte, offset uint64) error {
	return defaultDirEntryCodec.SetOffset(buf, offset)
}

// ApproxSize computes the approximate length encoded by a size class and
// big multiplier: (sizeClass+1) * 2^(9+3*big).
func ApproxSize(sizeClass, big uint8) uint64 {
	return (uint64(sizeClass) + 1) << (CacheBlockShift + 3*uint(big))
}

func entryFromWords(w [5]uint16) DirEntry {
	raw := uint64(w[0]) | uint64(w[1]&offsetMidMask)<<16 | uint64(w[4])<<24

	e := DirEntry{
		RawOffset: raw,
		SizeClass: uint8((w[1] & sizeMask) >> 10),
		Big:       uint8((w[1] & bigMask) >> 14),
		Token:     w[2]&tokenBit != 0,
		Pinned:    w[2]&pinnedBit != 0,
		Head:      w[2]&headBit != 0,
		Phase:     w[2]&phaseBit != 0,
		Tag:       w[2] & tagMask,
		Next:      w[3],
		words:     w,
	}
	if raw > 0 {
		e.Offset = (raw - 1) << CacheBlockShift
	}
	e.Length = ApproxSize(e.SizeClass, e.Big)
	return e
}

// IsValid reports whether the entry is in use (RawOffset > 0).
func (e DirEntry) IsValid() bool {
	return e.RawOffset > 0
}

// ApproximateLength returns Length.
func (e DirEntry) ApproximateLength() uint64 {
	return e.Length
}

// Words returns the raw words the entry was decoded from.
func (e DirEntry) Words() [5]uint16 {
	return e.words
}

// Bytes re-emits the entry's encoded form.
func (e DirEntry) Bytes() []byte {
	buf := make([]byte, DirEntrySize)
	for i, w := range e.words {
		binary.LittleEndian.PutUint16(buf[i*2:], w)
	}
	return buf
}

// Equal reports whether two entries point at the same block with the same
// tag and head, pinned and phase flags. Next, Length and Token are ignored.
func (e DirEntry) Equal(other DirEntry) bool {
	return e.RawOffset == other.RawOffset &&
		e.Tag == other.Tag &&
		e.Head == other.Head &&
		e.Pinned == other.Pinned &&
		e.Phase == other.Phase
}

// InPhase checks the entry against the owning stripe's phase and validity
// limit (in cache blocks). Entries written in the stripe's current phase
// must sit below the limit; entries from the previous phase above it.
func (e DirEntry) InPhase(stripePhase bool, validityLimit uint64) bool {
	if !e.IsValid() {
		return false
	}
	if e.Phase == stripePhase {
		return e.RawOffset-1 < validityLimit
	}
	return e.RawOffset-1 >= validityLimit
}

// IsHeadFor reports whether the entry is a valid head written in the given
// stripe phase.
func (e DirEntry) IsHeadFor(stripePhase bool) bool {
	return e.IsValid() && e.Head && e.Phase == stripePhase
}
