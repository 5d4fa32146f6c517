package codec

// On-disk layout constants. These must match the cache engine bit for bit.
const (
	// DirEntrySize is the size of a packed directory entry: five uint16 words.
	DirEntrySize = 10

	// CacheBlockShift is log2 of CacheBlockSize.
	CacheBlockShift = 9

	// CacheBlockSize is the offset granularity of directory entries and the
	// base unit of the approximate length.
	CacheBlockSize = 1 << CacheBlockShift

	// MaxBlockCount is the largest block count SetOffset will encode.
	MaxBlockCount = 1<<32 - 1

	// HeaderSize is the fixed size of an object header:
	// magic(4) length(4) totalLength(8) keys(4*8) hlen(4) packed(4)
	// syncSerial(4) writeSerial(4) pinned(4) checksum(4).
	HeaderSize = 72

	// HeaderMagic marks a live object header.
	HeaderMagic uint32 = 0x5F129B13

	// CorruptMagic is written by the engine over headers it found corrupt.
	CorruptMagic uint32 = 0xDEADBABE
)

// Directory entry word masks.
const (
	offsetMidMask = 0x00FF // w1: offset bits 16-23
	sizeMask      = 0x3F00 // w1
	bigMask       = 0xC000 // w1
	tokenBit      = 0x8000 // w2
	pinnedBit     = 0x4000 // w2
	headBit       = 0x2000 // w2
	phaseBit      = 0x1000 // w2
	tagMask       = 0x0FFF // w2
)

// Object header field offsets.
const (
	hdrMagicOff       = 0
	hdrLengthOff      = 4
	hdrTotalLengthOff = 8
	hdrKeysOff        = 16
	hdrHLenOff        = 48
	hdrPackedOff      = 52
	hdrSyncSerialOff  = 56
	hdrWriteSerialOff = 60
	hdrPinnedOff      = 64
	hdrChecksumOff    = 68
)
