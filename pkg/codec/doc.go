// Package codec decodes the on-disk records of a Traffic Server style cache:
// the packed directory entry and the fixed object header.
//
// The package performs no I/O. Callers read raw bytes from a cache volume
// (or a dump of one) and hand complete, correctly sized buffers to the
// codecs. Buffers are not retained after a call returns.
//
// # Directory Entry Format
//
// A directory entry is 10 bytes, read as five little-endian uint16 words:
//
//	w0: offset bits 0-15
//	w1: offset bits 16-23 (0x00FF) | size class (0x3F00 >> 10) | big (0xC000 >> 14)
//	w2: tag (0x0FFF) | phase (0x1000) | head (0x2000) | pinned (0x4000) | token (0x8000)
//	w3: next entry in the bucket chain
//	w4: offset bits 24-39
//
// The stored offset counts 512-byte cache blocks starting at 1, so 0 marks
// an unused slot. The approximate length is
//
//	(sizeClass + 1) * 2^(9 + 3*big)
//
// and is an upper bound on the fragment's real size.
//
// # Object Header Format
//
// Every fragment starts with a 72 byte header in host byte order:
//
//	[Magic(4)][Length(4)][TotalLength(8)][Keys(4*8)][HLen(4)]
//	[DocType(1) VersionMajor(1) VersionMinor(1) Unused(1)]
//	[SyncSerial(4)][WriteSerial(4)][Pinned(4)][Checksum(4)]
//
// Magic must be HeaderMagic. The engine overwrites the magic of headers it
// detects as corrupt with CorruptMagic. The checksum is exposed but not
// verified.
//
// # Usage
//
//	entry, err := codec.DecodeDirEntry(raw[:codec.DirEntrySize])
//	if err != nil {
//	    return err
//	}
//	if !entry.IsValid() {
//	    return nil // unused slot
//	}
//
//	hdr, err := codec.DecodeHeader(content[entry.Offset : entry.Offset+codec.HeaderSize])
//	var corrupt *codec.CorruptedRecordError
//	if errors.As(err, &corrupt) {
//	    // the engine flagged this fragment
//	}
//
// # Error Handling
//
// Errors are typed and meant for errors.As:
//   - *FormatError: buffer length does not match the record size
//   - *RangeError: SetOffset given an unaligned or too large offset
//   - *InvalidMagicError: buffer is not positioned at a header
//   - *CorruptedRecordError: header carries the corruption marker
//
// # Thread Safety
//
// Codecs hold no state and are safe for concurrent use. Decoded values are
// plain values; the only way to change an entry is SetOffset on its raw
// bytes followed by a fresh decode.
package codec
