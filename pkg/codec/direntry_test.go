package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordsToBytes(w ...uint16) []byte {
	buf := make([]byte, 2*len(w))
	for i, v := range w {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return buf
}

func TestDirEntryCodec_DecodeWrongSize(t *testing.T) {
	codec := NewDirEntryCodec()

	for _, n := range []int{0, 1, 9, 11, 20, 72} {
		_, err := codec.Decode(make([]byte, n))
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("len %d: expected *FormatError, got %v", n, err)
		}
		if fe.Want != DirEntrySize || fe.Got != n {
			t.Errorf("len %d: bad error fields %+v", n, fe)
		}
	}
}

func TestDirEntryCodec_DecodeVector(t *testing.T) {
	raw := []byte{0x02, 0x00, 0x00, 0x04, 0x00, 0x30, 0x05, 0x00, 0x00, 0x00}
	require.Equal(t, wordsToBytes(0x0002, 0x0400, 0x3000, 0x0005, 0x0000), raw)

	e, err := DecodeDirEntry(raw)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), e.RawOffset)
	assert.Equal(t, uint64(512), e.Offset)
	assert.Equal(t, uint8(1), e.SizeClass)
	assert.Equal(t, uint8(0), e.Big)
	assert.Equal(t, uint64(1024), e.Length)
	assert.True(t, e.Head)
	assert.True(t, e.Phase)
	assert.False(t, e.Pinned)
	assert.False(t, e.Token)
	assert.Equal(t, uint16(0), e.Tag)
	assert.Equal(t, uint16(5), e.Next)
	assert.True(t, e.IsValid())
}

func TestDirEntryCodec_DecodeFields(t *testing.T) {
	testCases := []struct {
		name  string
		words [5]uint16
		check func(t *testing.T, e DirEntry)
	}{
		{
			name:  "head with full tag",
			words: [5]uint16{0xA000, 0, 0x2FFF, 0, 0},
			check: func(t *testing.T, e DirEntry) {
				assert.Equal(t, uint64(0xA000), e.RawOffset)
				assert.Equal(t, uint64(0x9FFF*512), e.Offset)
				assert.Equal(t, uint64(512), e.Length)
				assert.Equal(t, uint16(0xFFF), e.Tag)
				assert.True(t, e.Head)
				assert.False(t, e.Phase)
				assert.False(t, e.Pinned)
				assert.False(t, e.Token)
				assert.Equal(t, uint16(0), e.Next)
			},
		},
		{
			name:  "all flags",
			words: [5]uint16{1, 0, 0xF123, 0xFFFF, 0},
			check: func(t *testing.T, e DirEntry) {
				assert.True(t, e.Token)
				assert.True(t, e.Pinned)
				assert.True(t, e.Head)
				assert.True(t, e.Phase)
				assert.Equal(t, uint16(0x123), e.Tag)
				assert.Equal(t, uint16(0xFFFF), e.Next)
			},
		},
		{
			name:  "offset spread over three words",
			words: [5]uint16{0x3456, 0x0012, 0, 0, 0x0001},
			check: func(t *testing.T, e DirEntry) {
				assert.Equal(t, uint64(0x01123456), e.RawOffset)
				assert.Equal(t, uint64(0x01123455)*512, e.Offset)
			},
		},
		{
			name:  "high word above 32 bits",
			words: [5]uint16{0, 0, 0, 0, 0xFFFF},
			check: func(t *testing.T, e DirEntry) {
				assert.Equal(t, uint64(0xFFFF)<<24, e.RawOffset)
			},
		},
		{
			name:  "big multiplier",
			words: [5]uint16{1, 0xC000, 0, 0, 0},
			check: func(t *testing.T, e DirEntry) {
				assert.Equal(t, uint8(3), e.Big)
				assert.Equal(t, uint8(0), e.SizeClass)
				assert.Equal(t, uint64(262144), e.Length)
			},
		},
		{
			name:  "size class ignores bits 8 and 9",
			words: [5]uint16{1, 0x3F00, 0, 0, 0},
			check: func(t *testing.T, e DirEntry) {
				assert.Equal(t, uint8(15), e.SizeClass)
				assert.Equal(t, uint8(0), e.Big)
				assert.Equal(t, uint64(16*512), e.Length)
			},
		},
		{
			name:  "unused slot",
			words: [5]uint16{0, 0xFF00, 0xFFFF, 7, 0},
			check: func(t *testing.T, e DirEntry) {
				assert.False(t, e.IsValid())
				assert.Equal(t, uint64(0), e.RawOffset)
				assert.Equal(t, uint64(0), e.Offset)
				assert.Equal(t, uint16(7), e.Next)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := tc.words
			e, err := DecodeDirEntry(wordsToBytes(w[0], w[1], w[2], w[3], w[4]))
			require.NoError(t, err)
			tc.check(t, e)
			assert.Equal(t, tc.words, e.Words())
		})
	}
}

func TestDirEntryCodec_Deterministic(t *testing.T) {
	codec := NewDirEntryCodec()
	raw := wordsToBytes(0xBEEF, 0x7A12, 0x9ABC, 0x0042, 0x0003)

	first, err := codec.Decode(raw)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := codec.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, raw, first.Bytes())
}

func TestDirEntryCodec_ValidityMatchesRawOffset(t *testing.T) {
	codec := NewDirEntryCodec()
	for _, w := range [][5]uint16{
		{0, 0, 0, 0, 0},
		{1, 0, 0, 0, 0},
		{0, 0x0001, 0, 0, 0},
		{0, 0xFF00, 0, 0, 0},
		{0, 0, 0, 0, 1},
		{0, 0, 0xFFFF, 0xFFFF, 0},
	} {
		e, err := codec.Decode(wordsToBytes(w[0], w[1], w[2], w[3], w[4]))
		require.NoError(t, err)
		assert.Equal(t, e.RawOffset > 0, codec.IsValid(e), "words %v", w)
		assert.Equal(t, e.Length, codec.ApproximateLength(e))
	}
}

func TestApproxSize(t *testing.T) {
	testCases := []struct {
		sizeClass uint8
		big       uint8
		want      uint64
	}{
		{0, 0, 512},
		{63, 0, 32768},
		{0, 3, 262144},
		{1, 1, 8192},
		{63, 3, 64 * 262144},
	}

	for _, tc := range testCases {
		if got := ApproxSize(tc.sizeClass, tc.big); got != tc.want {
			t.Errorf("ApproxSize(%d, %d) = %d, want %d", tc.sizeClass, tc.big, got, tc.want)
		}
	}
}

func TestDirEntryCodec_SetOffsetRoundTrip(t *testing.T) {
	codec := NewDirEntryCodec()
	offsets := []uint64{
		0,
		512,
		0xFFFF * 512,
		0x10000 * 512,
		0xFFFFFF * 512,
		0x1000000 * 512,
		1<<33 - 512,
	}
	for o := uint64(512 * 7); o < 1<<33; o = o*3 + 512 {
		offsets = append(offsets, o-o%512)
	}

	for _, offset := range offsets {
		raw := wordsToBytes(0x1111, 0xABCD, 0x5A5A, 0x00C3, 0x0000)
		before, err := codec.Decode(raw)
		require.NoError(t, err)

		require.NoError(t, codec.SetOffset(raw, offset), "offset %d", offset)

		after, err := codec.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, offset, after.Offset, "offset %d", offset)
		assert.True(t, after.IsValid())

		assert.Equal(t, before.SizeClass, after.SizeClass)
		assert.Equal(t, before.Big, after.Big)
		assert.Equal(t, before.Length, after.Length)
		assert.Equal(t, before.Tag, after.Tag)
		assert.Equal(t, before.Next, after.Next)
		assert.Equal(t, before.Token, after.Token)
		assert.Equal(t, before.Pinned, after.Pinned)
		assert.Equal(t, before.Head, after.Head)
		assert.Equal(t, before.Phase, after.Phase)
		assert.Equal(t, raw[3], byte(0xAB), "high byte of w1 must survive")
		assert.Equal(t, []byte{0x5A, 0x5A, 0xC3, 0x00}, raw[4:8])
	}
}

func TestDirEntryCodec_SetOffsetErrors(t *testing.T) {
	codec := NewDirEntryCodec()

	t.Run("unaligned offset", func(t *testing.T) {
		raw := wordsToBytes(1, 2, 3, 4, 5)
		orig := bytes.Clone(raw)
		err := codec.SetOffset(raw, 513)
		var re *RangeError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, uint64(513), re.Offset)
		assert.Equal(t, orig, raw, "buffer must not change on error")
	})

	t.Run("block count too large", func(t *testing.T) {
		raw := make([]byte, DirEntrySize)
		err := codec.SetOffset(raw, uint64(MaxBlockCount)*CacheBlockSize)
		var re *RangeError
		assert.True(t, errors.As(err, &re))
		assert.Equal(t, make([]byte, DirEntrySize), raw)
	})

	t.Run("largest block count", func(t *testing.T) {
		raw := make([]byte, DirEntrySize)
		offset := uint64(MaxBlockCount-1) * CacheBlockSize
		require.NoError(t, codec.SetOffset(raw, offset))
		e, err := codec.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, uint64(MaxBlockCount), e.RawOffset)
		assert.Equal(t, offset, e.Offset)
	})

	t.Run("wrong buffer size", func(t *testing.T) {
		err := SetDirEntryOffset(make([]byte, 8), 512)
		var fe *FormatError
		assert.True(t, errors.As(err, &fe))
	})
}

func TestDirEntry_Equal(t *testing.T) {
	base, err := DecodeDirEntry(wordsToBytes(10, 0x0400, 0x3123, 4, 0))
	require.NoError(t, err)

	sameButNext, _ := DecodeDirEntry(wordsToBytes(10, 0x0400, 0x3123, 9, 0))
	sameButSizeAndToken, _ := DecodeDirEntry(wordsToBytes(10, 0xC400, 0xB123, 4, 0))
	otherTag, _ := DecodeDirEntry(wordsToBytes(10, 0x0400, 0x3124, 4, 0))
	otherOffset, _ := DecodeDirEntry(wordsToBytes(11, 0x0400, 0x3123, 4, 0))
	otherPinned, _ := DecodeDirEntry(wordsToBytes(10, 0x0400, 0x7123, 4, 0))

	assert.True(t, base.Equal(sameButNext))
	assert.True(t, base.Equal(sameButSizeAndToken))
	assert.False(t, base.Equal(otherTag))
	assert.False(t, base.Equal(otherOffset))
	assert.False(t, base.Equal(otherPinned))
}

func TestDirEntry_InPhase(t *testing.T) {
	mk := func(raw uint16, phase bool) DirEntry {
		w2 := uint16(0)
		if phase {
			w2 = 0x1000
		}
		e, err := DecodeDirEntry(wordsToBytes(raw, 0, w2, 0, 0))
		require.NoError(t, err)
		return e
	}

	// limit is in blocks; RawOffset-1 is compared against it
	assert.True(t, mk(10, true).InPhase(true, 10))
	assert.False(t, mk(11, true).InPhase(true, 10))
	assert.True(t, mk(11, false).InPhase(true, 10))
	assert.False(t, mk(10, false).InPhase(true, 10))
	assert.False(t, mk(0, true).InPhase(true, 10))
}

func TestDirEntry_IsHeadFor(t *testing.T) {
	headPhase, _ := DecodeDirEntry(wordsToBytes(1, 0, 0x3000, 0, 0))
	headNoPhase, _ := DecodeDirEntry(wordsToBytes(1, 0, 0x2000, 0, 0))
	notHead, _ := DecodeDirEntry(wordsToBytes(1, 0, 0x1000, 0, 0))
	unused, _ := DecodeDirEntry(wordsToBytes(0, 0, 0x3000, 0, 0))

	assert.True(t, headPhase.IsHeadFor(true))
	assert.False(t, headPhase.IsHeadFor(false))
	assert.True(t, headNoPhase.IsHeadFor(false))
	assert.False(t, notHead.IsHeadFor(true))
	assert.False(t, unused.IsHeadFor(true))
}

func TestDirEntry_Format(t *testing.T) {
	e, err := DecodeDirEntry([]byte{0x02, 0x00, 0x00, 0x04, 0x00, 0x30, 0x05, 0x00, 0x00, 0x00})
	require.NoError(t, err)

	assert.Equal(t, "1024B -> 0x200", e.Summary())
	assert.Equal(t,
		"DirEntry(length=1024, offset=0x200, next=5, phase=true, head=true, pinned=false, token=false, tag=0x0)",
		e.String())
}

func TestCodecs_ConcurrentIndependentBuffers(t *testing.T) {
	hdr := sampleHeader().Encode()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			buf := wordsToBytes(0, 0xC700, uint16(0x2000|g), uint16(g), 0)
			own := append([]byte(nil), hdr...)
			for i := 0; i < 500; i++ {
				offset := uint64(g*1000+i) * CacheBlockSize
				if err := SetDirEntryOffset(buf, offset); err != nil {
					t.Errorf("goroutine %d: set offset: %v", g, err)
					return
				}
				e, err := DecodeDirEntry(buf)
				if err != nil || e.Offset != offset || e.Tag != uint16(g) || e.Next != uint16(g) {
					t.Errorf("goroutine %d: got %+v, %v for offset %d", g, e, err, offset)
					return
				}
				h, err := DecodeHeader(own)
				if err != nil || h.Keys != sampleHeader().Keys {
					t.Errorf("goroutine %d: header %+v, %v", g, h, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}
