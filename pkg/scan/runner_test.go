package scan

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ssargent/cachescan/pkg/catalog"
	"github.com/ssargent/cachescan/pkg/codec"
	"github.com/ssargent/cachescan/pkg/store"
)

func entry(t *testing.T, w ...uint16) codec.DirEntry {
	t.Helper()
	buf := make([]byte, codec.DirEntrySize)
	for i, v := range w {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	e, err := codec.DecodeDirEntry(buf)
	require.NoError(t, err)
	return e
}

// sliceIterator replays a fixed list of slots
type sliceIterator struct {
	slots []store.Slot
	pos   int
	err   error
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.slots) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Slot() *store.Slot { return &it.slots[it.pos-1] }
func (it *sliceIterator) Err() error        { return it.err }
func (it *sliceIterator) Close() error      { return nil }

// headerMap answers ReadHeader by raw block number
type headerMap struct {
	headers map[uint64]codec.Header
	errs    map[uint64]error
}

func (m *headerMap) ReadHeader(e codec.DirEntry) (codec.Header, error) {
	if err, ok := m.errs[e.RawOffset]; ok {
		return codec.Header{}, err
	}
	return m.headers[e.RawOffset], nil
}

type countingObserver struct {
	mu       sync.Mutex
	slots    int
	valid    int
	outcomes map[catalog.Outcome]int
}

func (o *countingObserver) ObserveSlot(valid bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.slots++
	if valid {
		o.valid++
	}
}

func (o *countingObserver) ObserveOutcome(outcome catalog.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[catalog.Outcome]int)
	}
	o.outcomes[outcome]++
}

type memRecorder struct {
	mu       sync.Mutex
	findings map[string][]catalog.Finding
	err      error
}

func (m *memRecorder) PutFinding(scanID string, f catalog.Finding) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findings == nil {
		m.findings = make(map[string][]catalog.Finding)
	}
	m.findings[scanID] = append(m.findings[scanID], f)
	return nil
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want catalog.Outcome
		ok   bool
	}{
		{"nil", nil, catalog.OutcomeOK, true},
		{"magic", &codec.InvalidMagicError{Magic: 1}, catalog.OutcomeInvalidMagic, true},
		{"corrupt", &codec.CorruptedRecordError{Magic: codec.CorruptMagic}, catalog.OutcomeCorrupt, true},
		{"format", &codec.FormatError{Record: "object header", Want: 72, Got: 3}, catalog.OutcomeFormat, true},
		{"wrapped short read", errors.Wrap(store.ErrShortRead, "read header"), catalog.OutcomeShortRead, true},
		{"wrapped magic", fmt.Errorf("slot 3: %w", &codec.InvalidMagicError{}), catalog.OutcomeInvalidMagic, true},
		{"io failure", errors.New("disk on fire"), "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Classify(tc.err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRunner_Selects(t *testing.T) {
	head := entry(t, 1, 0, 0x3000) // head, phase set
	headOld := entry(t, 1, 0, 0x2000)
	body := entry(t, 1, 0, 0x1000)
	unused := entry(t, 0, 0, 0x3000)

	all := NewRunner(&sliceIterator{}, &headerMap{}, Options{}, nil)
	assert.True(t, all.Selects(head))
	assert.True(t, all.Selects(body))
	assert.False(t, all.Selects(unused))

	heads := NewRunner(&sliceIterator{}, &headerMap{}, Options{HeadsOnly: true, StripePhase: true}, nil)
	assert.True(t, heads.Selects(head))
	assert.False(t, heads.Selects(headOld))
	assert.False(t, heads.Selects(body))

	// block 0 is below a limit of 4, which is valid only in the current phase
	limited := NewRunner(&sliceIterator{}, &headerMap{}, Options{StripePhase: false, ValidityLimit: 4}, nil)
	assert.True(t, limited.Selects(headOld))
	assert.False(t, limited.Selects(head))
}

func TestRunner_Run(t *testing.T) {
	slots := []store.Slot{
		{Index: 0, Entry: entry(t, 1, 0, 0x2000)},
		{Index: 1, Entry: entry(t)},
		{Index: 2, Entry: entry(t, 2, 0, 0x2000)},
		{Index: 3, Entry: entry(t, 3, 0, 0x2000)},
		{Index: 4, Entry: entry(t, 4, 0, 0x2000)},
		{Index: 5, Entry: entry(t, 5, 0, 0x2000)},
	}
	key := [4]uint64{11, 22, 33, 44}
	headers := &headerMap{
		headers: map[uint64]codec.Header{
			1: {Magic: codec.HeaderMagic, Keys: key, VersionMajor: 24, VersionMinor: 1, HLen: 10},
			5: {Magic: codec.HeaderMagic, Keys: key},
		},
		errs: map[uint64]error{
			2: &codec.InvalidMagicError{Magic: 0},
			3: &codec.CorruptedRecordError{Magic: codec.CorruptMagic},
			4: errors.Wrap(store.ErrShortRead, "read header"),
		},
	}
	observer := &countingObserver{}
	recorder := &memRecorder{}

	runner := NewRunner(&sliceIterator{slots: slots}, headers, Options{Workers: 3}, zaptest.NewLogger(t)).
		WithObserver(observer).
		WithRecorder(recorder, "scan-1")

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(6), result.Stats.Slots)
	assert.Equal(t, int64(5), result.Stats.Valid)
	assert.Equal(t, int64(5), result.Stats.Selected)
	assert.Equal(t, int64(2), result.Stats.Outcomes[catalog.OutcomeOK])
	assert.Equal(t, int64(1), result.Stats.Outcomes[catalog.OutcomeInvalidMagic])
	assert.Equal(t, int64(1), result.Stats.Outcomes[catalog.OutcomeCorrupt])
	assert.Equal(t, int64(1), result.Stats.Outcomes[catalog.OutcomeShortRead])

	require.Len(t, result.Findings, 5)
	var order []int64
	for _, f := range result.Findings {
		order = append(order, f.Slot)
	}
	assert.Equal(t, []int64{0, 2, 3, 4, 5}, order)

	first := result.Findings[0]
	assert.Equal(t, catalog.OutcomeOK, first.Outcome)
	assert.Equal(t, "24.1", first.Version)
	assert.Equal(t, key, first.Keys)
	assert.Equal(t, uint32(10), first.HeaderLength)
	assert.Contains(t, result.Findings[1].Error, "bad header magic")

	assert.Equal(t, 6, observer.slots)
	assert.Equal(t, 5, observer.valid)
	assert.Equal(t, 2, observer.outcomes[catalog.OutcomeOK])

	assert.Len(t, recorder.findings["scan-1"], 5)

	dups := runner.Keys().Duplicates()
	assert.Equal(t, []int64{0, 5}, dups[store.ObjectKey{11, 22}])
}

func TestRunner_AbortsOnIOError(t *testing.T) {
	slots := []store.Slot{{Index: 0, Entry: entry(t, 1)}}
	headers := &headerMap{errs: map[uint64]error{1: errors.New("device gone")}}

	_, err := NewRunner(&sliceIterator{slots: slots}, headers, Options{Workers: 2}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device gone")
}

func TestRunner_AbortsOnIteratorError(t *testing.T) {
	it := &sliceIterator{err: errors.Wrap(store.ErrShortRead, "slot 9")}

	_, err := NewRunner(it, &headerMap{}, DefaultOptions(), nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrShortRead))
}

func TestRunner_AbortsOnRecorderError(t *testing.T) {
	slots := []store.Slot{{Index: 0, Entry: entry(t, 1)}}
	headers := &headerMap{headers: map[uint64]codec.Header{1: {Magic: codec.HeaderMagic}}}

	_, err := NewRunner(&sliceIterator{slots: slots}, headers, DefaultOptions(), nil).
		WithRecorder(&memRecorder{err: errors.New("catalog closed")}, "x").
		Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record slot 0")
}

func TestRunner_Cancelled(t *testing.T) {
	var slots []store.Slot
	for i := 0; i < 100; i++ {
		slots = append(slots, store.Slot{Index: int64(i), Entry: entry(t, uint16(i+1))})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(&sliceIterator{slots: slots}, &headerMap{}, DefaultOptions(), nil).Run(ctx)
	// workers may drain a few slots before the producer notices
	if err != nil {
		assert.True(t, errors.Is(err, context.Canceled))
	}
}

func TestRunner_FilesAndCatalog(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "scan_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	const contentOffset = 4096

	// slot 0 -> block 1 (offset 0), slot 1 unused, slot 2 -> block 3 (offset 1024)
	var dump []byte
	for _, raw := range []uint16{1, 0, 3} {
		buf := make([]byte, codec.DirEntrySize)
		binary.LittleEndian.PutUint16(buf, raw)
		dump = append(dump, buf...)
	}
	dirPath := filepath.Join(tmpDir, "dir.dump")
	require.NoError(t, os.WriteFile(dirPath, dump, 0600))

	content := make([]byte, contentOffset+4096)
	hdr := codec.Header{Magic: codec.HeaderMagic, Length: codec.HeaderSize, Keys: [4]uint64{7, 8}}
	copy(content[contentOffset:], hdr.Encode())
	contentPath := filepath.Join(tmpDir, "content.img")
	require.NoError(t, os.WriteFile(contentPath, content, 0600))

	dirReader, err := store.NewDirReader(store.DirReaderConfig{FilePath: dirPath})
	require.NoError(t, err)
	defer dirReader.Close()

	fragments := store.NewFragmentReaderFrom(bytes.NewReader(content), contentOffset)

	cat, err := catalog.Open(filepath.Join(tmpDir, "catalog"), catalog.Options{})
	require.NoError(t, err)
	defer cat.Close()

	scanRec, err := cat.NewScan(dirPath, contentPath)
	require.NoError(t, err)

	result, err := NewRunner(dirReader.Iterator(), fragments, DefaultOptions(), zaptest.NewLogger(t)).
		WithRecorder(cat, scanRec.ID).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Stats.Slots)
	assert.Equal(t, int64(1), result.Stats.Outcomes[catalog.OutcomeOK])
	assert.Equal(t, int64(1), result.Stats.Outcomes[catalog.OutcomeInvalidMagic])

	stored, err := cat.Findings(scanRec.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	refs, err := cat.LookupKey(7, 8)
	require.NoError(t, err)
	assert.Equal(t, []catalog.KeyRef{{ScanID: scanRec.ID, Slot: 0}}, refs)
}
