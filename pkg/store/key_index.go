package store

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// ObjectKey is the first-key pair of an object header (Keys[0], Keys[1])
type ObjectKey [2]uint64

// ParseObjectKey parses the 32 hex digit form produced by String
func ParseObjectKey(s string) (ObjectKey, error) {
	if len(s) != 32 {
		return ObjectKey{}, fmt.Errorf("object key must be 32 hex digits, got %d", len(s))
	}
	var k ObjectKey
	for i := range k {
		v, err := strconv.ParseUint(s[i*16:(i+1)*16], 16, 64)
		if err != nil {
			return ObjectKey{}, fmt.Errorf("invalid object key %q", s)
		}
		k[i] = v
	}
	return k, nil
}

func (k ObjectKey) String() string {
	return fmt.Sprintf("%016x%016x", k[0], k[1])
}

// MarshalText lets keys be used as JSON object names
func (k ObjectKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText is the inverse of MarshalText
func (k *ObjectKey) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KeyIndex maps object keys to the directory slots whose headers carry them.
// A key seen in more than one slot usually means an earlier copy survived
// alongside a rewrite.
type KeyIndex struct {
	entries map[ObjectKey][]int64
	mutex   sync.RWMutex
}

// NewKeyIndex creates a new key index
func NewKeyIndex() *KeyIndex {
	return &KeyIndex{
		entries: make(map[ObjectKey][]int64),
	}
}

// Add records that slot holds a header with key
func (idx *KeyIndex) Add(key ObjectKey, slot int64) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries[key] = append(idx.entries[key], slot)
}

// Get returns the slots recorded for key in ascending order
func (idx *KeyIndex) Get(key ObjectKey) ([]int64, bool) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	slots, exists := idx.entries[key]
	if !exists {
		return nil, false
	}
	out := append([]int64(nil), slots...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, true
}

// Size returns the number of distinct keys in the index
func (idx *KeyIndex) Size() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return len(idx.entries)
}

// Duplicates returns every key recorded in more than one slot
func (idx *KeyIndex) Duplicates() map[ObjectKey][]int64 {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	dups := make(map[ObjectKey][]int64)
	for k, slots := range idx.entries {
		if len(slots) > 1 {
			out := append([]int64(nil), slots...)
			sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
			dups[k] = out
		}
	}
	return dups
}

// Clear removes all entries from the index
func (idx *KeyIndex) Clear() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = make(map[ObjectKey][]int64)
}
