// Package catalog persists scan results in a pebble database so that later
// runs and the HTTP service can look them up.
//
// Key layout:
//
//	scan/<ksuid>                       Scan as JSON
//	finding/<ksuid>/<slot>             Finding as JSON
//	key/<key0><key1>/<ksuid>/<slot>    empty, index by first object key
//
// Slots and keys are fixed-width hex so that byte order matches numeric order.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

const (
	scanPrefix    = "scan/"
	findingPrefix = "finding/"
	keyPrefix     = "key/"
)

// ErrNotFound is returned when a scan id is not in the catalog
var ErrNotFound = errors.New("not found")

// Catalog stores scans and their findings
type Catalog struct {
	db   *pebble.DB
	sync bool
}

// Options configure a catalog
type Options struct {
	// Sync makes every write durable before returning
	Sync bool
}

// Open opens or creates a catalog at path
func Open(path string, opts Options) (*Catalog, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	return &Catalog{db: db, sync: opts.Sync}, nil
}

func (c *Catalog) writeOpts() *pebble.WriteOptions {
	if c.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// NewScan records the start of a scan and returns it with a fresh id
func (c *Catalog) NewScan(dirPath, contentPath string) (*Scan, error) {
	id := ksuid.New()
	scan := &Scan{
		ID:        id.String(),
		DirPath:   dirPath,
		Content:   contentPath,
		Status:    StatusRunning,
		StartedAt: id.Time().UTC(),
		Stats:     Stats{Outcomes: map[Outcome]int64{}},
	}
	if err := c.putJSON(scanKey(scan.ID), scan); err != nil {
		return nil, err
	}
	return scan, nil
}

// FinishScan stores the final statistics of a scan and marks it complete
func (c *Catalog) FinishScan(scan *Scan) error {
	return c.closeScan(scan, StatusComplete, "")
}

// FailScan marks a scan as aborted by cause. Findings recorded before the
// failure are kept.
func (c *Catalog) FailScan(scan *Scan, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return c.closeScan(scan, StatusFailed, msg)
}

func (c *Catalog) closeScan(scan *Scan, status Status, msg string) error {
	if _, err := ksuid.Parse(scan.ID); err != nil {
		return errors.Wrapf(err, "scan id %q", scan.ID)
	}
	if scan.FinishedAt == nil {
		now := time.Now().UTC()
		scan.FinishedAt = &now
	}
	scan.Status = status
	scan.Error = msg
	return c.putJSON(scanKey(scan.ID), scan)
}

// PutFinding stores a finding and, for decoded headers, indexes its first key
func (c *Catalog) PutFinding(scanID string, f Finding) error {
	data, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encode finding")
	}

	batch := c.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(findingKey(scanID, f.Slot), data, nil); err != nil {
		return errors.Wrap(err, "stage finding")
	}
	if f.Outcome == OutcomeOK {
		if err := batch.Set(indexKey(f.Keys[0], f.Keys[1], scanID, f.Slot), nil, nil); err != nil {
			return errors.Wrap(err, "stage key index")
		}
	}
	return errors.Wrap(batch.Commit(c.writeOpts()), "commit finding")
}

// Scan returns a single scan
func (c *Catalog) Scan(id string) (*Scan, error) {
	data, closer, err := c.db.Get(scanKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get scan %s", id)
	}
	defer closer.Close()

	var scan Scan
	if err := json.Unmarshal(data, &scan); err != nil {
		return nil, errors.Wrapf(err, "decode scan %s", id)
	}
	return &scan, nil
}

// Scans returns all scans, oldest first
func (c *Catalog) Scans() ([]Scan, error) {
	var scans []Scan
	err := c.each([]byte(scanPrefix), func(_, value []byte) error {
		var s Scan
		if err := json.Unmarshal(value, &s); err != nil {
			return errors.Wrap(err, "decode scan")
		}
		scans = append(scans, s)
		return nil
	})
	return scans, err
}

// Findings returns the findings of a scan in slot order
func (c *Catalog) Findings(scanID string) ([]Finding, error) {
	if _, err := c.Scan(scanID); err != nil {
		return nil, err
	}

	var findings []Finding
	err := c.each([]byte(findingPrefix+scanID+"/"), func(_, value []byte) error {
		var f Finding
		if err := json.Unmarshal(value, &f); err != nil {
			return errors.Wrap(err, "decode finding")
		}
		findings = append(findings, f)
		return nil
	})
	return findings, err
}

// LookupKey returns every recorded finding whose header carried the key pair
func (c *Catalog) LookupKey(key0, key1 uint64) ([]KeyRef, error) {
	prefix := []byte(fmt.Sprintf("%s%016x%016x/", keyPrefix, key0, key1))

	var refs []KeyRef
	err := c.each(prefix, func(key, _ []byte) error {
		var ref KeyRef
		// <ksuid>/<slot>
		if _, err := fmt.Sscanf(string(key[len(prefix):]), "%27s/%016x", &ref.ScanID, &ref.Slot); err != nil {
			return errors.Wrapf(err, "parse index key %q", key)
		}
		refs = append(refs, ref)
		return nil
	})
	return refs, err
}

// Close closes the underlying database
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) putJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode value")
	}
	return errors.Wrapf(c.db.Set(key, data, c.writeOpts()), "write %s", key)
}

func (c *Catalog) each(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := c.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return errors.Wrap(err, "open iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return errors.Wrap(iter.Error(), "iterate")
}

func scanKey(id string) []byte {
	return []byte(scanPrefix + id)
}

func findingKey(scanID string, slot int64) []byte {
	return []byte(fmt.Sprintf("%s%s/%016x", findingPrefix, scanID, slot))
}

func indexKey(key0, key1 uint64, scanID string, slot int64) []byte {
	return []byte(fmt.Sprintf("%s%016x%016x/%s/%016x", keyPrefix, key0, key1, scanID, slot))
}

// prefixEnd returns the smallest key greater than every key with prefix
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
