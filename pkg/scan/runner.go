// Package scan walks a directory dump, decodes the object header behind each
// selected entry and classifies what it finds.
package scan

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/cachescan/pkg/catalog"
	"github.com/ssargent/cachescan/pkg/codec"
	"github.com/ssargent/cachescan/pkg/store"
)

// HeaderSource fetches the object header a directory entry points at
type HeaderSource interface {
	ReadHeader(e codec.DirEntry) (codec.Header, error)
}

// Recorder persists findings as they are produced
type Recorder interface {
	PutFinding(scanID string, f catalog.Finding) error
}

// Observer is told about every slot read and every outcome. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveSlot(valid bool)
	ObserveOutcome(outcome catalog.Outcome)
}

// Options control which entries are decoded
type Options struct {
	Workers int
	// HeadsOnly restricts the scan to head entries written in StripePhase
	HeadsOnly   bool
	StripePhase bool
	// ValidityLimit, in cache blocks, enables the phase/position check. Zero disables it.
	ValidityLimit uint64
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{Workers: 4}
}

// Result is the outcome of a completed scan
type Result struct {
	Stats    catalog.Stats
	Findings []catalog.Finding // ordered by slot
}

// Runner drives one scan
type Runner struct {
	slots    store.SlotIterator
	headers  HeaderSource
	opts     Options
	logger   *zap.SugaredLogger
	observer Observer
	recorder Recorder
	scanID   string
	keys     *store.KeyIndex
}

// NewRunner creates a runner reading slots from it and headers from headers
func NewRunner(it store.SlotIterator, headers HeaderSource, opts Options, logger *zap.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		slots:   it,
		headers: headers,
		opts:    opts,
		logger:  logger.Sugar().Named("scan"),
		keys:    store.NewKeyIndex(),
	}
}

// WithObserver attaches an observer
func (r *Runner) WithObserver(o Observer) *Runner {
	r.observer = o
	return r
}

// WithRecorder stores every finding under scanID as it is produced
func (r *Runner) WithRecorder(rec Recorder, scanID string) *Runner {
	r.recorder = rec
	r.scanID = scanID
	return r
}

// Keys returns the object keys seen by the scan so far
func (r *Runner) Keys() *store.KeyIndex {
	return r.keys
}

// Selects reports whether the runner would decode the entry
func (r *Runner) Selects(e codec.DirEntry) bool {
	if !e.IsValid() {
		return false
	}
	if r.opts.HeadsOnly && !e.IsHeadFor(r.opts.StripePhase) {
		return false
	}
	if r.opts.ValidityLimit > 0 && !e.InPhase(r.opts.StripePhase, r.opts.ValidityLimit) {
		return false
	}
	return true
}

// Run reads every slot, decodes the selected ones on a bounded pool of
// workers and returns the collected result. Decode failures are findings;
// only I/O and recorder failures abort the scan.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	work := make(chan store.Slot)

	var (
		mu     sync.Mutex
		result = &Result{Stats: catalog.Stats{Outcomes: make(map[catalog.Outcome]int64)}}
	)

	g.Go(func() error {
		defer close(work)
		for r.slots.Next() {
			slot := *r.slots.Slot()
			valid := slot.Entry.IsValid()
			selected := r.Selects(slot.Entry)

			mu.Lock()
			result.Stats.Slots++
			if valid {
				result.Stats.Valid++
			}
			if selected {
				result.Stats.Selected++
			}
			mu.Unlock()
			if r.observer != nil {
				r.observer.ObserveSlot(valid)
			}
			if !selected {
				continue
			}

			select {
			case work <- slot:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return errors.Wrap(r.slots.Err(), "read directory")
	})

	for i := 0; i < r.opts.Workers; i++ {
		g.Go(func() error {
			for slot := range work {
				finding, err := r.inspect(slot)
				if err != nil {
					return err
				}
				if r.recorder != nil {
					if err := r.recorder.PutFinding(r.scanID, finding); err != nil {
						return errors.Wrapf(err, "record slot %d", slot.Index)
					}
				}
				if r.observer != nil {
					r.observer.ObserveOutcome(finding.Outcome)
				}

				mu.Lock()
				result.Stats.Outcomes[finding.Outcome]++
				result.Findings = append(result.Findings, finding)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Findings, func(i, j int) bool {
		return result.Findings[i].Slot < result.Findings[j].Slot
	})
	r.logger.Infow("scan complete",
		"slots", result.Stats.Slots,
		"valid", result.Stats.Valid,
		"selected", result.Stats.Selected,
		"ok", result.Stats.Outcomes[catalog.OutcomeOK],
		"duplicate_keys", len(r.keys.Duplicates()),
	)
	return result, nil
}

func (r *Runner) inspect(slot store.Slot) (catalog.Finding, error) {
	e := slot.Entry
	finding := catalog.Finding{
		Slot:   slot.Index,
		Offset: e.Offset,
		Length: e.Length,
		Tag:    e.Tag,
		Head:   e.Head,
		Pinned: e.Pinned,
	}

	hdr, err := r.headers.ReadHeader(e)
	outcome, ok := Classify(err)
	if !ok {
		return finding, errors.Wrapf(err, "slot %d", slot.Index)
	}
	finding.Outcome = outcome

	if err != nil {
		finding.Error = err.Error()
		r.logger.Debugw("undecodable slot", "slot", slot.Index, "offset", e.Offset, "outcome", outcome, "error", err)
		return finding, nil
	}

	finding.Keys = hdr.Keys
	finding.Version = hdr.Version()
	finding.DocType = hdr.DocType
	finding.HeaderLength = hdr.HLen
	finding.TotalLength = hdr.TotalLength
	r.keys.Add(store.ObjectKey{hdr.Keys[0], hdr.Keys[1]}, slot.Index)
	return finding, nil
}

// Classify maps a header read error onto a finding outcome. It returns false
// for errors that are not about the data itself.
func Classify(err error) (catalog.Outcome, bool) {
	var (
		magicErr   *codec.InvalidMagicError
		corruptErr *codec.CorruptedRecordError
		formatErr  *codec.FormatError
	)
	switch {
	case err == nil:
		return catalog.OutcomeOK, true
	case errors.As(err, &corruptErr):
		return catalog.OutcomeCorrupt, true
	case errors.As(err, &magicErr):
		return catalog.OutcomeInvalidMagic, true
	case errors.As(err, &formatErr):
		return catalog.OutcomeFormat, true
	case errors.Is(err, store.ErrShortRead):
		return catalog.OutcomeShortRead, true
	default:
		return "", false
	}
}
