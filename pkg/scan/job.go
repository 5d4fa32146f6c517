package scan

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ssargent/cachescan/pkg/catalog"
	"github.com/ssargent/cachescan/pkg/store"
)

// Catalog is the part of the findings catalog a job writes to
type Catalog interface {
	Recorder
	NewScan(dirPath, contentPath string) (*catalog.Scan, error)
	FinishScan(scan *catalog.Scan) error
	FailScan(scan *catalog.Scan, cause error) error
}

// Job describes a scan over files on disk
type Job struct {
	DirPath       string
	ContentPath   string
	ContentOffset int64
	StartIndex    int64
	Options       Options
}

// Report is what a finished job produced
type Report struct {
	Scan       *catalog.Scan // nil when the job was not recorded
	Result     *Result
	Duplicates map[store.ObjectKey][]int64
}

// Validate checks the job before any file is opened
func (j Job) Validate() error {
	if j.DirPath == "" {
		return errors.New("directory dump path is required")
	}
	if j.ContentPath == "" {
		return errors.New("content path is required")
	}
	if j.ContentOffset < 0 {
		return errors.Errorf("negative content offset %d", j.ContentOffset)
	}
	return nil
}

// Run opens the files, scans them and, when cat is not nil, records the scan
// and its findings. A scan that aborts is recorded as failed. observer may be
// nil.
func (j Job) Run(ctx context.Context, cat Catalog, observer Observer, logger *zap.Logger) (*Report, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dir, err := store.NewDirReader(store.DirReaderConfig{FilePath: j.DirPath, StartIndex: j.StartIndex})
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	fragments, err := store.NewFragmentReader(store.FragmentReaderConfig{
		FilePath:      j.ContentPath,
		ContentOffset: j.ContentOffset,
	})
	if err != nil {
		return nil, err
	}
	defer fragments.Close()

	runner := NewRunner(dir.Iterator(), fragments, j.Options, logger)
	if observer != nil {
		runner.WithObserver(observer)
	}

	report := &Report{}
	if cat != nil {
		report.Scan, err = cat.NewScan(j.DirPath, j.ContentPath)
		if err != nil {
			return nil, errors.Wrap(err, "start scan record")
		}
		runner.WithRecorder(cat, report.Scan.ID)
		logger.Sugar().Infow("recording scan", "scan_id", report.Scan.ID, "dir", j.DirPath)
	}

	report.Result, err = runner.Run(ctx)
	if err != nil {
		if report.Scan != nil {
			if ferr := cat.FailScan(report.Scan, err); ferr != nil {
				logger.Sugar().Errorw("mark scan failed", "scan_id", report.Scan.ID, "error", ferr)
			}
		}
		return nil, err
	}
	report.Duplicates = runner.Keys().Duplicates()

	if report.Scan != nil {
		report.Scan.Stats = report.Result.Stats
		if err := cat.FinishScan(report.Scan); err != nil {
			return nil, errors.Wrap(err, "finish scan record")
		}
	}
	return report, nil
}
