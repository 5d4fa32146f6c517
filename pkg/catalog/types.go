package catalog

import (
	"time"
)

// Outcome classifies what a scan found at a directory slot
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeInvalidMagic Outcome = "invalid_magic"
	OutcomeCorrupt      Outcome = "corrupt"
	OutcomeShortRead    Outcome = "short_read"
	OutcomeFormat       Outcome = "format"
)

// Outcomes lists every outcome in reporting order
var Outcomes = []Outcome{OutcomeOK, OutcomeInvalidMagic, OutcomeCorrupt, OutcomeShortRead, OutcomeFormat}

// Status is the lifecycle state of a recorded scan
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Scan describes one recorded pass over a directory dump
type Scan struct {
	ID         string     `json:"id"`
	DirPath    string     `json:"dir_path"`
	Content    string     `json:"content_path"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"` // Set when Status is failed
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Stats      Stats      `json:"stats"`
}

// Stats counts slots by what the scan did with them
type Stats struct {
	Slots    int64             `json:"slots"`
	Valid    int64             `json:"valid"`
	Selected int64             `json:"selected"`
	Outcomes map[Outcome]int64 `json:"outcomes"`
}

// Finding is the decoded result for one selected slot
type Finding struct {
	Slot         int64     `json:"slot"`
	Offset       uint64    `json:"offset"`
	Length       uint64    `json:"length"`
	Tag          uint16    `json:"tag"`
	Head         bool      `json:"head"`
	Pinned       bool      `json:"pinned"`
	Outcome      Outcome   `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	Keys         [4]uint64 `json:"keys,omitempty"`
	Version      string    `json:"version,omitempty"`
	DocType      uint8     `json:"doc_type,omitempty"`
	HeaderLength uint32    `json:"header_length,omitempty"`
	TotalLength  uint64    `json:"total_length,omitempty"`
}

// KeyRef points at a finding that carried a given object key
type KeyRef struct {
	ScanID string `json:"scan_id"`
	Slot   int64  `json:"slot"`
}
