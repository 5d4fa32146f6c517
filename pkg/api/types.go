package api

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ssargent/cachescan/pkg/codec"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
	// Workers bounds header reads for scans started over the API
	Workers int
	// ScanRoot confines scans started over the API to files beneath it
	ScanRoot string
}

// DecodeRequest carries a raw record either as hex or as base64 bytes
type DecodeRequest struct {
	Hex  string `json:"hex,omitempty"`
	Data []byte `json:"data,omitempty"`
}

// Bytes returns the request payload, preferring Hex when both are set
func (r DecodeRequest) Bytes() ([]byte, error) {
	if r.Hex == "" {
		return r.Data, nil
	}
	clean := strings.NewReplacer(" ", "", "\n", "", "\t", "", "0x", "").Replace(r.Hex)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// OffsetRequest asks for an entry to be re-pointed at Offset
type OffsetRequest struct {
	DecodeRequest
	Offset uint64 `json:"offset"`
}

// ScanRequest starts a scan over files visible to the server
type ScanRequest struct {
	DirPath       string `json:"dir_path"`
	ContentPath   string `json:"content_path"`
	ContentOffset int64  `json:"content_offset"`
	HeadsOnly     bool   `json:"heads_only"`
	StripePhase   bool   `json:"stripe_phase"`
	ValidityLimit uint64 `json:"validity_limit"`
}

// DirEntryResponse is the JSON form of a decoded directory entry
type DirEntryResponse struct {
	Valid     bool   `json:"valid"`
	RawOffset uint64 `json:"raw_offset"`
	Offset    uint64 `json:"offset"`
	SizeClass uint8  `json:"size_class"`
	Big       uint8  `json:"big"`
	Length    uint64 `json:"length"`
	Token     bool   `json:"token"`
	Pinned    bool   `json:"pinned"`
	Head      bool   `json:"head"`
	Phase     bool   `json:"phase"`
	Tag       uint16 `json:"tag"`
	Next      uint16 `json:"next"`
	Summary   string `json:"summary"`
	Hex       string `json:"hex"`
}

// NewDirEntryResponse converts a decoded entry
func NewDirEntryResponse(e codec.DirEntry) DirEntryResponse {
	return DirEntryResponse{
		Valid:     e.IsValid(),
		RawOffset: e.RawOffset,
		Offset:    e.Offset,
		SizeClass: e.SizeClass,
		Big:       e.Big,
		Length:    e.Length,
		Token:     e.Token,
		Pinned:    e.Pinned,
		Head:      e.Head,
		Phase:     e.Phase,
		Tag:       e.Tag,
		Next:      e.Next,
		Summary:   e.Summary(),
		Hex:       hex.EncodeToString(e.Bytes()),
	}
}

// HeaderResponse is the JSON form of a decoded object header
type HeaderResponse struct {
	Magic         string    `json:"magic"`
	Length        uint32    `json:"length"`
	TotalLength   uint64    `json:"total_length"`
	Keys          [4]string `json:"keys"`
	HLen          uint32    `json:"hlen"`
	DocType       uint8     `json:"doc_type"`
	Version       string    `json:"version"`
	SyncSerial    uint32    `json:"sync_serial"`
	WriteSerial   uint32    `json:"write_serial"`
	Pinned        uint32    `json:"pinned"`
	Checksum      string    `json:"checksum"`
	HasAlternates bool      `json:"has_alternates"`
	DataLength    uint64    `json:"data_length"`
}

// NewHeaderResponse converts a decoded header
func NewHeaderResponse(h codec.Header) HeaderResponse {
	resp := HeaderResponse{
		Magic:         fmt.Sprintf("0x%08X", h.Magic),
		Length:        h.Length,
		TotalLength:   h.TotalLength,
		HLen:          h.HLen,
		DocType:       h.DocType,
		Version:       h.Version(),
		SyncSerial:    h.SyncSerial,
		WriteSerial:   h.WriteSerial,
		Pinned:        h.Pinned,
		Checksum:      fmt.Sprintf("0x%08X", h.Checksum),
		HasAlternates: h.HasAlternates(),
		DataLength:    h.DataLength(),
	}
	for i, k := range h.Keys {
		resp.Keys[i] = fmt.Sprintf("%016x", k)
	}
	return resp
}
