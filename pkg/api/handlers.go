package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ssargent/cachescan/pkg/catalog"
	"github.com/ssargent/cachescan/pkg/codec"
	"github.com/ssargent/cachescan/pkg/scan"
	"github.com/ssargent/cachescan/pkg/store"
)

const maxRequestBody = 1 << 20

// Server holds the API server state
type Server struct {
	catalog Catalog
	config  ServerConfig
	metrics *Metrics
	logger  *zap.SugaredLogger
}

// NewServer creates a new API server. cat may be nil, in which case the scan
// routes answer 503.
func NewServer(cat Catalog, config ServerConfig, metrics *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		catalog: cat,
		config:  config,
		metrics: metrics,
		logger:  logger.Sugar().Named("api"),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleDecodeDirEntry(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	raw, ok := s.readRecord(w, r, &req)
	if !ok {
		return
	}

	entry, err := codec.DecodeDirEntry(raw)
	s.recordDecode("direntry", err)
	if err != nil {
		sendCodecError(w, err)
		return
	}
	sendSuccess(w, NewDirEntryResponse(entry))
}

func (s *Server) handleSetOffset(w http.ResponseWriter, r *http.Request) {
	var req OffsetRequest
	raw, ok := s.readRecord(w, r, &req)
	if !ok {
		return
	}

	buf := append([]byte(nil), raw...)
	if err := codec.SetDirEntryOffset(buf, req.Offset); err != nil {
		s.recordDecode("direntry_offset", err)
		sendCodecError(w, err)
		return
	}
	entry, err := codec.DecodeDirEntry(buf)
	s.recordDecode("direntry_offset", err)
	if err != nil {
		sendCodecError(w, err)
		return
	}
	sendSuccess(w, NewDirEntryResponse(entry))
}

func (s *Server) handleDecodeHeader(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	raw, ok := s.readRecord(w, r, &req)
	if !ok {
		return
	}

	hdr, err := codec.DecodeHeader(raw)
	s.recordDecode("header", err)
	if err != nil {
		sendCodecError(w, err)
		return
	}
	sendSuccess(w, NewHeaderResponse(hdr))
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	scans, err := s.catalog.Scans()
	if err != nil {
		s.logger.Errorw("list scans", "error", err)
		sendError(w, "Failed to list scans", http.StatusInternalServerError)
		return
	}
	if scans == nil {
		scans = []catalog.Scan{}
	}
	sendSuccess(w, scans)
}

// ScanDetail is a scan together with its findings
type ScanDetail struct {
	Scan     *catalog.Scan     `json:"scan"`
	Findings []catalog.Finding `json:"findings"`
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	id := chi.URLParam(r, "id")

	rec, err := s.catalog.Scan(id)
	if err != nil {
		s.sendCatalogError(w, err)
		return
	}
	findings, err := s.catalog.Findings(id)
	if err != nil {
		s.sendCatalogError(w, err)
		return
	}
	if outcome := r.URL.Query().Get("outcome"); outcome != "" {
		filtered := findings[:0]
		for _, f := range findings {
			if string(f.Outcome) == outcome {
				filtered = append(filtered, f)
			}
		}
		findings = filtered
	}
	if findings == nil {
		findings = []catalog.Finding{}
	}
	sendSuccess(w, ScanDetail{Scan: rec, Findings: findings})
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	var req ScanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}

	job := scan.Job{
		DirPath:       req.DirPath,
		ContentPath:   req.ContentPath,
		ContentOffset: req.ContentOffset,
		Options: scan.Options{
			Workers:       s.config.Workers,
			HeadsOnly:     req.HeadsOnly,
			StripePhase:   req.StripePhase,
			ValidityLimit: req.ValidityLimit,
		},
	}
	if err := job.Validate(); err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, path := range []string{job.DirPath, job.ContentPath} {
		if err := checkScanPath(s.config.ScanRoot, path); err != nil {
			sendError(w, err.Error(), http.StatusForbidden)
			return
		}
	}

	var observer scan.Observer
	if s.metrics != nil {
		observer = s.metrics
	}
	report, err := job.Run(r.Context(), s.catalog, observer, s.logger.Desugar())
	if s.metrics != nil {
		s.metrics.RecordScan(err == nil)
	}
	if err != nil {
		s.logger.Errorw("scan failed", "dir", req.DirPath, "error", err)
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendSuccess(w, report.Scan)
}

// KeyLookup is the response to a key lookup
type KeyLookup struct {
	Key  string           `json:"key"`
	Refs []catalog.KeyRef `json:"refs"`
}

func (s *Server) handleLookupKey(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	key := chi.URLParam(r, "key")
	key0, key1, err := parseObjectKey(key)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	refs, err := s.catalog.LookupKey(key0, key1)
	if err != nil {
		s.sendCatalogError(w, err)
		return
	}
	if refs == nil {
		refs = []catalog.KeyRef{}
	}
	sendSuccess(w, KeyLookup{Key: key, Refs: refs})
}

// readRecord decodes a DecodeRequest-shaped body into req and returns its bytes
func (s *Server) readRecord(w http.ResponseWriter, r *http.Request, req interface{}) ([]byte, bool) {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(req); err != nil {
		sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return nil, false
	}

	var dr DecodeRequest
	switch v := req.(type) {
	case *DecodeRequest:
		dr = *v
	case *OffsetRequest:
		dr = v.DecodeRequest
	}
	raw, err := dr.Bytes()
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return raw, true
}

func (s *Server) recordDecode(record string, err error) {
	if s.metrics == nil {
		return
	}
	outcome, ok := scan.Classify(err)
	if !ok {
		outcome = catalog.OutcomeFormat
	}
	if _, isRange := err.(*codec.RangeError); isRange {
		outcome = "range"
	}
	s.metrics.RecordDecode(record, outcome)
}

func (s *Server) requireCatalog(w http.ResponseWriter) bool {
	if s.catalog == nil {
		sendError(w, "Catalog is not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) sendCatalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		sendError(w, "Scan not found", http.StatusNotFound)
		return
	}
	s.logger.Errorw("catalog error", "error", err)
	sendError(w, "Catalog error", http.StatusInternalServerError)
}

// sendCodecError maps codec errors onto HTTP statuses: malformed input is a
// bad request, well-formed input that is not a usable header is unprocessable.
func writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func sendSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func sendError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, APIResponse{Error: message})
}

// sendCodecError maps codec errors onto 400 for malformed input and 422 for
// well-formed records the engine would reject
func sendCodecError(w http.ResponseWriter, err error) {
	var (
		formatErr  *codec.FormatError
		rangeErr   *codec.RangeError
		magicErr   *codec.InvalidMagicError
		corruptErr *codec.CorruptedRecordError
	)
	switch {
	case errors.As(err, &formatErr), errors.As(err, &rangeErr):
		sendError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &magicErr), errors.As(err, &corruptErr):
		sendError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		sendError(w, err.Error(), http.StatusInternalServerError)
	}
}

// checkScanPath rejects paths that resolve outside root. An empty root allows
// any path.
func checkScanPath(root, path string) error {
	if root == "" {
		return nil
	}
	resolvedRoot, err := resolvePath(root)
	if err != nil {
		return fmt.Errorf("scan root %s: %w", root, err)
	}
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("path %s is not accessible", path)
	}
	rel, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside the scan root", path)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// parseObjectKey accepts the first two header keys as 32 hex digits
func parseObjectKey(key string) (uint64, uint64, error) {
	k, err := store.ParseObjectKey(key)
	if err != nil {
		return 0, 0, err
	}
	return k[0], k[1], nil
}
