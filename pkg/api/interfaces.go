// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/ssargent/cachescan/pkg/catalog"
)

// Catalog is the findings catalog as the server uses it
type Catalog interface {
	NewScan(dirPath, contentPath string) (*catalog.Scan, error)
	FinishScan(scan *catalog.Scan) error
	FailScan(scan *catalog.Scan, cause error) error
	PutFinding(scanID string, f catalog.Finding) error
	Scan(id string) (*catalog.Scan, error)
	Scans() ([]catalog.Scan, error)
	Findings(scanID string) ([]catalog.Finding, error)
	LookupKey(key0, key1 uint64) ([]catalog.KeyRef, error)
}

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves until ctx is cancelled or the listener fails
	StartServer(ctx context.Context, cat Catalog, config ServerConfig, logger *zap.Logger) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
