// Package di provides dependency injection container
package di

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ssargent/cachescan/pkg/api" //nolint:depguard
	"github.com/ssargent/cachescan/pkg/catalog"
	"github.com/ssargent/cachescan/pkg/logging"
)

// CatalogOpener opens the findings catalog under a data directory
type CatalogOpener func(dataDir string) (*catalog.Catalog, error)

// Container holds all the dependencies for the application
type Container struct {
	serverFactory api.ServerFactory
	catalogOpener CatalogOpener
	logger        *zap.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverFactory: api.NewServerFactory(),
		catalogOpener: OpenCatalog,
		logger:        zap.NewNop(),
	}
}

// OpenCatalog opens the catalog kept in dataDir/catalog
func OpenCatalog(dataDir string) (*catalog.Catalog, error) {
	return catalog.Open(CatalogPath(dataDir), catalog.Options{})
}

// CatalogPath returns where the catalog lives under dataDir
func CatalogPath(dataDir string) string {
	return filepath.Join(dataDir, "catalog")
}

// ConfigureLogger replaces the logger with one at the given level
func (c *Container) ConfigureLogger(level string) error {
	logger, err := logging.New(level)
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

// GetLogger returns the application logger
func (c *Container) GetLogger() *zap.Logger {
	return c.logger
}

// SetLogger allows overriding the logger (for testing)
func (c *Container) SetLogger(logger *zap.Logger) {
	c.logger = logger
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// GetCatalogOpener returns the catalog opener
func (c *Container) GetCatalogOpener() CatalogOpener {
	return c.catalogOpener
}

// SetCatalogOpener allows overriding how the catalog is opened (for testing)
func (c *Container) SetCatalogOpener(opener CatalogOpener) {
	c.catalogOpener = opener
}
