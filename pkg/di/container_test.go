package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewContainer(t *testing.T) {
	c := NewContainer()
	assert.NotNil(t, c.GetServerFactory())
	assert.NotNil(t, c.GetServerFactory().CreateServerStarter())
	assert.NotNil(t, c.GetLogger())
	assert.NotNil(t, c.GetCatalogOpener())
}

func TestContainer_ConfigureLogger(t *testing.T) {
	c := NewContainer()
	require.NoError(t, c.ConfigureLogger("error"))
	assert.False(t, c.GetLogger().Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, c.ConfigureLogger("shouty"))
}

func TestOpenCatalog(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "di_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	assert.Equal(t, filepath.Join(tmpDir, "catalog"), CatalogPath(tmpDir))
	assert.Equal(t, "catalog", CatalogPath(""))

	cat, err := NewContainer().GetCatalogOpener()(tmpDir)
	require.NoError(t, err)
	assert.NoError(t, cat.Close())
	assert.DirExists(t, filepath.Join(tmpDir, "catalog"))
}
