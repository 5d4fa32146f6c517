package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "./data", config.DataDir)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "127.0.0.1", config.Bind)
	assert.Equal(t, "auto", config.Security.APIKey)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, 4, config.Scan.Workers)
	assert.True(t, config.Scan.HeadsOnly)
	assert.NoError(t, config.Validate())
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"no workers", func(c *Config) { c.Scan.Workers = 0 }, "scan.workers"},
		{"negative content offset", func(c *Config) { c.Scan.ContentOffset = -1 }, "content_offset"},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, "unknown logging level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestValidate_LevelNames(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "warning", "error", "WARN"} {
		t.Run(level, func(t *testing.T) {
			config := DefaultConfig()
			config.Logging.Level = level
			assert.NoError(t, config.Validate())
		})
	}
}

func TestGenerateSecureKey(t *testing.T) {
	t.Run("generate 32 byte key", func(t *testing.T) {
		key, err := GenerateSecureKey(32)
		require.NoError(t, err)
		assert.Len(t, key, 64) // 32 bytes = 64 hex characters

		_, err = hex.DecodeString(key)
		assert.NoError(t, err)
	})

	t.Run("generate different keys", func(t *testing.T) {
		key1, err := GenerateSecureKey(16)
		require.NoError(t, err)
		key2, err := GenerateSecureKey(16)
		require.NoError(t, err)

		assert.NotEqual(t, key1, key2)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "cachescan_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "config.yaml")
		expectedConfig := &Config{
			DataDir: "/custom/data",
			Port:    9000,
			Bind:    "0.0.0.0",
			Security: Security{
				APIKey: "test-api-key",
			},
			Logging: Logging{
				Level: "debug",
			},
			Scan: Scan{
				Workers:       16,
				ContentOffset: 0x6000,
				HeadsOnly:     false,
				Record:        true,
			},
		}

		err = SaveConfig(expectedConfig, configPath)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "cachescan_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "partial.yaml")
		err = os.WriteFile(configPath, []byte("port: 9100\nscan:\n  content_offset: 8192\n"), 0600)
		require.NoError(t, err)

		loaded, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, 9100, loaded.Port)
		assert.Equal(t, int64(8192), loaded.Scan.ContentOffset)
		assert.Equal(t, 4, loaded.Scan.Workers)
		assert.Equal(t, "info", loaded.Logging.Level)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "cachescan_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "invalid.yaml")
		err = os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestSaveConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cachescan_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	config := DefaultConfig()

	err = SaveConfig(config, configPath)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestBootstrapConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cachescan_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	dataDir := "/custom/data/dir"

	config, err := BootstrapConfig(configPath, dataDir)
	require.NoError(t, err)

	assert.Equal(t, dataDir, config.DataDir)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "info", config.Logging.Level)

	assert.NotEqual(t, "auto", config.Security.APIKey)
	_, err = hex.DecodeString(config.Security.APIKey)
	assert.NoError(t, err)

	assert.True(t, ConfigExists(configPath))

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "cachescan")
}

func TestConfigYAMLMarshalling(t *testing.T) {
	config := &Config{
		DataDir:  "/test/data",
		Port:     9999,
		Bind:     "localhost",
		Security: Security{APIKey: "api-key-789"},
		Logging:  Logging{Level: "warn"},
		Scan:     Scan{Workers: 2, ContentOffset: 512},
	}

	data, err := yaml.Marshal(config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "content_offset: 512")

	var unmarshalled Config
	err = yaml.Unmarshal(data, &unmarshalled)
	require.NoError(t, err)

	assert.Equal(t, config, &unmarshalled)
}

func TestSaveConfigErrorHandling(t *testing.T) {
	config := DefaultConfig()

	// A regular file where a parent directory should be fails even for root
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	err := SaveConfig(config, filepath.Join(blocker, "nested", "config.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}
