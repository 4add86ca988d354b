package daemonconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFileEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFileOverlaysOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netd.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
admin_socket_path = "/tmp/netd-test/admin"
log_level         = "debug"
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/netd-test/admin", cfg.AdminSocketPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Everything else falls back to defaults.
	assert.Equal(t, DefaultConfig().FwmarkSocketPath, cfg.FwmarkSocketPath)
	assert.Equal(t, DefaultConfig().RouteTableOffset, cfg.RouteTableOffset)
	assert.Equal(t, DefaultConfig().AppUIDStart, cfg.AppUIDStart)
}

func TestLoadFileRejectsMalformedHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netd.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`admin_socket_path = `), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoggingLevelParsesKnownStrings(t *testing.T) {
	cfg := DefaultConfig()

	cfg.LogLevel = "debug"
	assert.Equal(t, "DEBUG", cfg.LoggingLevel().String())

	cfg.LogLevel = "warn"
	assert.Equal(t, "WARN", cfg.LoggingLevel().String())

	cfg.LogLevel = "error"
	assert.Equal(t, "ERROR", cfg.LoggingLevel().String())

	cfg.LogLevel = "nonsense"
	assert.Equal(t, "INFO", cfg.LoggingLevel().String())
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"

	path := filepath.Join(t.TempDir(), "netd.hcl")
	require.NoError(t, os.WriteFile(path, WriteDefault(cfg), 0o644))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
