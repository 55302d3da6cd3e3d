package daemon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/ironclaw/internal/config"
	"github.com/harun/ironclaw/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `[
  {
    "name": "greet",
    "description": "Greets the caller",
    "binary_path": "capabilities/greet.wasm",
    "handler": "run",
    "parameters": {"type": "object", "properties": {"input": {"type": "string"}}}
  }
]`

// createTestDaemon creates a daemon backed by a stub oracle endpoint so no
// request leaves the test process.
func createTestDaemon(t *testing.T) (*Daemon, *logger.Logger) {
	tmpDir := t.TempDir()

	catalogPath := filepath.Join(tmpDir, "tools.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o644))

	oracleBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"System Online"}}]}`)
	}))
	t.Cleanup(oracleBackend.Close)

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Catalog.Path = catalogPath
	cfg.Oracle.APIKey = "sk-test-key"
	cfg.Oracle.BaseURL = oracleBackend.URL
	cfg.Server.Port = 18321

	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)

	daemon, err := New(cfg, log)
	require.NoError(t, err)

	return daemon, log
}

func TestNew(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()
	defer daemon.engine.Close(context.Background())

	assert.NotNil(t, daemon)
	assert.NotNil(t, daemon.catalogHandle)
	assert.NotNil(t, daemon.engine)
	assert.NotNil(t, daemon.oracle)
	assert.NotNil(t, daemon.orchestrator)
	assert.NotNil(t, daemon.gatewayServer)
	assert.Equal(t, 1, daemon.catalogHandle.Snapshot().Len())
}

func TestNewFailsWithoutCatalog(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Catalog.Path = filepath.Join(cfg.DataDir, "does-not-exist.json")
	cfg.Oracle.APIKey = "sk-test-key"

	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)
	defer log.Close()

	daemon, err := New(cfg, log)
	assert.Error(t, err)
	assert.Nil(t, daemon)
	assert.Contains(t, err.Error(), "failed to load capability catalog")
}

func TestNewFailsWithUnknownProvider(t *testing.T) {
	tmpDir := t.TempDir()
	catalogPath := filepath.Join(tmpDir, "tools.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`[]`), 0o644))

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Catalog.Path = catalogPath
	cfg.Oracle.Provider = "palmistry"
	cfg.Oracle.APIKey = "sk-test-key"

	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)
	defer log.Close()

	_, err = New(cfg, log)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestDaemonStartStop(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	// Start daemon
	err := daemon.Start()
	require.NoError(t, err)

	// Check status
	status := daemon.Status()
	assert.True(t, status.Running)

	// Wait a bit
	time.Sleep(100 * time.Millisecond)

	// Stop daemon
	err = daemon.Stop()
	require.NoError(t, err)

	// Check status
	status = daemon.Status()
	assert.False(t, status.Running)

	// Double stop errors
	assert.Error(t, daemon.Stop())
}

func TestDaemonStatus(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()
	defer daemon.engine.Close(context.Background())

	// Status before start
	status := daemon.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Duration(0), status.Uptime)
}

func TestDaemonGetters(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()
	defer daemon.engine.Close(context.Background())

	assert.NotNil(t, daemon.GetConfig())
	assert.NotNil(t, daemon.GetLogger())
	assert.NotNil(t, daemon.GetCatalog())
	assert.NotNil(t, daemon.GetOrchestrator())
	assert.NotNil(t, daemon.GetGatewayServer())
}
