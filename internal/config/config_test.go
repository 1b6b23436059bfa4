package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relistr/relistr/internal/errors"
)

const validYAML = `
version: "1"
server:
  host: 127.0.0.1
  http_port: 9090
  shutdown_timeout: 10s
encryption:
  master_key: test-master-key
database:
  path: /tmp/relistr-test.db
rate_limit:
  enabled: true
  default_requests: 50
  default_window: 30s
automation:
  headless: true
  navigation_timeout: 20s
  type_delay_min: 40ms
  type_delay_max: 120ms
alerts:
  rate_per_minute: 5
`

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "test-master-key", cfg.Encryption.MasterKey)
	assert.Equal(t, "/tmp/relistr-test.db", cfg.Database.Path)
	assert.Equal(t, 50, cfg.RateLimit.DefaultRequests)
	assert.Equal(t, 40*time.Millisecond, cfg.Automation.TypeDelayMin)
	assert.Equal(t, 5, cfg.Alerts.RatePerMinute)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("encryption:\n  master_key: k\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Automation.Headless)
	assert.Equal(t, "http://localhost:9222", cfg.Automation.DebuggerURL)
}

func TestParseRejectsMissingMasterKey(t *testing.T) {
	_, err := Parse([]byte("server:\n  http_port: 8080\n"))
	var validation *errors.ErrConfigValidation
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, err.Error(), "master_key")
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("server: [not a map"))
	var parse *errors.ErrConfigParse
	require.ErrorAs(t, err, &parse)
}

func TestValidateBadPort(t *testing.T) {
	cfg := Default()
	cfg.Encryption.MasterKey = "k"
	cfg.Server.HTTPPort = 99999

	assert.Error(t, cfg.Validate())
}

func TestValidateTypingDelayOrder(t *testing.T) {
	cfg := Default()
	cfg.Encryption.MasterKey = "k"
	cfg.Automation.TypeDelayMin = 200 * time.Millisecond
	cfg.Automation.TypeDelayMax = 100 * time.Millisecond

	assert.Error(t, cfg.Validate())
}

func TestLoaderEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_RELISTR_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("encryption:\n  master_key: ${TEST_RELISTR_KEY}\n"), 0644))

	cfg, err := NewLoader(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Encryption.MasterKey)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), nil).Load()
	var notFound *errors.ErrConfigNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestLoaderWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("encryption:\n  master_key: first\n"), 0644))

	loader := NewLoader(path, nil)
	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 1)
	loader.SetOnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	require.NoError(t, loader.StartWatcher())
	defer loader.StopWatcher()

	require.NoError(t, os.WriteFile(path, []byte("encryption:\n  master_key: second\n"), 0644))

	select {
	case cfg := <-changed:
		assert.Equal(t, "second", cfg.Encryption.MasterKey)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not observe config change")
	}
}

func TestLoaderWatcherKeepsOldConfigOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("encryption:\n  master_key: good\n"), 0644))

	loader := NewLoader(path, nil)
	_, err := loader.Load()
	require.NoError(t, err)
	require.NoError(t, loader.StartWatcher())
	defer loader.StopWatcher()

	// drop the master key so validation fails
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 8080\n"), 0644))
	time.Sleep(time.Second)

	assert.Equal(t, "good", loader.Get().Encryption.MasterKey)
}
