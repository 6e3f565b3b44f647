package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AdSweeper/internal/domain"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validSettings = `
credentials:
  cookies:
    primary: "sessionid=abc"
  default: primary
accounts:
  - id: "1790001"
    dramaName: "春天"
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeSettings(t, validSettings))
	require.NoError(t, err)

	assert.True(t, cfg.Sweep.DryRun)
	assert.Equal(t, 400, cfg.Sweep.PreviewDelayMs)
	assert.Equal(t, 300, cfg.Sweep.DeleteDelayMs)
	assert.Equal(t, 3, cfg.Sweep.FetchConcurrency)
	assert.Equal(t, 50, cfg.Sweep.WindowStartMinutes)
	assert.Equal(t, 30, cfg.Sweep.WindowEndMinutes)
	assert.Equal(t, 20, cfg.Platform.TimeoutSeconds)
	assert.Equal(t, "https://ad.oceanengine.com", cfg.Platform.ResolvedBaseURL())
	assert.Equal(t, 0, cfg.Scheduler.IntervalMinutes)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeSettings(t, validSettings+`
sweep:
  dryRun: false
  previewDelayMs: 150
  fetchConcurrency: 5
scheduler:
  intervalMinutes: 10
platform:
  proxyUrl: "http://localhost:3001/api/proxy"
`))
	require.NoError(t, err)

	assert.False(t, cfg.Sweep.DryRun)
	assert.Equal(t, 150, cfg.Sweep.PreviewDelayMs)
	assert.Equal(t, 5, cfg.Sweep.FetchConcurrency)
	assert.Equal(t, 10, cfg.Scheduler.IntervalMinutes)
	assert.Equal(t, "http://localhost:3001/api/proxy", cfg.Platform.ResolvedBaseURL())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ADSWEEPER_LOG_LEVEL", "debug")
	t.Setenv("DIRECTORY_APP_ID", "cli_env")

	cfg, err := Load(writeSettings(t, validSettings))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "cli_env", cfg.Directory.AppID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsUnknownSubjectMapping(t *testing.T) {
	_, err := Load(writeSettings(t, `
credentials:
  cookies:
    primary: "sessionid=abc"
  subjects:
    欣雅: missing
accounts:
  - id: "1"
    dramaName: "春天"
`))

	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "unknown cookie")
}

func TestLoadRequiresDirectoryWithoutInlineAccounts(t *testing.T) {
	_, err := Load(writeSettings(t, `
credentials:
  cookies:
    primary: "sessionid=abc"
`))

	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "directory credentials")
}

func TestLoadRejectsInvertedWindow(t *testing.T) {
	_, err := Load(writeSettings(t, validSettings+`
sweep:
  windowStartMinutes: 10
  windowEndMinutes: 40
`))

	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
