package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claimd.db", cfg.Database.Path)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, 6, cfg.Claim.PoolCapacity)
	assert.Equal(t, 300, cfg.Claim.JobTimeoutSeconds)
	assert.Equal(t, 3600, cfg.Claim.ProgressRetentionSeconds)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 86400, cfg.Scheduler.IntervalSeconds)
	assert.Empty(t, cfg.Notify.WebhookURL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claimd.toml")
	content := `
[claim]
pool_capacity = 2
job_timeout_seconds = 30

[scheduler]
enabled = false

[notify]
webhook_url = "https://hooks.example.com/claims"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Claim.PoolCapacity)
	assert.Equal(t, 30, cfg.Claim.JobTimeoutSeconds)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "https://hooks.example.com/claims", cfg.Notify.WebhookURL)
	// Untouched sections keep their defaults
	assert.Equal(t, "claimd.db", cfg.Database.Path)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("CLAIMD_NOTIFY_WEBHOOK_URL", "https://env.example.com/hook")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/hook", cfg.Notify.WebhookURL)
}
