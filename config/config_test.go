package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg := LoadConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 3, cfg.Webhook.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Webhook.Backoff)
	assert.Equal(t, "memory", cfg.Webhook.Queue)
	assert.Equal(t, 4, cfg.Webhook.Workers)
	assert.Equal(t, 10, cfg.SubmissionRateLimit)
	assert.Equal(t, time.Minute, cfg.SubmissionRateWindow)
	assert.True(t, cfg.EnableMetrics)
	assert.Empty(t, cfg.Webhook.URL)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	chdirTemp(t)

	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/sales")
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "5")
	t.Setenv("WEBHOOK_QUEUE", "REDIS")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CURRENCY_EXPONENT", "2")
	t.Setenv("SCREENSHOT_BASE_URL", "https://cdn.example.com/files/")

	cfg := LoadConfig()

	assert.Equal(t, "https://hooks.example.com/sales", cfg.Webhook.URL)
	assert.Equal(t, "s3cret", cfg.Webhook.Secret)
	assert.Equal(t, 3*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 5, cfg.Webhook.MaxAttempts)
	assert.Equal(t, "redis", cfg.Webhook.Queue)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, int32(2), cfg.CurrencyExponent)
	assert.Equal(t, "https://cdn.example.com/files", cfg.ScreenshotBaseURL)
}

func TestLoadConfig_File(t *testing.T) {
	dir := chdirTemp(t)

	yaml := []byte("webhook:\n  url: https://file.example.com/hook\n  max_attempts: 0\nsubmission:\n  rate_limit: 3\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	cfg := LoadConfig()

	assert.Equal(t, "https://file.example.com/hook", cfg.Webhook.URL)
	assert.Equal(t, 1, cfg.Webhook.MaxAttempts)
	assert.Equal(t, 3, cfg.SubmissionRateLimit)
}
