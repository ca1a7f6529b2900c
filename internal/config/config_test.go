package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidAfterDefaults(t *testing.T) {
	cfg := DefaultConfig()
	applyDefaults(cfg)
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 2*cfg.Detection.WindowDuration, cfg.Detection.EvictionGrace)
	assert.Equal(t, 3, cfg.Detection.Threshold)
	assert.Equal(t, 8192, cfg.Parser.MaxLineLength)
	assert.Equal(t, OverflowEvictOldest, cfg.Detection.OverflowPolicy)
}

func TestValidateRejectsBrokenPolicy(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.Detection.Threshold = 0 }},
		{"negative threshold", func(c *Config) { c.Detection.Threshold = -2 }},
		{"zero window", func(c *Config) { c.Detection.WindowDuration = 0 }},
		{"negative window", func(c *Config) { c.Detection.WindowDuration = -time.Second }},
		{"negative grace", func(c *Config) { c.Detection.EvictionGrace = -time.Second }},
		{"zero identities", func(c *Config) { c.Detection.MaxIdentities = -1 }},
		{"bad overflow policy", func(c *Config) { c.Detection.OverflowPolicy = "explode" }},
		{"zero line length", func(c *Config) { c.Parser.MaxLineLength = -1 }},
		{"webhook without url", func(c *Config) { c.Delivery.Webhook.Enabled = true }},
		{"file sink without path", func(c *Config) { c.Delivery.File.Enabled = true }},
		{"kafka ingest incomplete", func(c *Config) { c.Ingest.Kafka.Enabled = true }},
		{"file tail without files", func(c *Config) { c.Ingest.FileTail.Enabled = true }},
		{"bad storage driver", func(c *Config) { c.Storage.Enabled = true; c.Storage.Driver = "oracle" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			applyDefaults(cfg)
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authwatch.yaml")
	content := `
log_level: debug
detection:
  window_duration: 30s
  threshold: 5
  overflow_policy: reject
delivery:
  stdout:
    enabled: false
  file:
    enabled: true
    path: alerts.jsonl
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Detection.WindowDuration)
	assert.Equal(t, 60*time.Second, cfg.Detection.EvictionGrace)
	assert.Equal(t, 5, cfg.Detection.Threshold)
	assert.Equal(t, OverflowReject, cfg.Detection.OverflowPolicy)
	assert.False(t, cfg.Delivery.Stdout.Enabled)
	assert.True(t, cfg.Delivery.File.Enabled)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authwatch.json")
	content := `{"detection":{"threshold":4},"api":{"enabled":false}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Detection.Threshold)
	assert.False(t, cfg.API.Enabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detection:\n  threshold: 0\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestManagerReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detection:\n  threshold: 3\n"), 0o644))
	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Get().Detection.Threshold)

	require.NoError(t, os.WriteFile(path, []byte("detection:\n  threshold: 7\n"), 0o644))
	cfg, err := m.Reload()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Detection.Threshold)
	assert.Equal(t, 7, m.Get().Detection.Threshold)
}

func TestStaticManager(t *testing.T) {
	cfg := DefaultConfig()
	applyDefaults(cfg)
	m := NewStaticManager(cfg)
	assert.Equal(t, cfg, m.Get())
	needs, err := m.NeedsReload()
	require.NoError(t, err)
	assert.False(t, needs)
}
