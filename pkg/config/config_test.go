package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

func newTestManager(env map[string]string, paths ...string) *Manager {
	m := NewManager()
	m.searchPaths = paths
	m.getenv = func(k string) string { return env[k] }
	return m
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_RequiresSourceID(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, vrserrors.ErrConfig))

	cfg.SetSourceID(1)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint8(1), cfg.SourceID())
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	system := writeFile(t, dir, "system.yaml", `
source:
  id: 3
errors:
  policy: strict
checkpoint:
  interval_records: 50
`)
	project := writeFile(t, dir, "project.yaml", `
errors:
  policy: quarantine
  quarantine_path: /tmp/q.jsonl
progress:
  enabled: false
`)
	explicit := writeFile(t, dir, "explicit.yaml", `
checkpoint:
  backend: redis
  redis:
    address: redis:6379
    timeout: 2s
`)

	m := newTestManager(map[string]string{
		"VRSINDEX_SOURCE_ID":  "7",
		"VRSINDEX_MAX_ERRORS": "10",
	}, system, filepath.Join(dir, "missing.yaml"), project)

	require.NoError(t, m.Load(explicit))
	cfg := m.Get()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint8(7), cfg.SourceID(), "env overrides files")
	assert.Equal(t, PolicyQuarantine, cfg.Errors.Policy)
	assert.Equal(t, 10, cfg.Errors.MaxErrors)
	assert.Equal(t, 50, cfg.Checkpoint.IntervalRecords)
	assert.False(t, cfg.Progress.Enabled, "false in a file overrides a true default")
	assert.Equal(t, BackendRedis, cfg.Checkpoint.Backend)
	assert.Equal(t, "redis:6379", cfg.Checkpoint.Redis.Address)
	assert.Equal(t, 2*time.Second, cfg.Checkpoint.Redis.Timeout)
	assert.Equal(t, "vrsindex:checkpoints:", cfg.Checkpoint.Redis.Prefix, "untouched nested keys keep defaults")
	assert.Equal(t, []string{system, project, explicit}, m.GetPaths())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "source: [1, 2\n")

	tests := []struct {
		name     string
		env      map[string]string
		paths    []string
		explicit string
	}{
		{"missing explicit file", nil, nil, filepath.Join(dir, "nope.yaml")},
		{"unparsable file", nil, []string{bad}, ""},
		{"bad source id env", map[string]string{"VRSINDEX_SOURCE_ID": "one"}, nil, ""},
		{"bad checkpoint env", map[string]string{"VRSINDEX_CHECKPOINT": "maybe"}, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(tt.env, tt.paths...)
			assert.Error(t, m.Load(tt.explicit))
		})
	}
}

func TestLoad_OTLPEndpointEnablesTelemetry(t *testing.T) {
	m := newTestManager(map[string]string{"VRSINDEX_OTLP_ENDPOINT": "collector:4317"})
	require.NoError(t, m.Load(""))
	assert.True(t, m.Get().Telemetry.Enabled)
	assert.Equal(t, "collector:4317", m.Get().Telemetry.Endpoint)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"source id too large", func(c *Config) { c.SetSourceID(256) }},
		{"negative source id", func(c *Config) { c.SetSourceID(-1) }},
		{"unknown policy", func(c *Config) { c.Errors.Policy = "ignore" }},
		{"quarantine without path", func(c *Config) { c.Errors.Policy = PolicyQuarantine }},
		{"negative max errors", func(c *Config) { c.Errors.MaxErrors = -1 }},
		{"unknown backend", func(c *Config) { c.Checkpoint.Backend = "etcd" }},
		{"s3 without bucket", func(c *Config) { c.Checkpoint.Backend = BackendS3 }},
		{"zero interval", func(c *Config) { c.Checkpoint.IntervalRecords = 0 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.SetSourceID(1)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, vrserrors.ErrConfig))
		})
	}

	cfg := Default()
	cfg.SetSourceID(0)
	cfg.Checkpoint.Enabled = false
	cfg.Checkpoint.Backend = "anything"
	assert.NoError(t, cfg.Validate(), "backend is ignored when checkpoints are off")
}

func TestDump(t *testing.T) {
	m := newTestManager(map[string]string{"VRSINDEX_SOURCE_ID": "4"})
	require.NoError(t, m.Load(""))

	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf))
	assert.Contains(t, buf.String(), "id: 4")
	assert.Contains(t, buf.String(), "policy: skip")
}
