// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < --config file < env < flags
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// Config holds all vrsindex configuration.
type Config struct {
	Version int `yaml:"version"`

	Source     SourceConfig     `yaml:"source"`
	Output     OutputConfig     `yaml:"output"`
	Errors     ErrorsConfig     `yaml:"errors"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Progress   ProgressConfig   `yaml:"progress"`
	Watch      WatchConfig      `yaml:"watch"`
}

// SourceConfig identifies the annotation source written into every locus line.
type SourceConfig struct {
	// ID is required and must fit in 0..255.
	ID   *int   `yaml:"id"`
	Name string `yaml:"name"`
}

// OutputConfig controls the index file.
type OutputConfig struct {
	Path         string `yaml:"path"`
	CounterStart uint64 `yaml:"counter_start"` // used only when the file is empty
	Recover      bool   `yaml:"recover"`       // truncate a torn tail before appending
}

// ErrorsConfig controls record-level error handling.
type ErrorsConfig struct {
	Policy         string `yaml:"policy"` // skip | strict | quarantine
	MaxErrors      int    `yaml:"max_errors"`
	QuarantinePath string `yaml:"quarantine_path"`
}

// CheckpointConfig selects and configures the checkpoint backend.
type CheckpointConfig struct {
	Enabled         bool        `yaml:"enabled"`
	Backend         string      `yaml:"backend"` // local | redis | s3
	IntervalRecords int         `yaml:"interval_records"`
	Dir             string      `yaml:"dir"`
	Redis           RedisConfig `yaml:"redis"`
	S3              S3Config    `yaml:"s3"`
}

// RedisConfig for the redis checkpoint backend.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	Database int           `yaml:"database"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// S3Config for the s3 checkpoint backend.
type S3Config struct {
	Bucket          string        `yaml:"bucket"`
	Prefix          string        `yaml:"prefix"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	UsePathStyle    bool          `yaml:"use_path_style"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LoggingConfig for the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// TelemetryConfig for OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// ProgressConfig for the terminal progress bar.
type ProgressConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WatchConfig for the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Patterns []string      `yaml:"patterns"`
}

// Error policies.
const (
	PolicySkip       = "skip"
	PolicyStrict     = "strict"
	PolicyQuarantine = "quarantine"
)

// Checkpoint backends.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
	BackendS3    = "s3"
)

// Default returns the default configuration. It has no source id.
func Default() *Config {
	stateDir := filepath.Join(os.TempDir(), "vrsindex")
	if home, err := os.UserHomeDir(); err == nil {
		stateDir = filepath.Join(home, ".vrsindex")
	}

	return &Config{
		Version: 1,
		Output: OutputConfig{
			Recover: true,
		},
		Errors: ErrorsConfig{
			Policy: PolicySkip,
		},
		Checkpoint: CheckpointConfig{
			Enabled:         true,
			Backend:         BackendLocal,
			IntervalRecords: 10000,
			Dir:             filepath.Join(stateDir, "checkpoints"),
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "vrsindex:checkpoints:",
				TTL:     7 * 24 * time.Hour,
				Timeout: 5 * time.Second,
			},
			S3: S3Config{
				Prefix:  "vrsindex/checkpoints/",
				Timeout: 30 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "vrsindex",
			SampleRate:  1.0,
		},
		Progress: ProgressConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
			Patterns: []string{"*.vcf", "*.vcf.gz", "*.vcf.bgz"},
		},
	}
}

// SourceID returns the configured source id. Call Validate first.
func (c *Config) SourceID() uint8 {
	if c.Source.ID == nil {
		return 0
	}
	return uint8(*c.Source.ID)
}

// SetSourceID sets the source id.
func (c *Config) SetSourceID(id int) {
	c.Source.ID = &id
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Source.ID == nil {
		return vrserrors.New(vrserrors.CodeConfig, "source.id is required")
	}
	if id := *c.Source.ID; id < 0 || id > 255 {
		return vrserrors.New(vrserrors.CodeConfig, "source.id must be within 0..255").
			WithContext("source.id", id)
	}

	switch c.Errors.Policy {
	case PolicySkip, PolicyStrict:
	case PolicyQuarantine:
		if c.Errors.QuarantinePath == "" {
			return vrserrors.New(vrserrors.CodeConfig, "errors.quarantine_path is required for the quarantine policy")
		}
	default:
		return vrserrors.New(vrserrors.CodeConfig, "unknown error policy").
			WithContext("errors.policy", c.Errors.Policy)
	}
	if c.Errors.MaxErrors < 0 {
		return vrserrors.New(vrserrors.CodeConfig, "errors.max_errors must not be negative")
	}

	if c.Checkpoint.Enabled {
		switch c.Checkpoint.Backend {
		case BackendLocal:
			if c.Checkpoint.Dir == "" {
				return vrserrors.New(vrserrors.CodeConfig, "checkpoint.dir is required for the local backend")
			}
		case BackendRedis:
			if c.Checkpoint.Redis.Address == "" {
				return vrserrors.New(vrserrors.CodeConfig, "checkpoint.redis.address is required")
			}
		case BackendS3:
			if c.Checkpoint.S3.Bucket == "" {
				return vrserrors.New(vrserrors.CodeConfig, "checkpoint.s3.bucket is required")
			}
		default:
			return vrserrors.New(vrserrors.CodeConfig, "unknown checkpoint backend").
				WithContext("checkpoint.backend", c.Checkpoint.Backend)
		}
		if c.Checkpoint.IntervalRecords <= 0 {
			return vrserrors.New(vrserrors.CodeConfig, "checkpoint.interval_records must be positive")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return vrserrors.New(vrserrors.CodeConfig, "unknown log level").
			WithContext("logging.level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return vrserrors.New(vrserrors.CodeConfig, "unknown log format").
			WithContext("logging.format", c.Logging.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return vrserrors.New(vrserrors.CodeConfig, "telemetry.sample_rate must be within 0..1")
	}
	return nil
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded

	searchPaths []string
	getenv      func(string) string
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config:      Default(),
		searchPaths: defaultSearchPaths(),
		getenv:      os.Getenv,
	}
}

// Load loads configuration from all sources in priority order. explicit is
// the --config file; unlike the search paths it must exist.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range m.searchPaths {
		if err := m.loadFile(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		m.paths = append(m.paths, path)
	}

	if explicit != "" {
		if err := m.loadFile(explicit); err != nil {
			return err
		}
		m.paths = append(m.paths, explicit)
	}

	return m.loadEnv()
}

// defaultSearchPaths returns config file paths in priority order.
func defaultSearchPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/vrsindex/config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".vrsindex", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".vrsindex.yaml"))
	}

	return paths
}

// loadFile decodes path over the current config. Keys absent from the file
// keep their current values.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return vrserrors.Wrap(err, vrserrors.CodeConfig, "read config file").WithContext("path", path)
	}

	if err := yaml.Unmarshal(data, m.config); err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeConfig, "parse config file").WithContext("path", path)
	}
	return nil
}

// loadEnv applies VRSINDEX_* environment variables.
func (m *Manager) loadEnv() error {
	c := m.config

	str := func(key string, dst *string) {
		if v := m.getenv(key); v != "" {
			*dst = v
		}
	}
	str("VRSINDEX_OUTPUT", &c.Output.Path)
	str("VRSINDEX_ERROR_POLICY", &c.Errors.Policy)
	str("VRSINDEX_QUARANTINE_PATH", &c.Errors.QuarantinePath)
	str("VRSINDEX_CHECKPOINT_BACKEND", &c.Checkpoint.Backend)
	str("VRSINDEX_CHECKPOINT_DIR", &c.Checkpoint.Dir)
	str("VRSINDEX_REDIS_ADDR", &c.Checkpoint.Redis.Address)
	str("VRSINDEX_REDIS_PASSWORD", &c.Checkpoint.Redis.Password)
	str("VRSINDEX_S3_BUCKET", &c.Checkpoint.S3.Bucket)
	str("VRSINDEX_S3_ENDPOINT", &c.Checkpoint.S3.Endpoint)
	str("VRSINDEX_LOG_LEVEL", &c.Logging.Level)
	str("VRSINDEX_LOG_FORMAT", &c.Logging.Format)

	if v := m.getenv("VRSINDEX_SOURCE_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return envError("VRSINDEX_SOURCE_ID", v, err)
		}
		c.SetSourceID(id)
	}
	if v := m.getenv("VRSINDEX_MAX_ERRORS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("VRSINDEX_MAX_ERRORS", v, err)
		}
		c.Errors.MaxErrors = n
	}
	if v := m.getenv("VRSINDEX_CHECKPOINT"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return envError("VRSINDEX_CHECKPOINT", v, err)
		}
		c.Checkpoint.Enabled = on
	}
	if v := m.getenv("VRSINDEX_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = v
	}
	return nil
}

func envError(key, value string, err error) error {
	return vrserrors.Wrap(err, vrserrors.CodeConfig, "invalid environment variable").
		WithContext("name", key).
		WithContext("value", value)
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.paths...)
}

// Dump writes the effective configuration as YAML.
func (m *Manager) Dump(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m.config); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
