package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up by LoadFromDir.
const FileName = "qmdtutor.yaml"

// Config represents the qmdtutor configuration
type Config struct {
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Lessons     string         `yaml:"lessons,omitempty"` // Lesson directory; empty uses the bundled lessons
	Server      ServerConfig   `yaml:"server"`
	Render      RenderConfig   `yaml:"render"`
	Progress    ProgressConfig `yaml:"progress"`
	Preview     PreviewConfig  `yaml:"preview"`
	Features    FeaturesConfig `yaml:"features"`
	API         *APIConfig     `yaml:"api,omitempty"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// RenderConfig holds the simulated latencies. Durations use Go syntax
// ("1s", "800ms"); "0" disables the delay.
type RenderConfig struct {
	Delay     string `yaml:"delay,omitempty"`      // Document transform latency (default: 1s)
	ExecDelay string `yaml:"exec_delay,omitempty"` // Chunk execution latency (default: 800ms)
}

// Progress backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ProgressConfig selects where completed lessons are stored.
type ProgressConfig struct {
	Backend string `yaml:"backend"`        // memory, file, sqlite, postgres (default: file)
	Path    string `yaml:"path,omitempty"` // For file/sqlite: storage path (default: .qmdtutor/progress.json or progress.db)
	DSN     string `yaml:"dsn,omitempty"`  // For postgres: connection string (env vars expanded, default: $DATABASE_URL)
}

// PreviewConfig controls how long rendered previews stay available.
type PreviewConfig struct {
	TTL string `yaml:"ttl,omitempty"` // e.g. "10m" (default: 10m)
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	HotReload bool `yaml:"hot_reload"`
}

// APIConfig holds REST API configuration
type APIConfig struct {
	CORS      *CORSConfig      `yaml:"cors,omitempty"`
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// CORSConfig holds CORS configuration for the API
type CORSConfig struct {
	Origins []string `yaml:"origins,omitempty"` // Allowed origins (e.g., ["http://localhost:3000", "*"])
}

// RateLimitConfig holds rate limiting configuration for the API
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // Rate limit in requests per second (default: 10)
	Burst             int     `yaml:"burst,omitempty"`               // Burst size (default: 20)
	MaxTrackedIPs     int     `yaml:"max_tracked_ips,omitempty"`     // Clients tracked before LRU eviction (default: 10000)
}

// GetCORSOrigins returns the configured CORS origins, or nil if not configured
func (c *APIConfig) GetCORSOrigins() []string {
	if c == nil || c.CORS == nil {
		return nil
	}
	return c.CORS.Origins
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *APIConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *APIConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// GetMaxTrackedIPs returns the number of client IPs the rate limiter
// tracks (default: 10000)
func (c *APIConfig) GetMaxTrackedIPs() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.MaxTrackedIPs <= 0 {
		return 10000
	}
	return c.RateLimit.MaxTrackedIPs
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// GetRenderDelay returns the document transform latency (default: 1s)
func (c *Config) GetRenderDelay() time.Duration {
	return parseDuration(c.Render.Delay, time.Second)
}

// GetExecDelay returns the chunk execution latency (default: 800ms)
func (c *Config) GetExecDelay() time.Duration {
	return parseDuration(c.Render.ExecDelay, 800*time.Millisecond)
}

// GetPreviewTTL returns how long rendered previews are kept (default: 10m)
func (c *Config) GetPreviewTTL() time.Duration {
	ttl := parseDuration(c.Preview.TTL, 10*time.Minute)
	if ttl == 0 {
		return 10 * time.Minute
	}
	return ttl
}

// GetProgressBackend returns the progress backend (default: file)
func (c *Config) GetProgressBackend() string {
	if c.Progress.Backend == "" {
		return BackendFile
	}
	return c.Progress.Backend
}

// GetProgressPath returns the storage path for file and sqlite backends.
func (c *Config) GetProgressPath() string {
	if c.Progress.Path != "" {
		return c.Progress.Path
	}
	if c.GetProgressBackend() == BackendSQLite {
		return filepath.Join(".qmdtutor", "progress.db")
	}
	return filepath.Join(".qmdtutor", "progress.json")
}

// GetProgressDSN returns the postgres connection string with environment
// variable expansion, falling back to $DATABASE_URL.
func (c *Config) GetProgressDSN() string {
	if c.Progress.DSN != "" {
		return os.ExpandEnv(c.Progress.DSN)
	}
	return os.Getenv("DATABASE_URL")
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.GetProgressBackend() {
	case BackendMemory, BackendFile, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("progress.backend: unknown backend %q (want memory, file, sqlite or postgres)", c.Progress.Backend)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	for name, v := range map[string]string{
		"render.delay":      c.Render.Delay,
		"render.exec_delay": c.Render.ExecDelay,
		"preview.ttl":       c.Preview.TTL,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title:       "Quarto Quest",
		Description: "An interactive tutorial for learning Quarto",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Progress: ProgressConfig{
			Backend: BackendFile,
		},
		Features: FeaturesConfig{
			HotReload: true,
		},
	}
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return config, nil
}

// LoadFromDir looks for qmdtutor.yaml in the given directory.
// If none is found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
