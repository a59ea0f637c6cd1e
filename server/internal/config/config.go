package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort       = 50051
	DefaultHTTPPort       = 8080
	DefaultSweepInterval  = time.Hour
	DefaultMaxAgeHours    = 24
	DefaultStreamInterval = 5 * time.Second

	DefaultActivityCapacity = 256
	DefaultAnalysisWorkers  = 2
	DefaultAnalysisQueue    = 100
	DefaultAnalysisTimeout  = 30 * time.Second
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC health endpoint listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API, metrics and WebSocket stream listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates REST and gRPC clients.
	Auth AuthConfig `yaml:"auth"`

	// Sweep controls age-based eviction of tracked resources.
	Sweep SweepConfig `yaml:"sweep"`

	// Stream controls the WebSocket broadcast.
	Stream StreamConfig `yaml:"stream"`

	// Activity sizes the recent-activity feed.
	Activity ActivityConfig `yaml:"activity"`

	// Analysis configures hand-off of new captures to an image analyzer.
	Analysis AnalysisConfig `yaml:"analysis"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header (and gRPC metadata key) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// SweepConfig controls the cleanup loop.
type SweepConfig struct {
	// Interval is how often expired resources are swept. Default: 1h.
	Interval time.Duration `yaml:"interval"`

	// MaxAgeHours is the eviction threshold; resources strictly older are
	// removed. Fractions are allowed. Default: 24.
	MaxAgeHours float64 `yaml:"max_age_hours"`

	// RemoveFiles deletes the files behind evicted and purged resources.
	RemoveFiles bool `yaml:"remove_files"`

	// RootDir confines file removal to this directory when set.
	RootDir string `yaml:"root_dir"`
}

// StreamConfig controls the WebSocket resource stream.
type StreamConfig struct {
	// Interval between broadcasts. Default: 5s.
	Interval time.Duration `yaml:"interval"`
}

// ActivityConfig controls the recent-activity feed.
type ActivityConfig struct {
	// Capacity is the number of events retained. Default: 256.
	Capacity int `yaml:"capacity"`
}

// AnalysisConfig controls the analysis dispatcher. Analysis is disabled when
// Endpoint is empty.
type AnalysisConfig struct {
	// Endpoint is the analyzer URL each capture is POSTed to.
	Endpoint string `yaml:"endpoint"`

	// KeyEnv names the environment variable holding the analyzer API key.
	KeyEnv string `yaml:"key_env"`

	// Header carries the analyzer API key. Default: x-api-key.
	Header string `yaml:"header"`

	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`

	// DeleteAfter drops a capture from the store once analysed. Its file is
	// removed too when sweep.remove_files is set.
	DeleteAfter bool `yaml:"delete_after"`
}

// Enabled reports whether an analyzer endpoint is configured.
func (a AnalysisConfig) Enabled() bool { return a.Endpoint != "" }

// Key returns the analyzer API key resolved from the environment.
func (a AnalysisConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			Sweep: SweepConfig{
				Interval:    DefaultSweepInterval,
				MaxAgeHours: DefaultMaxAgeHours,
			},
			Stream: StreamConfig{
				Interval: DefaultStreamInterval,
			},
			Activity: ActivityConfig{
				Capacity: DefaultActivityCapacity,
			},
			Analysis: AnalysisConfig{
				Workers:     DefaultAnalysisWorkers,
				QueueSize:   DefaultAnalysisQueue,
				Timeout:     DefaultAnalysisTimeout,
				DeleteAfter: true,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Sweep.Interval <= 0 {
		return fmt.Errorf("server.sweep.interval must be positive")
	}
	if h := cfg.Server.Sweep.MaxAgeHours; math.IsNaN(h) || h < 0 {
		return fmt.Errorf("server.sweep.max_age_hours must be a non-negative number")
	}
	if cfg.Server.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	if cfg.Server.Activity.Capacity <= 0 {
		return fmt.Errorf("server.activity.capacity must be positive")
	}
	if a := cfg.Server.Analysis; a.Enabled() {
		u, err := url.Parse(a.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server.analysis.endpoint %q must be an http(s) URL", a.Endpoint)
		}
		if a.Workers <= 0 || a.QueueSize <= 0 || a.Timeout <= 0 {
			return fmt.Errorf("server.analysis workers, queue_size and timeout must be positive")
		}
	}
	return nil
}
