package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultBufferSize = 1000
	DefaultIDStrategy = "filename"
)

// DefaultExtensions are the capture file types picked up from spool directories.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".heic"}

// Config is the top-level configuration file. The `server:` section is
// parsed by the server binary and ignored here.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the base URL of fridgekeep-server's HTTP API.
	ServerEndpoint string `yaml:"server_endpoint"`

	// OwnerID is recorded as the owner of every resource this agent registers.
	OwnerID string `yaml:"owner_id"`

	// SpoolDirs are the directories the camera / image picker writes captures to.
	SpoolDirs []string `yaml:"spool_dirs"`

	// Extensions limits which files count as captures (case-insensitive).
	Extensions []string `yaml:"extensions"`

	// IDStrategy selects how resource IDs are derived: filename | uuid.
	IDStrategy string `yaml:"id_strategy"`

	// BufferSize is the maximum number of registrations held in memory while
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// ServerAuth configures how the agent authenticates to fridgekeep-server.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// AuthConfig specifies how requests to the server are authenticated.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name to send the key in. Defaults to x-api-key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	normalize(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			IDStrategy: DefaultIDStrategy,
			BufferSize: DefaultBufferSize,
		},
	}
}

// normalize fills list defaults (yaml.v3 would append to a pre-filled slice)
// and lower-cases extensions with a leading dot.
func normalize(cfg *Config) {
	if len(cfg.Agent.Extensions) == 0 {
		cfg.Agent.Extensions = append([]string(nil), DefaultExtensions...)
	}
	for i, ext := range cfg.Agent.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Agent.Extensions[i] = ext
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	u, err := url.Parse(a.ServerEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("agent.server_endpoint %q must be an http(s) URL", a.ServerEndpoint)
	}
	if a.OwnerID == "" {
		return fmt.Errorf("agent.owner_id is required")
	}
	if len(a.SpoolDirs) == 0 {
		return fmt.Errorf("agent.spool_dirs must list at least one directory")
	}
	for i, d := range a.SpoolDirs {
		if d == "" {
			return fmt.Errorf("agent.spool_dirs[%d] is empty", i)
		}
	}
	for i, ext := range a.Extensions {
		if ext == "" || ext == "." {
			return fmt.Errorf("agent.extensions[%d] is empty", i)
		}
	}
	switch a.IDStrategy {
	case "filename", "uuid":
	default:
		return fmt.Errorf("agent.id_strategy %q unknown: want filename|uuid", a.IDStrategy)
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	switch a.ServerAuth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth.mode %q unknown: want apikey|none", a.ServerAuth.Mode)
	}
	return nil
}
