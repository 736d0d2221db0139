// ABOUTME: Configuration loading and credential resolution for coven-github.
// ABOUTME: YAML with environment variable expansion; GITHUB_TOKEN wins over the file.

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential indicates no GitHub token was found.
// Startup must fail before any request is read.
var ErrMissingCredential = errors.New("missing credential: GITHUB_TOKEN is not set")

// Config represents the complete coven-github configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	GitHub   GitHubConfig   `yaml:"github"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds transport configuration.
// Stdio is always served; HTTP is enabled by setting http_addr.
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	AccessToken string `yaml:"access_token"` // static bearer token for the HTTP transport
}

// GitHubConfig holds upstream API configuration.
type GitHubConfig struct {
	Token          string        `yaml:"token"`
	BaseURL        string        `yaml:"base_url"` // empty means api.github.com
	RequestTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// DatabaseConfig holds the invocation audit log configuration.
// An empty path disables the audit log.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from the given path and returns a parsed Config.
// A missing file is not an error; defaults apply. Environment variables in
// the format ${VAR_NAME} are expanded. A local .env file, if present, is
// loaded into the environment first. The GITHUB_TOKEN environment variable
// takes precedence over the github.token config key.
func Load(path string) (*Config, error) {
	cfg, err := LoadUnvalidated(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated reads the config without enforcing required credentials.
// Read-only commands that never call GitHub use it.
func LoadUnvalidated(path string) (*Config, error) {
	// Pick up a local dotfile if present; already-set variables win
	_ = godotenv.Load()

	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			expanded := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// The env var always wins; the token is loaded once and never re-read
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present.
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return ErrMissingCredential
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.GitHub.RequestTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.GitHub.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.GitHub.RequestTimeoutRaw, err)
		}
		cfg.GitHub.RequestTimeout = d
	}
	return nil
}
