// internal/config/config.go
//
// This package handles configuration and the .newsfeed directory structure.
// Every project directory the feed runs from gets a .newsfeed/ folder that
// holds the config file, the reaction state and the log.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// FeedDir is the name of the directory we create in each project
	FeedDir = ".newsfeed"

	DefaultAPIURL     = "http://localhost:8080"
	DefaultAPITimeout = 10 * time.Second
	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8080
)

const defaultProjectConfigYAML = `# newsfeed project configuration
version: 1

# Remote news API. NEWSFEED_API_URL in the environment (or .env) wins over this.
api:
  base_url: http://localhost:8080
  timeout: 10s

# In-memory development server started by "newsfeed serve".
devserver:
  host: 127.0.0.1
  port: 8080
`

// APIConfig describes how to reach the remote news API.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout,omitempty"`
}

// DevServerConfig captures the bind address of the development server.
type DevServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// ProjectConfig models .newsfeed/config.yaml.
type ProjectConfig struct {
	Version   int             `yaml:"version"`
	API       APIConfig       `yaml:"api"`
	DevServer DevServerConfig `yaml:"devserver"`
}

// Config holds the runtime configuration for the feed.
type Config struct {
	// ProjectDir is the directory the feed was started from
	ProjectDir string

	// FeedProjectDir is ProjectDir/.newsfeed
	FeedProjectDir string

	Project ProjectConfig
}

// InitFeedDir creates the .newsfeed directory structure in the given project directory.
//
// Structure created:
// .newsfeed/
// ├── config.yaml
// ├── logs/   <- diagnostic log
// └── state/  <- persisted reactions and ownership
func InitFeedDir(projectDir string) error {
	feedDir := filepath.Join(projectDir, FeedDir)

	dirs := []string{
		filepath.Join(feedDir, "logs"),
		filepath.Join(feedDir, "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(feedDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
// A .env file in the project directory is loaded first so its values act as
// environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	envPath := filepath.Join(projectDir, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envPath, err)
	}

	cfg := &Config{
		ProjectDir:     projectDir,
		FeedProjectDir: filepath.Join(projectDir, FeedDir),
		Project:        defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.Project.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.FeedProjectDir, "logs")
}

// LogPath returns the diagnostic log file
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "newsfeed.log")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.FeedProjectDir, "state")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.FeedProjectDir, "config.yaml")
}

// APIBaseURL returns the remote API base address without a trailing slash.
func (c *Config) APIBaseURL() string {
	return strings.TrimRight(c.Project.API.BaseURL, "/")
}

// SetAPIBaseURL overrides the API base address for this run only.
func (c *Config) SetAPIBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if err := validateBaseURL(raw); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Project.API.BaseURL = raw
	return nil
}

// APITimeout returns the per-request timeout for remote calls. Zero means
// requests are awaited indefinitely.
func (c *Config) APITimeout() time.Duration {
	d, err := parseTimeout(c.Project.API.Timeout)
	if err != nil {
		return DefaultAPITimeout
	}
	return d
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: DefaultAPITimeout.String(),
		},
		DevServer: DevServerConfig{
			Host: DefaultServerHost,
			Port: DefaultServerPort,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.API.BaseURL) == "" {
		pc.API.BaseURL = DefaultAPIURL
	}
	if strings.TrimSpace(pc.DevServer.Host) == "" {
		pc.DevServer.Host = DefaultServerHost
	}
	if pc.DevServer.Port == 0 {
		pc.DevServer.Port = DefaultServerPort
	}
}

func (pc *ProjectConfig) normalize() {
	pc.API.BaseURL = strings.TrimSpace(pc.API.BaseURL)
	pc.API.Timeout = strings.TrimSpace(pc.API.Timeout)
	pc.DevServer.Host = strings.TrimSpace(pc.DevServer.Host)
}

func (pc *ProjectConfig) applyEnvOverrides() error {
	if value := strings.TrimSpace(os.Getenv("NEWSFEED_API_URL")); value != "" {
		pc.API.BaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("NEWSFEED_API_TIMEOUT")); value != "" {
		pc.API.Timeout = value
	}
	if value := strings.TrimSpace(os.Getenv("NEWSFEED_SERVER_HOST")); value != "" {
		pc.DevServer.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("NEWSFEED_SERVER_PORT")); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("NEWSFEED_SERVER_PORT: %w", err)
		}
		pc.DevServer.Port = port
	}
	return nil
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if err := validateBaseURL(pc.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if _, err := parseTimeout(pc.API.Timeout); err != nil {
		return fmt.Errorf("api.timeout: %w", err)
	}
	if pc.DevServer.Port < 0 || pc.DevServer.Port > 65535 {
		return fmt.Errorf("devserver.port must be between 0 and 65535")
	}
	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func parseTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return DefaultAPITimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative")
	}
	return d, nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
