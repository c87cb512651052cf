package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alekspetrov/shipbot/internal/adapters/circleci"
	"github.com/alekspetrov/shipbot/internal/adapters/github"
	"github.com/alekspetrov/shipbot/internal/adapters/slack"
	"github.com/alekspetrov/shipbot/internal/commands"
	"github.com/alekspetrov/shipbot/internal/gateway"
	"github.com/alekspetrov/shipbot/internal/logging"
)

// Config represents the main configuration
type Config struct {
	Version   string              `yaml:"version"`
	Gateway   *gateway.Config     `yaml:"gateway"`
	Auth      *gateway.AuthConfig `yaml:"auth"`
	Project   *ProjectConfig      `yaml:"project"`
	CircleCI  *circleci.Config    `yaml:"circleci"`
	Slack     *slack.Config       `yaml:"slack"`
	GitHub    *github.Config      `yaml:"github"`
	Commands  *CommandsConfig     `yaml:"commands"`
	History   *HistoryConfig      `yaml:"history"`
	Schedules []*ScheduleConfig   `yaml:"schedules"`
	Logging   *logging.Config     `yaml:"logging"`
}

// ProjectConfig identifies the repository whose CI gets triggered
type ProjectConfig struct {
	// Repository is the owner/repo slug, e.g. "acme/ios-app".
	Repository    string `yaml:"repository"`
	DefaultBranch string `yaml:"default_branch"`
}

// CommandsConfig holds command dispatch settings
type CommandsConfig struct {
	// Channels restricts commands to Slack channels, keyed by command name.
	// A command without an entry is allowed everywhere.
	Channels  map[string][]string       `yaml:"channels"`
	RateLimit *commands.RateLimitConfig `yaml:"rate_limit"`
}

// HistoryConfig holds trigger journal settings
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ScheduleConfig defines one cron-driven trigger. Exactly one of Pipeline
// or Lane selects the mode.
type ScheduleConfig struct {
	Name     string `yaml:"name"`
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
	Pipeline string `yaml:"pipeline"`
	Lane     string `yaml:"lane"`
	Branch   string `yaml:"branch"`
	Options  string `yaml:"options"`
	// Channel receives the deferred build link via chat.postMessage.
	Channel string `yaml:"channel"`
}

// Validate checks one schedule entry
func (s *ScheduleConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if (s.Pipeline == "") == (s.Lane == "") {
		return fmt.Errorf("exactly one of pipeline or lane is required")
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Version: "1.0",
		Gateway: &gateway.Config{
			Host: "127.0.0.1",
			Port: 9090,
		},
		Auth: &gateway.AuthConfig{},
		Project: &ProjectConfig{
			DefaultBranch: "develop",
		},
		CircleCI: circleci.DefaultConfig(),
		Slack:    slack.DefaultConfig(),
		GitHub:   github.DefaultConfig(),
		Commands: &CommandsConfig{
			Channels:  map[string][]string{},
			RateLimit: commands.DefaultRateLimitConfig(),
		},
		History: &HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, ".shipbot", "data"),
		},
		Schedules: []*ScheduleConfig{},
		Logging:   logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Return defaults if no config file
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Expand paths
	if config.History != nil {
		config.History.Path = expandPath(config.History.Path)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".shipbot", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Gateway == nil {
		return fmt.Errorf("gateway configuration is required")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
	}
	if c.Project == nil || c.Project.Repository == "" {
		return fmt.Errorf("project repository is required")
	}
	if !strings.Contains(c.Project.Repository, "/") {
		return fmt.Errorf("invalid project repository %q: expected owner/repo", c.Project.Repository)
	}
	if c.CircleCI == nil || c.CircleCI.Token == "" {
		return fmt.Errorf("circleci token is required")
	}
	if c.Slack != nil && c.Slack.Enabled && c.Slack.SocketMode && c.Slack.AppToken == "" {
		return fmt.Errorf("slack app_token is required when socket_mode is enabled")
	}
	if c.GitHub != nil && c.GitHub.Enabled && c.GitHub.Token == "" {
		return fmt.Errorf("github token is required when the github adapter is enabled")
	}
	for _, sched := range c.Schedules {
		if err := sched.Validate(); err != nil {
			return fmt.Errorf("schedule %q: %w", sched.Name, err)
		}
	}
	return nil
}
