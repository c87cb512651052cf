package circleci

import "time"

// Config holds CircleCI client configuration
type Config struct {
	Token        string `yaml:"token"`
	BaseURL      string `yaml:"base_url"`
	PollAttempts int    `yaml:"poll_attempts"`
	PollDelay    int    `yaml:"poll_delay"`   // seconds between v2 workflow polls
	HTTPTimeout  int    `yaml:"http_timeout"` // seconds
}

// DefaultConfig returns default CircleCI configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      circleCIBaseURL,
		PollAttempts: defaultPollAttempts,
		PollDelay:    int(defaultPollDelay / time.Second),
		HTTPTimeout:  30,
	}
}

// NewClientFromConfig creates a client from file configuration
func NewClientFromConfig(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = circleCIBaseURL
	}

	var opts []Option
	if cfg.PollAttempts > 0 {
		opts = append(opts, WithPolling(cfg.PollAttempts, time.Duration(cfg.PollDelay)*time.Second))
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, WithTimeout(time.Duration(cfg.HTTPTimeout)*time.Second))
	}

	return NewClientWithBaseURL(cfg.Token, baseURL, opts...)
}
