package slack

// Config holds Slack adapter configuration
type Config struct {
	Enabled       bool   `yaml:"enabled"`
	BotToken      string `yaml:"bot_token"`
	AppToken      string `yaml:"app_token"`
	SigningSecret string `yaml:"signing_secret"`
	SocketMode    bool   `yaml:"socket_mode"`
}

// DefaultConfig returns default Slack configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:    false,
		SocketMode: false,
	}
}

// ValidateSocketMode checks if Socket Mode configuration is valid.
// Returns true if Socket Mode can be started, false if it should be skipped.
// Socket Mode requires a non-empty app_token (xapp-... app-level token).
func (c *Config) ValidateSocketMode() bool {
	if !c.SocketMode {
		return false
	}
	return c.AppToken != ""
}
