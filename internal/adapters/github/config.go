package github

// Config holds GitHub adapter configuration
type Config struct {
	Enabled       bool   `yaml:"enabled"`
	Token         string `yaml:"token"`
	APIBase       string `yaml:"api_base"`
	WebhookSecret string `yaml:"webhook_secret"`
	Mention       string `yaml:"mention"`
}

// DefaultConfig returns default GitHub configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		APIBase: githubAPIURL,
		Mention: "@shipbot",
	}
}
