package health

import (
	"fmt"

	"github.com/alekspetrov/shipbot/internal/config"
)

// Status represents a check or feature status
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusDisabled
)

// Check represents a configuration check result
type Check struct {
	Name    string
	Status  Status
	Message string
	Fix     string
}

// FeatureStatus represents an inbound or outbound surface with its availability
type FeatureStatus struct {
	Name    string
	Enabled bool
	Status  Status
	Note    string
}

// Report contains all startup check results
type Report struct {
	Config    []Check
	Features  []FeatureStatus
	Schedules int
}

// RunChecks inspects the config and reports what the bot can do with it
func RunChecks(cfg *config.Config) *Report {
	return &Report{
		Config:    checkConfig(cfg),
		Features:  checkFeatures(cfg),
		Schedules: len(cfg.Schedules),
	}
}

// Summary returns the number of errors and warnings across all checks
func (r *Report) Summary() (errors, warnings int) {
	for _, c := range r.Config {
		switch c.Status {
		case StatusError:
			errors++
		case StatusWarning:
			warnings++
		}
	}
	for _, f := range r.Features {
		switch f.Status {
		case StatusError:
			errors++
		case StatusWarning:
			warnings++
		}
	}
	return errors, warnings
}

// ReadyToStart reports whether the config checks allow the bot to serve.
// Feature warnings do not block startup; missing core config does.
func (r *Report) ReadyToStart() bool {
	for _, c := range r.Config {
		if c.Status == StatusError {
			return false
		}
	}
	return true
}

// checkConfig validates the core settings every deployment needs
func checkConfig(cfg *config.Config) []Check {
	checks := []Check{}

	// CircleCI token
	if cfg.CircleCI != nil && cfg.CircleCI.Token != "" {
		checks = append(checks, Check{
			Name:    "circleci",
			Status:  StatusOK,
			Message: "token configured",
		})
	} else {
		checks = append(checks, Check{
			Name:    "circleci",
			Status:  StatusError,
			Message: "no API token",
			Fix:     "set circleci.token in the config file",
		})
	}

	// Project slug
	if cfg.Project != nil && cfg.Project.Repository != "" {
		checks = append(checks, Check{
			Name:    "project",
			Status:  StatusOK,
			Message: cfg.Project.Repository,
		})
	} else {
		checks = append(checks, Check{
			Name:    "project",
			Status:  StatusError,
			Message: "no repository",
			Fix:     "set project.repository to an owner/repo slug",
		})
	}

	// Gateway listen address
	if cfg.Gateway != nil && cfg.Gateway.Port > 0 && cfg.Gateway.Port < 65536 {
		checks = append(checks, Check{
			Name:    "gateway",
			Status:  StatusOK,
			Message: fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		})
	} else {
		checks = append(checks, Check{
			Name:    "gateway",
			Status:  StatusError,
			Message: "invalid listen address",
			Fix:     "set gateway.host and gateway.port",
		})
	}

	return checks
}

// checkFeatures checks which trigger surfaces the config enables
func checkFeatures(cfg *config.Config) []FeatureStatus {
	features := []FeatureStatus{}

	// Slack slash commands
	slackEnabled := cfg.Slack != nil && cfg.Slack.Enabled
	slackStatus := boolToStatus(slackEnabled)
	slackNote := ""
	if slackEnabled && cfg.Slack.SigningSecret == "" {
		slackStatus = StatusWarning
		slackNote = "no signing secret"
	}
	features = append(features, FeatureStatus{
		Name:    "Slack",
		Enabled: slackEnabled,
		Status:  slackStatus,
		Note:    slackNote,
	})

	// Slack Socket Mode listener
	socketEnabled := cfg.Slack != nil && cfg.Slack.Enabled && cfg.Slack.SocketMode
	socketStatus := boolToStatus(socketEnabled)
	socketNote := ""
	if socketEnabled && !cfg.Slack.ValidateSocketMode() {
		socketStatus = StatusWarning
		socketNote = "no app token"
	}
	features = append(features, FeatureStatus{
		Name:    "Socket Mode",
		Enabled: socketEnabled,
		Status:  socketStatus,
		Note:    socketNote,
	})

	// GitHub PR comments
	githubEnabled := cfg.GitHub != nil && cfg.GitHub.Enabled
	githubStatus := boolToStatus(githubEnabled)
	githubNote := ""
	if githubEnabled && cfg.GitHub.Token == "" {
		githubStatus = StatusWarning
		githubNote = "no token"
	} else if githubEnabled && cfg.GitHub.WebhookSecret == "" {
		githubStatus = StatusWarning
		githubNote = "unverified deliveries"
	}
	features = append(features, FeatureStatus{
		Name:    "GitHub",
		Enabled: githubEnabled,
		Status:  githubStatus,
		Note:    githubNote,
	})

	// Trigger journal
	historyEnabled := cfg.History != nil && cfg.History.Enabled
	features = append(features, FeatureStatus{
		Name:    "History",
		Enabled: historyEnabled,
		Status:  boolToStatus(historyEnabled),
	})

	// Gateway API auth
	authEnabled := cfg.Auth != nil && cfg.Auth.Token != ""
	features = append(features, FeatureStatus{
		Name:    "API Auth",
		Enabled: authEnabled,
		Status:  boolToStatus(authEnabled),
	})

	return features
}

// boolToStatus converts bool to Status
func boolToStatus(enabled bool) Status {
	if enabled {
		return StatusOK
	}
	return StatusDisabled
}

// Symbol returns the symbol for a status
func (s Status) Symbol() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarning:
		return "○"
	case StatusError:
		return "✗"
	case StatusDisabled:
		return "·"
	default:
		return "?"
	}
}

// String returns the lowercase name of a status
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
