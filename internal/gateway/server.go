package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alekspetrov/shipbot/internal/history"
	"github.com/alekspetrov/shipbot/internal/logging"
	"github.com/google/uuid"
)

const (
	defaultTriggerLimit = 20
	maxTriggerLimit     = 100
)

// Server is the HTTP front door for trigger ingestion. It receives Slack
// slash commands and GitHub webhook deliveries, exposes a health probe, and
// serves the trigger journal over a small REST API. Server is safe for
// concurrent use.
type Server struct {
	config        *Config
	authConfig    *AuthConfig
	slackHandler  http.Handler
	githubHandler http.Handler
	journal       TriggerJournal
	server        *http.Server
	mu            sync.RWMutex
	running       bool
}

// Config holds gateway server configuration including network binding options.
type Config struct {
	// Host is the network interface to bind to (e.g., "127.0.0.1" or "0.0.0.0").
	Host string `yaml:"host"`
	// Port is the TCP port number to listen on.
	Port int `yaml:"port"`
}

// TriggerJournal is the read side of the trigger journal served by the API.
// *history.Store satisfies it.
type TriggerJournal interface {
	Recent(limit int) ([]*history.Record, error)
	CountByStatus() (map[string]int, error)
}

// NewServer creates a new gateway server with the given configuration.
// The server is not started until Start is called. Inbound surfaces are
// attached with WithSlackHandler and WithGitHubHandler; routes without a
// handler answer 404.
func NewServer(config *Config, opts ...ServerOption) *Server {
	s := &Server{config: config}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption is a functional option for configuring Server.
type ServerOption func(*Server)

// WithAuthConfig sets the authentication configuration for the server.
// When set with a non-empty token, API endpoints under /api/v1/* require
// a bearer token.
func WithAuthConfig(auth *AuthConfig) ServerOption {
	return func(s *Server) {
		s.authConfig = auth
	}
}

// WithSlackHandler mounts the Slack slash command handler at /slack/commands.
func WithSlackHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.slackHandler = h
	}
}

// WithGitHubHandler mounts the GitHub webhook handler at /webhooks/github.
func WithGitHubHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.githubHandler = h
	}
}

// WithJournal attaches the trigger journal served by /api/v1/triggers.
func WithJournal(journal TriggerJournal) ServerOption {
	return func(s *Server) {
		s.journal = journal
	}
}

// routes assembles the HTTP handler tree.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("/health", s.handleHealth)

	// Inbound trigger surfaces. Each verifies its own provider signature,
	// so they stay outside the bearer-auth middleware.
	if s.slackHandler != nil {
		mux.Handle("/slack/commands", s.slackHandler)
	}
	if s.githubHandler != nil {
		mux.Handle("/webhooks/github", s.githubHandler)
	}

	// Protected API endpoints
	if s.authConfig != nil && s.authConfig.Token != "" {
		auth := NewAuthenticator(s.authConfig)
		mux.Handle("/api/v1/status", auth.Middleware(http.HandlerFunc(s.handleStatus)))
		mux.Handle("/api/v1/triggers", auth.Middleware(http.HandlerFunc(s.handleTriggers)))
	} else {
		// No auth configured - allow unrestricted access (development mode)
		mux.HandleFunc("/api/v1/status", s.handleStatus)
		mux.HandleFunc("/api/v1/triggers", s.handleTriggers)
	}

	return withRequestID(mux)
}

// Start starts the gateway server and blocks until the context is cancelled
// or an error occurs. Returns an error if the server fails to start or is
// already running.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logging.WithComponent("gateway").Info("Gateway starting", slog.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server with a 30-second timeout.
// It waits for active connections to complete before returning.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.running = false
	return s.server.Shutdown(ctx)
}

func (s *Server) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

// handleStatus returns a runtime summary: which inbound surfaces are
// mounted and how many journaled triggers sit in each status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"running": s.isRunning(),
		"slack":   s.slackHandler != nil,
		"github":  s.githubHandler != nil,
	}

	if s.journal != nil {
		counts, err := s.journal.CountByStatus()
		if err != nil {
			logging.WithComponent("gateway").Warn("Failed to count journal entries", slog.Any("error", err))
		} else {
			status["triggers"] = counts
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// handleTriggers returns recent journal entries, newest first. The limit
// query parameter caps the page size at maxTriggerLimit.
func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultTriggerLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if n > maxTriggerLimit {
			n = maxTriggerLimit
		}
		limit = n
	}

	entries := []triggerEntry{}
	if s.journal != nil {
		records, err := s.journal.Recent(limit)
		if err != nil {
			logging.WithComponent("gateway").Error("Failed to read trigger journal", slog.Any("error", err))
			http.Error(w, "Failed to read trigger history", http.StatusInternalServerError)
			return
		}
		for _, rec := range records {
			entries = append(entries, newTriggerEntry(rec))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"triggers": entries,
	})
}

// triggerEntry is the wire form of a journal record.
type triggerEntry struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Command     string          `json:"command"`
	Mode        string          `json:"mode"`
	Project     string          `json:"project"`
	Branch      string          `json:"branch,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Status      string          `json:"status"`
	BuildURL    string          `json:"build_url,omitempty"`
	Error       string          `json:"error,omitempty"`
	RequestedBy string          `json:"requested_by,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func newTriggerEntry(rec *history.Record) triggerEntry {
	e := triggerEntry{
		ID:          rec.ID,
		Source:      rec.Source,
		Command:     rec.Command,
		Mode:        rec.Mode,
		Project:     rec.Project,
		Branch:      rec.Branch,
		Status:      rec.Status,
		BuildURL:    rec.BuildURL,
		Error:       rec.Error,
		RequestedBy: rec.RequestedBy,
		Channel:     rec.Channel,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
	}
	// Parameters are stored as a JSON object, so they pass through raw.
	if rec.Parameters != "" {
		e.Parameters = json.RawMessage(rec.Parameters)
	}
	return e
}

// withRequestID tags each request with an ID for log correlation. Inbound
// X-Request-ID headers are preserved so provider deliveries stay traceable
// end to end.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}
