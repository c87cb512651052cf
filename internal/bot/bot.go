package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alekspetrov/shipbot/internal/adapters/circleci"
	"github.com/alekspetrov/shipbot/internal/adapters/github"
	"github.com/alekspetrov/shipbot/internal/adapters/slack"
	"github.com/alekspetrov/shipbot/internal/commands"
	"github.com/alekspetrov/shipbot/internal/config"
	"github.com/alekspetrov/shipbot/internal/gateway"
	"github.com/alekspetrov/shipbot/internal/history"
	"github.com/alekspetrov/shipbot/internal/logging"
	"github.com/alekspetrov/shipbot/internal/schedule"
	"github.com/alekspetrov/shipbot/internal/trigger"
)

// Bot is the main application. New assembles the surfaces the config
// enables; a disabled surface leaves its fields nil.
type Bot struct {
	config   *config.Config
	gateway  *gateway.Server
	store    *history.Store
	provider trigger.Provider
	service  *trigger.Service
	registry *commands.Registry

	slackClient   *slack.Client
	slackHandler  *slack.CommandHandler
	slackListener *slack.Listener
	githubClient  *github.Client
	githubWH      *github.WebhookHandler
	scheduler     *schedule.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option is a functional option for configuring Bot
type Option func(*Bot)

// WithProvider overrides the CI provider the trigger service calls.
// Tests substitute fakes here to avoid real CircleCI traffic.
func WithProvider(p trigger.Provider) Option {
	return func(b *Bot) {
		b.provider = p
	}
}

// New creates a new Bot instance. The config is expected to have passed
// Validate; New does not re-check required fields.
func New(cfg *config.Config, opts ...Option) (*Bot, error) {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bot{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	for _, opt := range opts {
		opt(b)
	}

	// Trigger journal, optional
	if cfg.History != nil && cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open trigger journal: %w", err)
		}
		b.store = store
	}

	// CI provider
	if b.provider == nil {
		b.provider = circleci.NewClientFromConfig(cfg.CircleCI)
	}

	b.service = trigger.NewService(b.provider, b.store)

	// Command table shared by every chat surface
	channels := map[string][]string{}
	var limitCfg *commands.RateLimitConfig
	if cfg.Commands != nil {
		if cfg.Commands.Channels != nil {
			channels = cfg.Commands.Channels
		}
		limitCfg = cfg.Commands.RateLimit
	}
	b.registry = commands.NewRegistry(commands.Config{
		Project:       cfg.Project.Repository,
		DefaultBranch: cfg.Project.DefaultBranch,
		Channels:      channels,
	}, b.service, commands.WithRateLimiter(commands.NewRateLimiter(limitCfg)))

	// Slack surface: slash command endpoint, plus the Socket Mode
	// listener when an app token is configured
	if cfg.Slack != nil && cfg.Slack.Enabled {
		b.slackClient = slack.NewClient(cfg.Slack.BotToken)
		b.slackHandler = slack.NewCommandHandler(cfg.Slack.SigningSecret, b.registry)

		if cfg.Slack.ValidateSocketMode() {
			socket := slack.NewSocketModeClient(cfg.Slack.AppToken)
			b.slackListener = slack.NewListener(socket, b.registry)
		}
	}

	// GitHub surface: PR comment webhook
	if cfg.GitHub != nil && cfg.GitHub.Enabled {
		if cfg.GitHub.APIBase != "" {
			b.githubClient = github.NewClientWithBaseURL(cfg.GitHub.Token, cfg.GitHub.APIBase)
		} else {
			b.githubClient = github.NewClient(cfg.GitHub.Token)
		}
		b.githubWH = github.NewWebhookHandler(b.githubClient, b.service,
			cfg.Project.Repository, cfg.GitHub.Mention, cfg.GitHub.WebhookSecret)
	}

	// Gateway with whichever inbound surfaces exist
	gwOpts := []gateway.ServerOption{}
	if cfg.Auth != nil {
		gwOpts = append(gwOpts, gateway.WithAuthConfig(cfg.Auth))
	}
	if b.slackHandler != nil {
		gwOpts = append(gwOpts, gateway.WithSlackHandler(b.slackHandler))
	}
	if b.githubWH != nil {
		gwOpts = append(gwOpts, gateway.WithGitHubHandler(b.githubWH))
	}
	if b.store != nil {
		gwOpts = append(gwOpts, gateway.WithJournal(b.store))
	}
	b.gateway = gateway.NewServer(cfg.Gateway, gwOpts...)

	// Cron schedules fire through the same trigger service. Deferred
	// build links go to the entry's channel when Slack can post there.
	if len(cfg.Schedules) > 0 {
		var factory schedule.ResponderFactory
		if b.slackClient != nil {
			client := b.slackClient
			factory = func(channel string) trigger.Responder {
				if channel == "" {
					return nil
				}
				return slack.NewChannelResponder(client, channel)
			}
		}
		b.scheduler = schedule.NewScheduler(b.service,
			cfg.Project.Repository, cfg.Project.DefaultBranch, cfg.Schedules, factory)
	}

	return b, nil
}

// Start starts Shipbot
func (b *Bot) Start() error {
	logging.WithComponent("bot").Info("Starting Shipbot")

	if b.scheduler != nil {
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.gateway.Start(b.ctx); err != nil {
			logging.WithComponent("bot").Error("Gateway error", slog.Any("error", err))
		}
	}()

	// A socket connect failure does not abort startup; slash commands
	// still arrive over HTTP
	if b.slackListener != nil {
		if err := b.slackListener.Start(b.ctx); err != nil {
			logging.WithComponent("bot").Warn("Socket Mode connect failed",
				slog.Any("error", err))
		}
	}

	logging.WithComponent("bot").Info("Shipbot started",
		slog.String("host", b.config.Gateway.Host),
		slog.Int("port", b.config.Gateway.Port))
	return nil
}

// Stop stops Shipbot
func (b *Bot) Stop() error {
	logging.WithComponent("bot").Info("Stopping Shipbot")

	b.cancel()

	if b.scheduler != nil {
		b.scheduler.Stop()
	}

	_ = b.gateway.Shutdown()

	// Let in-flight trigger chains deliver their deferred replies
	b.service.Wait()

	if b.store != nil {
		_ = b.store.Close()
	}
	b.wg.Wait()

	logging.WithComponent("bot").Info("Shipbot stopped")
	return nil
}

// Wait waits for Shipbot to stop
func (b *Bot) Wait() {
	b.wg.Wait()
}
