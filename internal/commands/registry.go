// Package commands defines the dispatch table behind the chat surfaces.
// Each command parses its arguments, resolves a branch, and hands a built
// trigger request to the trigger service; the table itself decides which
// commands exist, where they may be used, and how often.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alekspetrov/shipbot/internal/logging"
	"github.com/alekspetrov/shipbot/internal/trigger"
)

// Config carries the static project settings commands build trigger
// requests from. Constructed once at startup, never mutated.
type Config struct {
	Project       string              // owner/name pair the CI provider knows
	DefaultBranch string              // used when nothing else resolves
	Channels      map[string][]string // per-command channel allow-list, empty allows all
}

// Handler builds the trigger request for one invocation. A handler only
// parses and assembles; it must not perform network calls.
type Handler func(cfg Config, inv *trigger.Invocation) (trigger.Mode, *trigger.Request, error)

// Command is one immutable entry in the dispatch table. A nil Handler
// marks an informational command answered with the registry's help text.
type Command struct {
	Name     string
	Usage    string
	Help     string
	Channels []string // empty allows any channel
	Handler  Handler
}

// Triggerer starts the asynchronous trigger chain for a built request and
// returns the synchronous acknowledgment. Implemented by trigger.Service.
type Triggerer interface {
	Trigger(inv *trigger.Invocation, mode trigger.Mode, req *trigger.Request, responder trigger.Responder) string
}

// Registry is the command table. Dispatch selects by name, enforces the
// channel allow-list and the rate limit, and starts the trigger chain.
type Registry struct {
	cfg       Config
	triggerer Triggerer
	commands  map[string]*Command
	order     []string // registration order, drives help rendering
	limiter   *RateLimiter
	log       *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithRateLimiter attaches a per-channel trigger rate limiter.
func WithRateLimiter(limiter *RateLimiter) Option {
	return func(r *Registry) {
		r.limiter = limiter
	}
}

// NewRegistry creates a registry with the built-in command set registered.
func NewRegistry(cfg Config, triggerer Triggerer, opts ...Option) *Registry {
	r := &Registry{
		cfg:       cfg,
		triggerer: triggerer,
		commands:  make(map[string]*Command),
		log:       logging.WithComponent("commands"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the table. A channel list configured for the
// name overrides the descriptor's own list; registering an existing name
// replaces it.
func (r *Registry) Register(cmd *Command) {
	name := strings.ToLower(cmd.Name)
	if channels, ok := r.cfg.Channels[name]; ok {
		cmd.Channels = channels
	}
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
}

// Dispatch routes an invocation to its command and, for trigger commands,
// starts the asynchronous chain. The returned text is the immediate reply;
// the error classifies rejections so the transport can map them to a
// status and visibility.
func (r *Registry) Dispatch(ctx context.Context, inv *trigger.Invocation, responder trigger.Responder) (string, error) {
	cmd, ok := r.commands[strings.ToLower(inv.Command)]
	if !ok {
		r.log.Warn("Unknown command",
			slog.String("invocation_id", inv.ID),
			slog.String("command", inv.Command))
		msg := fmt.Sprintf("Unknown command `%s`. Run `/help` to see what I can trigger.", inv.Command)
		return msg, trigger.ErrUnknownCommand
	}

	if !channelAllowed(cmd, inv.Channel) {
		r.log.Warn("Channel not allowed",
			slog.String("invocation_id", inv.ID),
			slog.String("command", cmd.Name),
			slog.String("channel", inv.Channel))
		msg := fmt.Sprintf("`%s` is not allowed in #%s. Allowed channels: %s.",
			cmd.Name, strings.TrimPrefix(inv.Channel, "#"), joinChannels(cmd.Channels))
		return msg, trigger.ErrChannelNotAllowed
	}

	if cmd.Handler == nil {
		return r.Help(), nil
	}

	if r.limiter != nil {
		key := inv.Channel
		if key == "" {
			key = inv.Source
		}
		if !r.limiter.Allow(key) {
			r.log.Warn("Rate limited",
				slog.String("invocation_id", inv.ID),
				slog.String("command", cmd.Name),
				slog.String("channel", key))
			return "Rate limit reached for this channel. Try again in a few minutes.", trigger.ErrRateLimited
		}
	}

	mode, req, err := cmd.Handler(r.cfg, inv)
	if err != nil {
		if errors.Is(err, trigger.ErrMalformedInvocation) {
			return fmt.Sprintf("Usage: `%s`", cmd.Usage), err
		}
		return "", err
	}

	return r.triggerer.Trigger(inv, mode, req, responder), nil
}

// Help renders one line per registered command, in registration order.
func (r *Registry) Help() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range r.order {
		cmd := r.commands[name]
		fmt.Fprintf(&b, "`%s` - %s\n", cmd.Usage, cmd.Help)
	}
	return strings.TrimRight(b.String(), "\n")
}

// channelAllowed reports whether the invocation's channel may run the
// command. An empty allow-list allows every channel, and sources without a
// channel are never restricted here. Slack sends channel names without the
// leading #, so both sides are normalized before comparing.
func channelAllowed(cmd *Command, channel string) bool {
	if len(cmd.Channels) == 0 || channel == "" {
		return true
	}
	got := strings.TrimPrefix(channel, "#")
	for _, allowed := range cmd.Channels {
		if strings.TrimPrefix(allowed, "#") == got {
			return true
		}
	}
	return false
}

func joinChannels(channels []string) string {
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = "#" + strings.TrimPrefix(ch, "#")
	}
	return strings.Join(names, ", ")
}
