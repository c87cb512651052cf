package slack

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/alekspetrov/shipbot/internal/logging"
	"github.com/alekspetrov/shipbot/internal/trigger"
)

// Listener consumes slash commands from a Socket Mode connection and routes
// them through the command dispatcher. Both the immediate acknowledgment
// and the deferred build link travel over the command's response URL, since
// a socket envelope has no HTTP response to carry them.
type Listener struct {
	socket     *SocketModeClient
	dispatcher Dispatcher
	log        *slog.Logger
}

// NewListener creates a listener over the given socket client.
func NewListener(socket *SocketModeClient, dispatcher Dispatcher) *Listener {
	return &Listener{
		socket:     socket,
		dispatcher: dispatcher,
		log:        logging.WithComponent("slack.listener"),
	}
}

// Start connects to Socket Mode and consumes commands until ctx is
// cancelled. It returns once the initial connection is established; the
// consume loop runs in the background.
func (l *Listener) Start(ctx context.Context) error {
	ch, err := l.socket.Listen(ctx)
	if err != nil {
		return err
	}

	go func() {
		for evt := range ch {
			l.handleCommand(ctx, evt)
		}
		l.log.Info("socket listener stopped")
	}()

	return nil
}

// handleCommand turns one socket command into an invocation and dispatches
// it. Whatever the dispatcher answers, success ack or rejection text, is
// posted back through the response URL.
func (l *Listener) handleCommand(ctx context.Context, evt *CommandEvent) {
	inv := &trigger.Invocation{
		ID:      uuid.New().String(),
		Command: strings.TrimPrefix(evt.Command, "/"),
		Args:    strings.Fields(evt.Text),
		Source:  Source,
		Channel: evt.ChannelName,
		User:    evt.UserName,
		Text:    evt.Text,
	}

	ctx = logging.ContextWithInvocationID(ctx, inv.ID)
	ctx = logging.ContextWithSource(ctx, Source)

	l.log.Info("socket command received",
		slog.String("invocation_id", inv.ID),
		slog.String("command", inv.Command),
		slog.String("channel", inv.Channel),
		slog.String("user", inv.User))

	responder := NewResponder(evt.ResponseURL)

	message, err := l.dispatcher.Dispatch(ctx, inv, responder)
	if err != nil {
		l.log.Warn("dispatch failed",
			slog.String("command", inv.Command),
			slog.Any("error", err))
		if message == "" {
			message = err.Error()
		}
	}

	if message != "" {
		if err := responder.Respond(ctx, inv, message); err != nil {
			l.log.Warn("failed to deliver reply",
				slog.String("invocation_id", inv.ID),
				slog.Any("error", err))
		}
	}
}
