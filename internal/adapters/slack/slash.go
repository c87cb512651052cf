package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/alekspetrov/shipbot/internal/logging"
	"github.com/alekspetrov/shipbot/internal/trigger"
)

// Source is the invocation source recorded for commands arriving from Slack.
const Source = "slack"

// Response visibility for immediate slash command replies.
const (
	responseInChannel = "in_channel"
	responseEphemeral = "ephemeral"
)

// SlashCommand is the form payload Slack posts when a user runs a slash command.
type SlashCommand struct {
	Token       string
	TeamID      string
	ChannelID   string
	ChannelName string
	UserID      string
	UserName    string
	Command     string
	Text        string
	ResponseURL string
	TriggerID   string
}

// parseSlashCommand extracts a SlashCommand from decoded form values.
func parseSlashCommand(values url.Values) *SlashCommand {
	return &SlashCommand{
		Token:       values.Get("token"),
		TeamID:      values.Get("team_id"),
		ChannelID:   values.Get("channel_id"),
		ChannelName: values.Get("channel_name"),
		UserID:      values.Get("user_id"),
		UserName:    values.Get("user_name"),
		Command:     values.Get("command"),
		Text:        values.Get("text"),
		ResponseURL: values.Get("response_url"),
		TriggerID:   values.Get("trigger_id"),
	}
}

// Invocation converts the slash command into a trigger invocation. The
// leading slash is stripped from the command name and the free text is
// split into whitespace-separated tokens.
func (s *SlashCommand) Invocation() *trigger.Invocation {
	return &trigger.Invocation{
		ID:      uuid.New().String(),
		Command: strings.TrimPrefix(s.Command, "/"),
		Args:    strings.Fields(s.Text),
		Source:  Source,
		Channel: s.ChannelName,
		User:    s.UserName,
		Text:    s.Text,
	}
}

// Dispatcher routes an invocation to its command handler. The returned
// text is shown to the caller immediately; the error classifies failures
// so the transport can map them to a status code and visibility.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv *trigger.Invocation, responder trigger.Responder) (string, error)
}

// CommandHandler handles Slack slash command webhooks
type CommandHandler struct {
	verifier   *Verifier
	dispatcher Dispatcher
	log        *slog.Logger
}

// NewCommandHandler creates a slash command handler. Signature checks are
// skipped when signingSecret is empty.
func NewCommandHandler(signingSecret string, dispatcher Dispatcher) *CommandHandler {
	return &CommandHandler{
		verifier:   NewVerifier(signingSecret),
		dispatcher: dispatcher,
		log:        logging.WithComponent("slack.slash"),
	}
}

// ServeHTTP handles an incoming slash command. The body of the HTTP
// response is the immediate reply; anything slower than that goes through
// the command's response URL after this handler has returned.
func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Error("Failed to read request body", slog.Any("error", err))
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")
	if !h.verifier.Verify(timestamp, signature, body) {
		h.log.Warn("Invalid Slack signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		h.log.Error("Failed to parse form data", slog.Any("error", err))
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	cmd := parseSlashCommand(values)
	if cmd.Command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}

	inv := cmd.Invocation()
	ctx := logging.ContextWithInvocationID(r.Context(), inv.ID)
	ctx = logging.ContextWithSource(ctx, Source)

	h.log.Info("Slash command received",
		slog.String("invocation_id", inv.ID),
		slog.String("command", inv.Command),
		slog.String("channel", inv.Channel),
		slog.String("user", inv.User))

	message, err := h.dispatcher.Dispatch(ctx, inv, NewResponder(cmd.ResponseURL))
	if err != nil {
		h.writeDispatchError(w, inv, message, err)
		return
	}

	writeCommandResponse(w, responseInChannel, message)
}

// writeDispatchError maps dispatch failures onto the slash command
// response. Malformed invocations are a caller error and get a 400 with no
// trigger fired; unknown commands, channel rejections, and rate limits
// stay a private note to the caller.
func (h *CommandHandler) writeDispatchError(w http.ResponseWriter, inv *trigger.Invocation, message string, err error) {
	switch {
	case errors.Is(err, trigger.ErrMalformedInvocation):
		h.log.Warn("Malformed invocation",
			slog.String("command", inv.Command),
			slog.Any("error", err))
		if message == "" {
			message = err.Error()
		}
		http.Error(w, message, http.StatusBadRequest)
	case errors.Is(err, trigger.ErrUnknownCommand),
		errors.Is(err, trigger.ErrChannelNotAllowed),
		errors.Is(err, trigger.ErrRateLimited):
		writeCommandResponse(w, responseEphemeral, message)
	default:
		h.log.Error("Dispatch failed",
			slog.String("command", inv.Command),
			slog.Any("error", err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// commandResponse is the JSON Slack expects back from a slash command URL.
type commandResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// writeCommandResponse writes the immediate slash command reply.
func writeCommandResponse(w http.ResponseWriter, responseType, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(commandResponse{ResponseType: responseType, Text: text})
}
