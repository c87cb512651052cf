package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/alekspetrov/shipbot/internal/logging"
	"github.com/alekspetrov/shipbot/internal/trigger"
)

// Source is the invocation source recorded for commands arriving as
// pull-request comments.
const Source = "github"

// laneCommand is the second body token that routes a comment to lane mode.
// Any other second token is taken as a pipeline name.
const laneCommand = "fastlane"

// Triggerer starts the asynchronous trigger chain for a built request and
// returns the synchronous acknowledgment. Implemented by trigger.Service.
type Triggerer interface {
	Trigger(inv *trigger.Invocation, mode trigger.Mode, req *trigger.Request, responder trigger.Responder) string
}

// commentEvent is the slice of an issue-comment delivery the trigger flow
// reads: the action, the comment body and author, and the issue number with
// its pull-request marker.
type commentEvent struct {
	Action  string          `json:"action"`
	Issue   *commentIssue   `json:"issue"`
	Comment *commentDetails `json:"comment"`
}

type commentIssue struct {
	Number      int              `json:"number"`
	PullRequest *pullRequestLink `json:"pull_request"`
}

// pullRequestLink is present on an issue object only when the issue is a
// pull request.
type pullRequestLink struct {
	URL string `json:"url"`
}

type commentDetails struct {
	Body string `json:"body"`
	User User   `json:"user"`
}

// pingEvent is the connectivity check GitHub sends when a webhook is first
// configured.
type pingEvent struct {
	Zen string `json:"zen"`
}

// WebhookHandler dispatches GitHub webhook deliveries for one repository.
// Payload shapes are tried in order: an issue comment may become a trigger,
// a ping is acknowledged, and anything else is rejected.
type WebhookHandler struct {
	client    *Client
	triggerer Triggerer
	project   string
	owner     string
	repo      string
	mention   string
	secret    string
	log       *slog.Logger
}

// NewWebhookHandler creates a webhook handler. project is the owner/name
// pair the CI provider knows the repository by, mention is the marker a
// comment must begin with, and signature checks are skipped when secret is
// empty.
func NewWebhookHandler(client *Client, triggerer Triggerer, project, mention, secret string) *WebhookHandler {
	owner, repo, _ := strings.Cut(project, "/")
	return &WebhookHandler{
		client:    client,
		triggerer: triggerer,
		project:   project,
		owner:     owner,
		repo:      repo,
		mention:   mention,
		secret:    secret,
		log:       logging.WithComponent("github.webhook"),
	}
}

// VerifyWebhookSignature verifies a GitHub webhook signature against a
// secret. An empty secret skips verification (development mode).
func VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	if secret == "" {
		return true
	}

	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}

	expectedSig := signature[7:] // Remove "sha256=" prefix

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	actualSig := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expectedSig), []byte(actualSig))
}

// payloadMatcher inspects a webhook body and, when it recognizes the shape,
// handles it fully and reports true.
type payloadMatcher func(w http.ResponseWriter, r *http.Request, body []byte) bool

// ServeHTTP handles one webhook delivery. The HTTP response carries the
// acknowledgment; the build link arrives later as a pull-request comment.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	if !VerifyWebhookSignature(body, r.Header.Get("X-Hub-Signature-256"), h.secret) {
		h.log.Warn("Invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	// The first matcher that claims the payload writes the response.
	for _, match := range []payloadMatcher{h.matchComment, h.matchPing} {
		if match(w, r, body) {
			return
		}
	}

	http.Error(w, "Unrecognized payload", http.StatusBadRequest)
}

// matchComment claims any payload carrying both a comment and an issue,
// whether or not the comment becomes a trigger.
func (h *WebhookHandler) matchComment(w http.ResponseWriter, r *http.Request, body []byte) bool {
	var event commentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return false
	}
	if event.Comment == nil || event.Issue == nil {
		return false
	}
	h.handleComment(w, r, &event)
	return true
}

// matchPing recognizes the connectivity check by its zen field.
func (h *WebhookHandler) matchPing(w http.ResponseWriter, _ *http.Request, body []byte) bool {
	var event pingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return false
	}
	if event.Zen == "" {
		return false
	}
	h.log.Debug("Webhook ping", slog.String("zen", event.Zen))
	writeAck(w, "pong")
	return true
}

// handleComment runs the comment trigger flow. The body must begin with
// the mention marker and carry at least two tokens after it, and the issue
// must be a pull request. The pull request's head branch overrides every
// other branch input on this path, including an explicit branch option.
func (h *WebhookHandler) handleComment(w http.ResponseWriter, r *http.Request, event *commentEvent) {
	if event.Action != "created" {
		writeAck(w, "Ignored")
		return
	}

	tokens := strings.Fields(event.Comment.Body)
	if len(tokens) == 0 || tokens[0] != h.mention {
		// An ordinary comment, not addressed to the bot.
		writeAck(w, "Ignored")
		return
	}

	if event.Issue.PullRequest == nil {
		h.log.Debug("Mention outside a pull request ignored",
			slog.Int("issue", event.Issue.Number))
		writeAck(w, "Ignored")
		return
	}

	if len(tokens) < 3 {
		h.log.Warn("Malformed comment invocation",
			slog.Int("pr", event.Issue.Number),
			slog.String("body", event.Comment.Body))
		usage := fmt.Sprintf("Usage: %s <pipeline> [options...] or %s %s <lane> [options...]",
			h.mention, h.mention, laneCommand)
		http.Error(w, usage, http.StatusBadRequest)
		return
	}

	// The second body token selects the mode: the fastlane literal consumes
	// itself and hands the rest to lane mode, anything else is a pipeline
	// name.
	var (
		mode      trigger.Mode
		command   string
		parseArgs []string
	)
	if tokens[1] == laneCommand {
		mode = trigger.ModeLane
		command = laneCommand
		parseArgs = tokens[2:]
	} else {
		mode = trigger.ModePipeline
		command = tokens[1]
		parseArgs = tokens[1:]
	}

	parsed, err := trigger.Parse(parseArgs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inv := &trigger.Invocation{
		ID:      uuid.New().String(),
		Command: command,
		Args:    tokens[2:],
		Source:  Source,
		User:    event.Comment.User.Login,
		Text:    strings.Join(tokens[1:], " "),
	}

	ctx := logging.ContextWithInvocationID(r.Context(), inv.ID)
	ctx = logging.ContextWithSource(ctx, Source)

	pr, err := h.client.GetPullRequest(ctx, h.owner, h.repo, event.Issue.Number)
	if err != nil {
		h.log.Error("Failed to resolve pull request",
			slog.Int("number", event.Issue.Number),
			slog.Any("error", err))
		http.Error(w, "Failed to resolve pull request", http.StatusBadGateway)
		return
	}
	if pr.Head.Ref == "" {
		http.Error(w, "Pull request has no head branch", http.StatusBadGateway)
		return
	}

	var params trigger.ParameterSet
	if mode == trigger.ModeLane {
		params = trigger.LaneParameters(parsed.Name, parsed.Rest)
	} else {
		params = trigger.PipelineParameters(parsed.Name, parsed.Options)
	}

	req, err := trigger.NewRequest(h.project, pr.Head.Ref, params)
	if err != nil {
		h.log.Error("Failed to build trigger request", slog.Any("error", err))
		http.Error(w, "Failed to build trigger request", http.StatusInternalServerError)
		return
	}

	h.log.Info("Comment invocation received",
		slog.String("invocation_id", inv.ID),
		slog.String("command", inv.Command),
		slog.String("mode", string(mode)),
		slog.String("branch", pr.Head.Ref),
		slog.Int("pr", event.Issue.Number),
		slog.String("user", inv.User))

	responder := NewCommentResponder(h.client, h.owner, h.repo, event.Issue.Number)
	ack := h.triggerer.Trigger(inv, mode, req, responder)
	writeAck(w, ack)
}

// writeAck writes a plain-text 200 response. GitHub records the body in the
// delivery log but does not act on it.
func writeAck(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, text)
}
