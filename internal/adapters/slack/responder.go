package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alekspetrov/shipbot/internal/trigger"
)

// Responder delivers deferred replies to a slash command's response URL.
// Slack keeps the URL valid for about half an hour, which is far more than
// the trigger chain ever needs.
type Responder struct {
	responseURL string
	httpClient  *http.Client
}

// NewResponder creates a responder for one command's response URL.
func NewResponder(responseURL string) *Responder {
	return &Responder{
		responseURL: responseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Respond posts text back to the response URL as a visible channel message.
func (r *Responder) Respond(ctx context.Context, inv *trigger.Invocation, text string) error {
	body, err := json.Marshal(commandResponse{ResponseType: responseInChannel, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.responseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post response: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// ChannelResponder posts replies to a fixed channel through the Web API.
// Scheduled triggers use it because they have no response URL to call back.
type ChannelResponder struct {
	client  *Client
	channel string
}

// NewChannelResponder creates a responder that posts into channel.
func NewChannelResponder(client *Client, channel string) *ChannelResponder {
	return &ChannelResponder{client: client, channel: channel}
}

// Respond posts text to the configured channel.
func (r *ChannelResponder) Respond(ctx context.Context, inv *trigger.Invocation, text string) error {
	_, err := r.client.PostMessage(ctx, &Message{Channel: r.channel, Text: text})
	return err
}
