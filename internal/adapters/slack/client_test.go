package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alekspetrov/shipbot/internal/testutil"
)

// TestNewClient tests client creation
func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		botToken string
	}{
		{
			name:     "valid token",
			botToken: testutil.FakeSlackBotToken,
		},
		{
			name:     "empty token",
			botToken: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.botToken)

			if client == nil {
				t.Fatal("NewClient returned nil")
			}
			if client.botToken != tt.botToken {
				t.Errorf("botToken = %q, want %q", client.botToken, tt.botToken)
			}
			if client.baseURL != slackAPIURL {
				t.Errorf("baseURL = %q, want %q", client.baseURL, slackAPIURL)
			}
			if client.httpClient == nil {
				t.Fatal("httpClient is nil")
			}
			if client.httpClient.Timeout != 30*time.Second {
				t.Errorf("httpClient.Timeout = %v, want 30s", client.httpClient.Timeout)
			}
		})
	}
}

// TestClientPostMessage tests the PostMessage method
func TestClientPostMessage(t *testing.T) {
	tests := []struct {
		name       string
		msg        *Message
		response   PostMessageResponse
		wantErr    bool
		errContain string
	}{
		{
			name: "successful post",
			msg: &Message{
				Channel: "#ios-build",
				Text:    "✅ Build triggered on `develop`",
			},
			response: PostMessageResponse{
				OK:      true,
				TS:      "1234567890.123456",
				Channel: "C1234567890",
			},
			wantErr: false,
		},
		{
			name: "channel not found",
			msg: &Message{
				Channel: "#nonexistent",
				Text:    "Test message",
			},
			response: PostMessageResponse{
				OK:    false,
				Error: "channel_not_found",
			},
			wantErr:    true,
			errContain: "channel_not_found",
		},
		{
			name: "invalid auth",
			msg: &Message{
				Channel: "#ios-build",
				Text:    "Test message",
			},
			response: PostMessageResponse{
				OK:    false,
				Error: "invalid_auth",
			},
			wantErr:    true,
			errContain: "invalid_auth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %q, want POST", r.Method)
				}
				if !strings.HasSuffix(r.URL.Path, "/chat.postMessage") {
					t.Errorf("path = %q, want to end with /chat.postMessage", r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
				if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Bearer ") {
					t.Errorf("Authorization = %q, want Bearer token", auth)
				}

				var reqMsg Message
				if err := json.NewDecoder(r.Body).Decode(&reqMsg); err != nil {
					t.Fatalf("failed to parse request: %v", err)
				}
				if reqMsg.Channel != tt.msg.Channel {
					t.Errorf("channel = %q, want %q", reqMsg.Channel, tt.msg.Channel)
				}
				if reqMsg.Text != tt.msg.Text {
					t.Errorf("text = %q, want %q", reqMsg.Text, tt.msg.Text)
				}

				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client := NewClientWithBaseURL(testutil.FakeSlackBotToken, server.URL)

			result, err := client.PostMessage(context.Background(), tt.msg)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errContain != "" && !strings.Contains(err.Error(), tt.errContain) {
					t.Errorf("error = %q, want to contain %q", err.Error(), tt.errContain)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.TS != tt.response.TS {
				t.Errorf("TS = %q, want %q", result.TS, tt.response.TS)
			}
		})
	}
}

// TestClientPostMessageInvalidJSON tests handling of an undecodable response
func TestClientPostMessageInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not valid json"))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(testutil.FakeSlackBotToken, server.URL)

	_, err := client.PostMessage(context.Background(), &Message{Channel: "#test", Text: "test"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse response") {
		t.Errorf("error = %q, want to contain 'failed to parse response'", err.Error())
	}
}

// TestClientContextCancellation tests that requests respect context cancellation
func TestClientContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(PostMessageResponse{OK: true, TS: "123"})
	}))
	defer server.Close()

	client := NewClientWithBaseURL(testutil.FakeSlackBotToken, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.PostMessage(ctx, &Message{Channel: "#test", Text: "test"}); err == nil {
		t.Error("expected error due to canceled context")
	}
}
