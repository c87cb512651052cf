package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alekspetrov/shipbot/internal/testutil"
	"github.com/alekspetrov/shipbot/internal/trigger"
)

var _ trigger.Responder = (*CommentResponder)(nil)

// TestCommentResponderRespond tests that the deferred reply lands as a
// comment on the bound pull request.
func TestCommentResponderRespond(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		gotBody = body["body"]
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(testutil.FakeGitHubToken, server.URL)
	responder := NewCommentResponder(client, "acme", "ios-app", 42)

	inv := &trigger.Invocation{ID: "inv-1", Command: "build_ios", Source: Source}
	text := trigger.SuccessMessage(&trigger.Result{
		Branch:   "feature/login-fix",
		BuildURL: "https://circleci.com/workflow-run/wf-1",
	})
	if err := responder.Respond(context.Background(), inv, text); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if gotPath != "/repos/acme/ios-app/issues/42/comments" {
		t.Errorf("path = %s, want /repos/acme/ios-app/issues/42/comments", gotPath)
	}
	if gotBody != text {
		t.Errorf("body = %q, want %q", gotBody, text)
	}
}

// TestCommentResponderRespondAPIError tests that a rejected comment
// surfaces as an error for the caller to log.
func TestCommentResponderRespondAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(testutil.FakeGitHubToken, server.URL)
	responder := NewCommentResponder(client, "acme", "ios-app", 42)

	err := responder.Respond(context.Background(), &trigger.Invocation{ID: "inv-1"}, "text")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
