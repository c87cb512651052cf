package github

import (
	"context"

	"github.com/alekspetrov/shipbot/internal/trigger"
)

// CommentResponder delivers the deferred reply for a comment-triggered
// invocation by commenting on the same pull request.
type CommentResponder struct {
	client *Client
	owner  string
	repo   string
	number int
}

// NewCommentResponder creates a responder bound to one pull request.
func NewCommentResponder(client *Client, owner, repo string, number int) *CommentResponder {
	return &CommentResponder{client: client, owner: owner, repo: repo, number: number}
}

// Respond posts the reply as a pull-request comment.
func (r *CommentResponder) Respond(ctx context.Context, _ *trigger.Invocation, text string) error {
	_, err := r.client.AddComment(ctx, r.owner, r.repo, r.number, text)
	return err
}
