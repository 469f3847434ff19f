package interfaces

import (
	"context"

	"github.com/seele-review/seele/internal/model"
)

// ReviewService defines the interface for the core review service
type ReviewService interface {
	HandleEvent(ctx context.Context, event *model.CodeEvent, opts model.ReviewOptions) error
}

// ForgeClient defines the interface for different code forges (GitLab, GitHub)
type ForgeClient interface {
	// Webhook handling
	VerifyWebhook(payload []byte, signature string) error
	ParseWebhookEvent(payload []byte) (*model.CodeEvent, error)
	ShouldReview(event *model.CodeEvent) (bool, string)

	// MR/PR operations
	GetMergeRequest(ctx context.Context, projectID string, iid int) (*model.MergeRequest, error)
	GetMergeRequestDiffs(ctx context.Context, projectID string, iid int) ([]*model.FileDiff, error)

	// Comments
	CreateInlineComment(ctx context.Context, projectID string, iid int, comment *model.InlineComment) error
	CreateComment(ctx context.Context, projectID string, iid int, body string) (string, error)
	UpdateComment(ctx context.Context, projectID string, iid int, commentID, body string) error
	ListComments(ctx context.Context, projectID string, iid int) ([]*model.Comment, error)
	// ListInlineComments returns the diff-anchored comments, which some forges
	// keep in a separate collection from general comments.
	ListInlineComments(ctx context.Context, projectID string, iid int) ([]*model.Comment, error)

	// WithToken returns a client bound to a per-request token override.
	WithToken(token string) (ForgeClient, error)
}

// AgentAPI defines the low-level LLM backend contract
type AgentAPI interface {
	CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error)
}

// ReviewAgent turns an extended diff into a list of findings
type ReviewAgent interface {
	Review(ctx context.Context, extendedDiff string) ([]*model.ReviewItem, error)
}

// Notifier delivers completion and failure notifications to a chat webhook
type Notifier interface {
	SendReviewNotification(ctx context.Context, n model.Notification) error
	SendErrorNotification(ctx context.Context, n model.Notification) error
}
