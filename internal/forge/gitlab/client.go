package gitlab

import (
	"context"
	"crypto/subtle"
	"slices"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/seele-review/seele/internal/forge/retry"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const defaultBaseURL = "https://gitlab.com"

var _ interfaces.ForgeClient = (*Client)(nil)

var (
	relevantActions = []string{"open", "reopen", "update"}
	openStates      = []string{"opened", "open"}
	draftPrefixes   = []string{"wip", "draft"}
)

// Client implements the ForgeClient interface for GitLab
type Client struct {
	client *gitlab.Client
	config model.ForgeConfig
	logger logze.Logger
}

// New creates a new GitLab client
func New(config model.ForgeConfig) (*Client, error) {
	if config.Token == "" {
		return nil, errm.New("GitLab token is required")
	}
	logger := logze.With("forge", "gitlab")

	baseURL := lang.Check(config.BaseURL, defaultBaseURL)

	client, err := gitlab.NewClient(config.Token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, errm.Wrap(err, "failed to create GitLab client")
	}

	return &Client{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// WithToken returns a client bound to a per-request token override
func (c *Client) WithToken(token string) (interfaces.ForgeClient, error) {
	if token == "" || token == c.config.Token {
		return c, nil
	}
	cfg := c.config
	cfg.Token = token
	return New(cfg)
}

// VerifyWebhook compares the webhook token header against the configured
// secret in constant time. Fail-closed: no secret means no accepted webhooks.
func (c *Client) VerifyWebhook(payload []byte, signature string) error {
	if c.config.WebhookSecret == "" {
		return errm.New("webhook secret is not configured")
	}

	if subtle.ConstantTimeCompare([]byte(signature), []byte(c.config.WebhookSecret)) != 1 {
		return errm.New("GitLab webhook token verification failed")
	}

	return nil
}

// ParseWebhookEvent parses a GitLab merge request webhook event
func (c *Client) ParseWebhookEvent(payload []byte) (*model.CodeEvent, error) {
	var gitlabPayload gitlabPayload
	if err := jsoniter.Unmarshal(payload, &gitlabPayload); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitLab webhook payload")
	}

	attrs := gitlabPayload.ObjectAttributes
	event := &model.CodeEvent{
		Type:        gitlabPayload.ObjectKind,
		Action:      attrs.Action,
		ProjectID:   strconv.Itoa(gitlabPayload.Project.ID),
		ProjectName: lang.Check(gitlabPayload.Project.PathWithNamespace, gitlabPayload.Project.Name),
		User: &model.User{
			ID:       strconv.Itoa(gitlabPayload.User.ID),
			Username: gitlabPayload.User.Username,
			Name:     gitlabPayload.User.Name,
		},
		MergeRequest: &model.MergeRequest{
			ID:           strconv.Itoa(attrs.IID),
			IID:          attrs.IID,
			Title:        attrs.Title,
			Description:  attrs.Description,
			SourceBranch: attrs.SourceBranch,
			TargetBranch: attrs.TargetBranch,
			URL:          attrs.URL,
			State:        attrs.State,
			SHA:          attrs.LastCommit.ID,
			IsDraft:      attrs.WorkInProgress || attrs.Draft,
		},
	}

	return event, nil
}

// ShouldReview reports whether the event triggers a review, with a skip reason
func (c *Client) ShouldReview(event *model.CodeEvent) (bool, string) {
	if event.Type != "merge_request" {
		return false, "event " + event.Type
	}
	if !slices.Contains(relevantActions, event.Action) {
		return false, "action " + event.Action
	}
	mr := event.MergeRequest
	if mr == nil {
		return false, "missing merge_request data"
	}
	if !slices.Contains(openStates, mr.State) {
		return false, "state " + mr.State
	}
	if mr.IsDraft || hasDraftTitle(mr.Title) {
		return false, "draft/WIP"
	}
	if c.config.BotUsername != "" && event.User != nil && event.User.Username == c.config.BotUsername {
		return false, "bot user event"
	}
	return true, ""
}

func hasDraftTitle(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, prefix := range draftPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// GetMergeRequest retrieves detailed information about a merge request
func (c *Client) GetMergeRequest(ctx context.Context, projectID string, iid int) (*model.MergeRequest, error) {
	var mr *gitlab.MergeRequest
	err := retry.Do(ctx, c.logger, "get merge request", func() (int, error) {
		var (
			resp *gitlab.Response
			err  error
		)
		mr, resp, err = c.client.MergeRequests.GetMergeRequest(projectID, iid, nil, gitlab.WithContext(ctx))
		return statusOf(resp), err
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to get merge request from GitLab")
	}

	return &model.MergeRequest{
		ID:           strconv.Itoa(mr.ID),
		IID:          mr.IID,
		Title:        mr.Title,
		Description:  mr.Description,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		URL:          mr.WebURL,
		State:        mr.State,
		SHA:          mr.SHA,
		IsDraft:      mr.Draft,
		DiffRefs: model.DiffRefs{
			BaseSHA:  mr.DiffRefs.BaseSha,
			StartSHA: mr.DiffRefs.StartSha,
			HeadSHA:  mr.DiffRefs.HeadSha,
		},
		Author: model.User{
			ID:       strconv.Itoa(mr.Author.ID),
			Username: mr.Author.Username,
			Name:     mr.Author.Name,
		},
		CreatedAt: lang.Deref(mr.CreatedAt),
		UpdatedAt: lang.Deref(mr.UpdatedAt),
	}, nil
}

// GetMergeRequestDiffs retrieves the file diffs for a merge request
func (c *Client) GetMergeRequestDiffs(ctx context.Context, projectID string, iid int) ([]*model.FileDiff, error) {
	var allDiffs []*gitlab.MergeRequestDiff
	page := 1

	for {
		opts := &gitlab.ListMergeRequestDiffsOptions{
			ListOptions: gitlab.ListOptions{
				Page: page,
			},
		}

		var (
			diffs []*gitlab.MergeRequestDiff
			resp  *gitlab.Response
		)
		err := retry.Do(ctx, c.logger, "list merge request diffs", func() (int, error) {
			var err error
			diffs, resp, err = c.client.MergeRequests.ListMergeRequestDiffs(projectID, iid, opts, gitlab.WithContext(ctx))
			return statusOf(resp), err
		})
		if err != nil {
			return nil, errm.Wrap(err, "failed to list merge request diffs")
		}

		allDiffs = append(allDiffs, diffs...)

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	var fileDiffs []*model.FileDiff
	for _, diff := range allDiffs {
		fileDiffs = append(fileDiffs, convertDiff(diff))
	}

	return fileDiffs, nil
}

// maxDiffBytes marks a file diff as too large to review. GitLab collapses
// giant diffs on its own endpoints; this bound catches the ones it still
// returns in full.
const maxDiffBytes = 500 * 1024

// convertDiff maps a GitLab diff to the forge-neutral diff type
func convertDiff(diff *gitlab.MergeRequestDiff) *model.FileDiff {
	return &model.FileDiff{
		OldPath:   diff.OldPath,
		NewPath:   diff.NewPath,
		Diff:      diff.Diff,
		IsNew:     diff.NewFile,
		IsDeleted: diff.DeletedFile,
		IsRenamed: diff.RenamedFile,
		IsBinary:  diff.Diff == "" && !diff.DeletedFile && !diff.NewFile, // heuristic
		TooLarge:  len(diff.Diff) > maxDiffBytes,
		Generated: diff.GeneratedFile,
	}
}

// CreateInlineComment creates a positioned discussion on a merge request.
// The position carries the diff refs and exactly one of new_line/old_line.
func (c *Client) CreateInlineComment(ctx context.Context, projectID string, iid int, comment *model.InlineComment) error {
	positionOpts := &gitlab.PositionOptions{
		PositionType: gitlab.Ptr("text"),
		NewPath:      gitlab.Ptr(comment.NewPath),
		OldPath:      gitlab.Ptr(comment.OldPath),
		BaseSHA:      gitlab.Ptr(comment.DiffRefs.BaseSHA),
		StartSHA:     gitlab.Ptr(comment.DiffRefs.StartSHA),
		HeadSHA:      gitlab.Ptr(comment.DiffRefs.HeadSHA),
	}
	if comment.Side == model.SideOld {
		positionOpts.OldLine = gitlab.Ptr(comment.Line)
	} else {
		positionOpts.NewLine = gitlab.Ptr(comment.Line)
	}

	discussionOpts := &gitlab.CreateMergeRequestDiscussionOptions{
		Body:     gitlab.Ptr(comment.Body),
		Position: positionOpts,
	}

	err := retry.Do(ctx, c.logger, "create discussion", func() (int, error) {
		_, resp, err := c.client.Discussions.CreateMergeRequestDiscussion(projectID, iid, discussionOpts, gitlab.WithContext(ctx))
		return statusOf(resp), err
	})
	if err != nil {
		return errm.Wrap(err, "failed to create merge request discussion")
	}

	return nil
}

// CreateComment creates a general note on a merge request
func (c *Client) CreateComment(ctx context.Context, projectID string, iid int, body string) (string, error) {
	var note *gitlab.Note
	err := retry.Do(ctx, c.logger, "create note", func() (int, error) {
		var (
			resp *gitlab.Response
			err  error
		)
		note, resp, err = c.client.Notes.CreateMergeRequestNote(projectID, iid, &gitlab.CreateMergeRequestNoteOptions{
			Body: gitlab.Ptr(body),
		}, gitlab.WithContext(ctx))
		return statusOf(resp), err
	})
	if err != nil {
		return "", errm.Wrap(err, "failed to create merge request note")
	}

	return strconv.Itoa(note.ID), nil
}

// UpdateComment updates an existing general note
func (c *Client) UpdateComment(ctx context.Context, projectID string, iid int, commentID, body string) error {
	noteID, err := strconv.Atoi(commentID)
	if err != nil {
		return errm.Wrap(err, "invalid note ID")
	}

	err = retry.Do(ctx, c.logger, "update note", func() (int, error) {
		_, resp, err := c.client.Notes.UpdateMergeRequestNote(projectID, iid, noteID, &gitlab.UpdateMergeRequestNoteOptions{
			Body: gitlab.Ptr(body),
		}, gitlab.WithContext(ctx))
		return statusOf(resp), err
	})
	if err != nil {
		return errm.Wrap(err, "failed to update merge request note")
	}

	return nil
}

// ListComments retrieves all notes of a merge request
func (c *Client) ListComments(ctx context.Context, projectID string, iid int) ([]*model.Comment, error) {
	var allNotes []*gitlab.Note
	page := 1

	for {
		opts := &gitlab.ListMergeRequestNotesOptions{
			ListOptions: gitlab.ListOptions{
				Page:    page,
				PerPage: 100,
			},
		}

		var (
			notes []*gitlab.Note
			resp  *gitlab.Response
		)
		err := retry.Do(ctx, c.logger, "list notes", func() (int, error) {
			var err error
			notes, resp, err = c.client.Notes.ListMergeRequestNotes(projectID, iid, opts, gitlab.WithContext(ctx))
			return statusOf(resp), err
		})
		if err != nil {
			return nil, errm.Wrap(err, "failed to list merge request notes")
		}

		allNotes = append(allNotes, notes...)

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	result := make([]*model.Comment, 0, len(allNotes))
	for _, note := range allNotes {
		result = append(result, &model.Comment{
			ID:   strconv.Itoa(note.ID),
			Body: note.Body,
			Author: model.User{
				ID:       strconv.Itoa(note.Author.ID),
				Username: note.Author.Username,
				Name:     note.Author.Name,
			},
			CreatedAt: lang.Deref(note.CreatedAt),
		})
	}

	return result, nil
}

// ListInlineComments retrieves the diff-anchored comments. GitLab returns
// positioned discussion notes in the regular notes listing, so no separate
// endpoint is needed.
func (c *Client) ListInlineComments(ctx context.Context, projectID string, iid int) ([]*model.Comment, error) {
	return c.ListComments(ctx, projectID, iid)
}

func statusOf(resp *gitlab.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
