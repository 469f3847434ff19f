package github

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/go-github/v57/github"
	jsoniter "github.com/json-iterator/go"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/seele-review/seele/internal/forge/retry"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
	"golang.org/x/oauth2"
)

var _ interfaces.ForgeClient = (*Client)(nil)

var relevantActions = []string{"opened", "reopened", "synchronize"}

// maxPatchBytes marks a file patch as too large to review. GitHub truncates
// patches past its own limit anyway; anything this big is dropped upfront.
const maxPatchBytes = 500 * 1024

// Client implements the ForgeClient interface for GitHub
type Client struct {
	client *github.Client
	config model.ForgeConfig
	logger logze.Logger
}

// New creates a new GitHub client
func New(config model.ForgeConfig) (*Client, error) {
	if config.Token == "" {
		return nil, errm.New("GitHub token is required")
	}
	log := logze.With("forge", "github")

	client := github.NewClient(newHTTPClient(config.Token))

	// GitHub Enterprise
	if config.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(config.BaseURL, config.BaseURL)
		if err != nil {
			return nil, errm.Wrap(err, "failed to create GitHub Enterprise client")
		}
	}

	return &Client{
		client: client,
		config: config,
		logger: log,
	}, nil
}

// newHTTPClient builds an HTTP client that authenticates the way the token
// form requires: classic and fine-grained personal tokens use the "token"
// scheme, everything else goes through a standard Bearer transport.
func newHTTPClient(token string) *http.Client {
	if strings.HasPrefix(token, "ghp_") || strings.HasPrefix(token, "github_pat_") {
		return &http.Client{Transport: &classicTokenTransport{token: token}}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return oauth2.NewClient(context.Background(), ts)
}

type classicTokenTransport struct {
	token string
}

func (t *classicTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "token "+t.token)
	return http.DefaultTransport.RoundTrip(clone)
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

// VerifyWebhook verifies the HMAC-SHA256 webhook signature. Verification is
// fail-closed: a missing secret or a missing header rejects the request.
func (c *Client) VerifyWebhook(payload []byte, signature string) error {
	if c.config.WebhookSecret == "" {
		return errm.New("webhook secret is not configured")
	}

	// GitHub signature format: "sha256=<hex>"
	if !strings.HasPrefix(signature, "sha256=") {
		return errm.New("invalid GitHub signature format")
	}
	expectedSignature := strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(c.config.WebhookSecret))
	mac.Write(payload)
	calculatedSignature := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expectedSignature), []byte(calculatedSignature)) {
		return errm.New("GitHub webhook signature verification failed")
	}

	return nil
}

// ParseWebhookEvent parses a GitHub pull request webhook event
func (c *Client) ParseWebhookEvent(payload []byte) (*model.CodeEvent, error) {
	var githubPayload githubPayload
	if err := jsoniter.Unmarshal(payload, &githubPayload); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitHub webhook payload")
	}

	pr := githubPayload.PullRequest
	event := &model.CodeEvent{
		Type:        "pull_request",
		Action:      githubPayload.Action,
		ProjectID:   githubPayload.Repository.FullName, // "owner/repo"
		ProjectName: githubPayload.Repository.FullName,
		User: &model.User{
			ID:       strconv.Itoa(githubPayload.Sender.ID),
			Username: githubPayload.Sender.Login,
			Name:     githubPayload.Sender.Name,
		},
		MergeRequest: &model.MergeRequest{
			ID:           strconv.Itoa(pr.ID),
			IID:          pr.Number,
			Title:        pr.Title,
			Description:  pr.Body,
			SourceBranch: pr.Head.Ref,
			TargetBranch: pr.Base.Ref,
			URL:          pr.HTMLURL,
			State:        pr.State,
			SHA:          pr.Head.SHA,
			IsDraft:      pr.Draft,
			DiffRefs: model.DiffRefs{
				BaseSHA:  pr.Base.SHA,
				StartSHA: pr.Base.SHA,
				HeadSHA:  pr.Head.SHA,
			},
			Author: model.User{
				ID:       strconv.Itoa(pr.User.ID),
				Username: pr.User.Login,
				Name:     pr.User.Name,
			},
		},
	}

	return event, nil
}

// ShouldReview reports whether the event triggers a review, with a skip reason
func (c *Client) ShouldReview(event *model.CodeEvent) (bool, string) {
	if event.Type != "pull_request" {
		return false, "event " + event.Type
	}
	if !slices.Contains(relevantActions, event.Action) {
		return false, "action " + event.Action
	}
	if event.MergeRequest == nil {
		return false, "missing pull_request data"
	}
	if event.MergeRequest.IsDraft {
		return false, "draft PR"
	}
	// Don't process events from the bot itself to avoid loops
	if c.config.BotUsername != "" && event.User != nil && event.User.Username == c.config.BotUsername {
		return false, "bot user event"
	}
	return true, ""
}

// GetMergeRequest retrieves detailed information about a pull request
func (c *Client) GetMergeRequest(ctx context.Context, projectID string, iid int) (*model.MergeRequest, error) {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return nil, err
	}

	var pr *github.PullRequest
	err = retry.Do(ctx, c.logger, "get pull request", func() (int, error) {
		var resp *github.Response
		pr, resp, err = c.client.PullRequests.Get(ctx, owner, repo, iid)
		return statusOf(resp), err
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to get pull request from GitHub")
	}

	return &model.MergeRequest{
		ID:           strconv.FormatInt(pr.GetID(), 10),
		IID:          pr.GetNumber(),
		Title:        pr.GetTitle(),
		Description:  pr.GetBody(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		URL:          pr.GetHTMLURL(),
		State:        pr.GetState(),
		SHA:          pr.GetHead().GetSHA(),
		IsDraft:      pr.GetDraft(),
		DiffRefs: model.DiffRefs{
			BaseSHA:  pr.GetBase().GetSHA(),
			StartSHA: pr.GetBase().GetSHA(),
			HeadSHA:  pr.GetHead().GetSHA(),
		},
		Author: model.User{
			ID:       strconv.FormatInt(pr.GetUser().GetID(), 10),
			Username: pr.GetUser().GetLogin(),
			Name:     pr.GetUser().GetName(),
		},
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
	}, nil
}

// GetMergeRequestDiffs retrieves the file diffs for a pull request
func (c *Client) GetMergeRequestDiffs(ctx context.Context, projectID string, iid int) ([]*model.FileDiff, error) {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: 100}
	var allFiles []*github.CommitFile

	for {
		var (
			files []*github.CommitFile
			resp  *github.Response
		)
		err = retry.Do(ctx, c.logger, "list pull request files", func() (int, error) {
			files, resp, err = c.client.PullRequests.ListFiles(ctx, owner, repo, iid, opts)
			return statusOf(resp), err
		})
		if err != nil {
			return nil, errm.Wrap(err, "failed to list pull request files")
		}

		allFiles = append(allFiles, files...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	var fileDiffs []*model.FileDiff
	for _, file := range allFiles {
		fileDiffs = append(fileDiffs, convertFile(file))
	}

	return fileDiffs, nil
}

// convertFile maps a GitHub commit file to the forge-neutral diff type
func convertFile(file *github.CommitFile) *model.FileDiff {
	fileDiff := &model.FileDiff{
		OldPath:   file.GetPreviousFilename(),
		NewPath:   file.GetFilename(),
		Diff:      file.GetPatch(),
		IsNew:     file.GetStatus() == "added",
		IsDeleted: file.GetStatus() == "removed",
		IsRenamed: file.GetStatus() == "renamed",
		IsBinary:  file.GetPatch() == "" && file.GetStatus() != "removed" && file.GetStatus() != "added",
		TooLarge:  len(file.GetPatch()) > maxPatchBytes,
	}
	if fileDiff.OldPath == "" {
		fileDiff.OldPath = fileDiff.NewPath
	}
	return fileDiff
}

// CreateInlineComment posts a review comment anchored to a diff line
func (c *Client) CreateInlineComment(ctx context.Context, projectID string, iid int, comment *model.InlineComment) error {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return err
	}

	path := comment.NewPath
	side := "RIGHT"
	if comment.Side == model.SideOld {
		path = comment.OldPath
		side = "LEFT"
	}

	prComment := &github.PullRequestComment{
		Body:     github.String(comment.Body),
		CommitID: github.String(comment.SHA),
		Path:     github.String(path),
		Line:     github.Int(comment.Line),
		Side:     github.String(side),
	}

	err = retry.Do(ctx, c.logger, "create review comment", func() (int, error) {
		_, resp, err := c.client.PullRequests.CreateComment(ctx, owner, repo, iid, prComment)
		return statusOf(resp), err
	})
	if err != nil {
		return errm.Wrap(err, "failed to create pull request review comment")
	}

	return nil
}

// CreateComment creates a general comment on a pull request
func (c *Client) CreateComment(ctx context.Context, projectID string, iid int, body string) (string, error) {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return "", err
	}

	var created *github.IssueComment
	err = retry.Do(ctx, c.logger, "create comment", func() (int, error) {
		var resp *github.Response
		created, resp, err = c.client.Issues.CreateComment(ctx, owner, repo, iid, &github.IssueComment{
			Body: github.String(body),
		})
		return statusOf(resp), err
	})
	if err != nil {
		return "", errm.Wrap(err, "failed to create pull request comment")
	}

	return strconv.FormatInt(created.GetID(), 10), nil
}

// UpdateComment updates an existing general comment
func (c *Client) UpdateComment(ctx context.Context, projectID string, iid int, commentID, body string) error {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return err
	}

	commentIDInt, err := strconv.ParseInt(commentID, 10, 64)
	if err != nil {
		return errm.Wrap(err, "invalid comment ID")
	}

	err = retry.Do(ctx, c.logger, "update comment", func() (int, error) {
		_, resp, err := c.client.Issues.EditComment(ctx, owner, repo, commentIDInt, &github.IssueComment{
			Body: github.String(body),
		})
		return statusOf(resp), err
	})
	if err != nil {
		return errm.Wrap(err, "failed to update pull request comment")
	}

	return nil
}

// ListComments retrieves all general comments of a pull request
func (c *Client) ListComments(ctx context.Context, projectID string, iid int) ([]*model.Comment, error) {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var allComments []*github.IssueComment
	for {
		var (
			comments []*github.IssueComment
			resp     *github.Response
		)
		err = retry.Do(ctx, c.logger, "list comments", func() (int, error) {
			comments, resp, err = c.client.Issues.ListComments(ctx, owner, repo, iid, opts)
			return statusOf(resp), err
		})
		if err != nil {
			return nil, errm.Wrap(err, "failed to list pull request comments")
		}

		allComments = append(allComments, comments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	result := make([]*model.Comment, 0, len(allComments))
	for _, comment := range allComments {
		result = append(result, &model.Comment{
			ID:   strconv.FormatInt(comment.GetID(), 10),
			Body: comment.GetBody(),
			Author: model.User{
				ID:       strconv.FormatInt(comment.GetUser().GetID(), 10),
				Username: comment.GetUser().GetLogin(),
				Name:     comment.GetUser().GetName(),
			},
			CreatedAt: comment.GetCreatedAt().Time,
		})
	}

	return result, nil
}

// ListInlineComments retrieves all review comments of a pull request. GitHub
// keeps these separate from issue comments, so listing both is required to
// see everything already published.
func (c *Client) ListInlineComments(ctx context.Context, projectID string, iid int) ([]*model.Comment, error) {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return nil, err
	}

	opts := &github.PullRequestListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var allComments []*github.PullRequestComment
	for {
		var (
			comments []*github.PullRequestComment
			resp     *github.Response
		)
		err = retry.Do(ctx, c.logger, "list review comments", func() (int, error) {
			comments, resp, err = c.client.PullRequests.ListComments(ctx, owner, repo, iid, opts)
			return statusOf(resp), err
		})
		if err != nil {
			return nil, errm.Wrap(err, "failed to list pull request review comments")
		}

		allComments = append(allComments, comments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	result := make([]*model.Comment, 0, len(allComments))
	for _, comment := range allComments {
		result = append(result, &model.Comment{
			ID:   strconv.FormatInt(comment.GetID(), 10),
			Body: comment.GetBody(),
			Author: model.User{
				ID:       strconv.FormatInt(comment.GetUser().GetID(), 10),
				Username: comment.GetUser().GetLogin(),
				Name:     comment.GetUser().GetName(),
			},
			CreatedAt: comment.GetCreatedAt().Time,
		})
	}

	return result, nil
}

func splitProjectID(projectID string) (owner, repo string, err error) {
	parts := strings.Split(projectID, "/")
	if len(parts) != 2 {
		return "", "", errm.New("invalid GitHub project ID format, expected 'owner/repo'")
	}
	return parts[0], parts[1], nil
}

func statusOf(resp *github.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
