package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/seele-review/seele/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, cfg model.ForgeConfig) *Client {
	t.Helper()
	if cfg.Token == "" {
		cfg.Token = "ghp_testtoken"
	}
	client, err := New(cfg)
	require.NoError(t, err)
	return client
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(model.ForgeConfig{})
	assert.Error(t, err)
}

func TestVerifyWebhook(t *testing.T) {
	payload := []byte(`{"action":"opened"}`)
	client := newTestClient(t, model.ForgeConfig{WebhookSecret: "s3cret"})

	tests := []struct {
		name      string
		signature string
		wantErr   bool
	}{
		{
			name:      "valid signature",
			signature: signPayload("s3cret", payload),
		},
		{
			name:      "wrong secret",
			signature: signPayload("other", payload),
			wantErr:   true,
		},
		{
			name:      "missing sha256 prefix",
			signature: "deadbeef",
			wantErr:   true,
		},
		{
			name:    "empty header",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.VerifyWebhook(payload, tt.signature)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifyWebhookFailsClosedWithoutSecret(t *testing.T) {
	client := newTestClient(t, model.ForgeConfig{})
	payload := []byte("{}")

	err := client.VerifyWebhook(payload, signPayload("", payload))
	assert.Error(t, err, "missing secret must reject even a matching signature")
}

func TestParseWebhookEvent(t *testing.T) {
	payload := []byte(`{
		"action": "opened",
		"repository": {"full_name": "owner/repo"},
		"sender": {"id": 7, "login": "alice"},
		"pull_request": {
			"id": 100,
			"number": 5,
			"title": "Add retries",
			"body": "Retries transient failures",
			"state": "open",
			"draft": false,
			"html_url": "https://github.com/owner/repo/pull/5",
			"head": {"ref": "feature", "sha": "headsha"},
			"base": {"ref": "main", "sha": "basesha"},
			"user": {"id": 9, "login": "bob"}
		}
	}`)

	client := newTestClient(t, model.ForgeConfig{})
	event, err := client.ParseWebhookEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, "pull_request", event.Type)
	assert.Equal(t, "opened", event.Action)
	assert.Equal(t, "owner/repo", event.ProjectID)
	assert.Equal(t, "alice", event.User.Username)

	mr := event.MergeRequest
	require.NotNil(t, mr)
	assert.Equal(t, 5, mr.IID)
	assert.Equal(t, "Add retries", mr.Title)
	assert.Equal(t, "feature", mr.SourceBranch)
	assert.Equal(t, "main", mr.TargetBranch)
	assert.Equal(t, "headsha", mr.SHA)
	assert.Equal(t, "basesha", mr.DiffRefs.BaseSHA)
	assert.Equal(t, "headsha", mr.DiffRefs.HeadSHA)
	assert.Equal(t, "bob", mr.Author.Username)
	assert.False(t, mr.IsDraft)
}

func TestShouldReview(t *testing.T) {
	client := newTestClient(t, model.ForgeConfig{BotUsername: "review-bot"})

	base := func() *model.CodeEvent {
		return &model.CodeEvent{
			Type:         "pull_request",
			Action:       "opened",
			MergeRequest: &model.MergeRequest{},
			User:         &model.User{Username: "alice"},
		}
	}

	tests := []struct {
		name       string
		mutate     func(*model.CodeEvent)
		want       bool
		wantReason string
	}{
		{
			name:   "opened pull request",
			mutate: func(e *model.CodeEvent) {},
			want:   true,
		},
		{
			name:   "synchronize action",
			mutate: func(e *model.CodeEvent) { e.Action = "synchronize" },
			want:   true,
		},
		{
			name:       "wrong event type",
			mutate:     func(e *model.CodeEvent) { e.Type = "issue_comment" },
			wantReason: "event issue_comment",
		},
		{
			name:       "closed action",
			mutate:     func(e *model.CodeEvent) { e.Action = "closed" },
			wantReason: "action closed",
		},
		{
			name:       "missing pull request",
			mutate:     func(e *model.CodeEvent) { e.MergeRequest = nil },
			wantReason: "missing pull_request data",
		},
		{
			name:       "draft",
			mutate:     func(e *model.CodeEvent) { e.MergeRequest.IsDraft = true },
			wantReason: "draft PR",
		},
		{
			name:       "bot event",
			mutate:     func(e *model.CodeEvent) { e.User.Username = "review-bot" },
			wantReason: "bot user event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := base()
			tt.mutate(event)

			got, reason := client.ShouldReview(event)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestConvertFile(t *testing.T) {
	file := &github.CommitFile{
		Filename:         github.String("a.go"),
		PreviousFilename: github.String("old_a.go"),
		Status:           github.String("renamed"),
		Patch:            github.String("@@ -1 +1 @@\n-x\n+y"),
	}

	diff := convertFile(file)
	assert.Equal(t, "old_a.go", diff.OldPath)
	assert.Equal(t, "a.go", diff.NewPath)
	assert.True(t, diff.IsRenamed)
	assert.False(t, diff.IsNew)
	assert.False(t, diff.IsBinary)
	assert.False(t, diff.TooLarge)

	added := convertFile(&github.CommitFile{
		Filename: github.String("b.go"),
		Status:   github.String("added"),
		Patch:    github.String("@@ -0,0 +1 @@\n+x"),
	})
	assert.True(t, added.IsNew)
	assert.Equal(t, "b.go", added.OldPath, "missing previous filename falls back to the new one")

	removed := convertFile(&github.CommitFile{
		Filename: github.String("c.go"),
		Status:   github.String("removed"),
	})
	assert.True(t, removed.IsDeleted)
	assert.False(t, removed.IsBinary)

	binary := convertFile(&github.CommitFile{
		Filename: github.String("logo.png"),
		Status:   github.String("modified"),
	})
	assert.True(t, binary.IsBinary, "modified file without a patch is treated as binary")
}

func TestConvertFileTooLarge(t *testing.T) {
	file := &github.CommitFile{
		Filename: github.String("gen.go"),
		Status:   github.String("modified"),
		Patch:    github.String(strings.Repeat("x", maxPatchBytes+1)),
	}

	diff := convertFile(file)
	assert.True(t, diff.TooLarge)
	assert.False(t, diff.IsReviewable(), "oversized patches are dropped from review")
}

func TestSplitProjectID(t *testing.T) {
	owner, repo, err := splitProjectID("owner/repo")
	require.NoError(t, err)
	assert.Equal(t, "owner", owner)
	assert.Equal(t, "repo", repo)

	_, _, err = splitProjectID("not-a-project")
	assert.Error(t, err)

	_, _, err = splitProjectID("too/many/parts")
	assert.Error(t, err)
}

func TestWithToken(t *testing.T) {
	client := newTestClient(t, model.ForgeConfig{Token: "ghp_original"})

	same, err := client.WithToken("")
	require.NoError(t, err)
	assert.Same(t, client, same)

	same, err = client.WithToken("ghp_original")
	require.NoError(t, err)
	assert.Same(t, client, same)

	other, err := client.WithToken("ghp_override")
	require.NoError(t, err)
	assert.NotSame(t, client, other)
}
