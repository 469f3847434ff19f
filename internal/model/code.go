package model

import (
	"time"
)

// ForgeConfig represents forge-specific configuration
type ForgeConfig struct {
	BaseURL       string
	Token         string
	WebhookSecret string
	BotUsername   string
}

// User represents a user across different forges
type User struct {
	ID       string
	Username string
	Name     string
}

// DiffRefs holds the three SHAs that anchor a merge request diff on the server.
// Inline comment positions on the GitLab-style forge are resolved against them.
type DiffRefs struct {
	BaseSHA  string
	StartSHA string
	HeadSHA  string
}

// MergeRequest represents a merge/pull request across different forges
type MergeRequest struct {
	ID           string
	IID          int
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	Author       User
	URL          string
	State        string
	SHA          string
	DiffRefs     DiffRefs
	IsDraft      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FileDiff represents changes in a single file
type FileDiff struct {
	OldPath   string
	NewPath   string
	Diff      string
	IsNew     bool
	IsDeleted bool
	IsRenamed bool
	IsBinary  bool
	TooLarge  bool
	Generated bool
}

// Comment represents an already published merge request comment
type Comment struct {
	ID        string
	Body      string
	Author    User
	CreatedAt time.Time
}

// CommentSide tells which file version an inline comment is anchored to.
type CommentSide string

const (
	SideNew CommentSide = "new" // right side of the diff
	SideOld CommentSide = "old" // left side of the diff
)

// InlineComment is a request to publish a comment anchored to a diff line.
type InlineComment struct {
	NewPath  string
	OldPath  string
	Line     int
	Side     CommentSide
	SHA      string   // commit the comment is attached to (GitHub-style)
	DiffRefs DiffRefs // position anchor (GitLab-style)
	Body     string
}

// CodeEvent represents a webhook event from any forge
type CodeEvent struct {
	Type         string
	Action       string
	ProjectID    string
	ProjectName  string
	MergeRequest *MergeRequest
	User         *User
	Timestamp    time.Time
}
