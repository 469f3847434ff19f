package model

import (
	"strconv"
	"strings"
)

type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageChinese  Language = "zh"
	LanguageJapanese Language = "ja"
)

// ReviewMode selects how findings are published back to the merge request.
type ReviewMode string

const (
	ModeComment ReviewMode = "comment" // one inline comment per finding
	ModeReport  ReviewMode = "report"  // single summary comment with a table
)

// ParseReviewMode returns the mode for a header/query value, defaulting to comment.
func ParseReviewMode(s string) ReviewMode {
	if ReviewMode(strings.ToLower(strings.TrimSpace(s))) == ModeReport {
		return ModeReport
	}
	return ModeComment
}

// ReviewOptions carries the per-request overrides extracted from webhook
// headers and query parameters.
type ReviewOptions struct {
	Mode     ReviewMode
	PushURL  string // notification webhook override
	APIToken string // forge token override
}

// ReviewItem is a single finding produced by the model, anchored to a file
// and a line range. When Type is "new" the lines reference the new file,
// when "old" the old one.
type ReviewItem struct {
	NewPath      string
	OldPath      string
	Type         CommentSide
	StartLine    int
	EndLine      int
	IssueHeader  string
	IssueContent string
}

// ReviewKey is the identity used for deduplication across chunks.
type ReviewKey struct {
	NewPath   string
	StartLine int
	EndLine   int
	Type      CommentSide
}

func (r *ReviewItem) Key() ReviewKey {
	return ReviewKey{
		NewPath:   r.NewPath,
		StartLine: r.StartLine,
		EndLine:   r.EndLine,
		Type:      r.Type,
	}
}

// ReviewRequest represents one review pipeline run
type ReviewRequest struct {
	ProjectID    string
	ProjectName  string
	MergeRequest *MergeRequest
	Options      ReviewOptions
}

func (r ReviewRequest) String() string {
	return r.ProjectID + ":" + r.MergeRequest.SHA + ":" + strconv.Itoa(r.MergeRequest.IID)
}

// ReviewResult represents the outcome of a review pipeline run
type ReviewResult struct {
	Success         bool
	ProcessedFiles  int
	ReviewsFound    int
	CommentsCreated int
	Errors          []error
}
