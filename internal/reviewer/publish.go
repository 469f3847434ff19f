package reviewer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
)

// Marker is the idempotency marker embedded in every published body. It is
// the only state the service relies on across invocations: re-runs find the
// marker-bearing comment and update it instead of creating a duplicate.
const Marker = "<!-- powered by seele-review -->"

const (
	defaultBotName = "🤖 AI Review Bot"

	inlineCommentTemplate = "<table><thead><tr><td><strong>Issue</strong></td><td><strong>Description</strong></td></tr></thead>" +
		"<tbody><tr><td>%s</td><td>%s</td></tr></tbody></table>"

	reportRowTemplate = "<tr>\n  <td>%s</td>\n  <td>%s</td>\n  <td>%s</td>\n</tr>"

	snippetContext = 3
)

// Publisher renders findings to Markdown and posts them back to the forge
type Publisher struct {
	forge   interfaces.ForgeClient
	botName string
	log     logze.Logger
}

// NewPublisher creates a new publisher
func NewPublisher(forge interfaces.ForgeClient, botName string) *Publisher {
	if botName == "" {
		botName = defaultBotName
	}
	return &Publisher{
		forge:   forge,
		botName: botName,
		log:     logze.With("component", "publisher"),
	}
}

// Publish posts the merged review list back to the merge request in the
// requested mode and returns the number of comments created or updated.
func (p *Publisher) Publish(
	ctx context.Context,
	req *model.ReviewRequest,
	reviews []*model.ReviewItem,
	files []*ExtendedFile,
) (int, error) {
	if req.Options.Mode == model.ModeReport {
		return p.publishReport(ctx, req, reviews, files)
	}
	return p.publishComments(ctx, req, reviews)
}

// publishComments posts one inline comment per finding. Individual failures
// are logged and skipped, the loop continues. Comments already published by a
// previous run (same marker-bearing body) are not posted again.
func (p *Publisher) publishComments(ctx context.Context, req *model.ReviewRequest, reviews []*model.ReviewItem) (int, error) {
	// Inline comments live in their own collection on some forges, so the
	// general comment listing would miss bodies published by a previous run.
	existing, err := p.forge.ListInlineComments(ctx, req.ProjectID, req.MergeRequest.IID)
	if err != nil {
		p.log.Warn("failed to list existing inline comments, publishing without dedup", "error", err)
	}

	created := 0
	for _, review := range reviews {
		body := p.RenderInlineBody(review)

		if hasPublishedBody(existing, body) {
			p.log.Debug("comment already published, skipping",
				"path", review.NewPath, "line", review.EndLine)
			continue
		}

		comment := &model.InlineComment{
			NewPath:  review.NewPath,
			OldPath:  review.OldPath,
			Line:     review.EndLine,
			Side:     review.Type,
			SHA:      req.MergeRequest.SHA,
			DiffRefs: req.MergeRequest.DiffRefs,
			Body:     body,
		}

		if err := p.forge.CreateInlineComment(ctx, req.ProjectID, req.MergeRequest.IID, comment); err != nil {
			p.log.Err(err, "failed to publish inline comment",
				"path", review.NewPath, "line", review.EndLine, "side", review.Type)
			continue
		}
		created++
	}

	return created, nil
}

// publishReport posts all findings as one summary comment. An existing
// marker-bearing comment is updated in place instead of creating a new one.
func (p *Publisher) publishReport(ctx context.Context, req *model.ReviewRequest, reviews []*model.ReviewItem, files []*ExtendedFile) (int, error) {
	body := p.RenderReport(req.MergeRequest, reviews, files)

	existing, err := p.forge.ListComments(ctx, req.ProjectID, req.MergeRequest.IID)
	if err != nil {
		p.log.Warn("failed to list existing comments", "error", err)
	}

	if prev := findMarkerComment(existing); prev != nil {
		if err := p.forge.UpdateComment(ctx, req.ProjectID, req.MergeRequest.IID, prev.ID, body); err != nil {
			return 0, errm.Wrap(err, "failed to update report comment")
		}
		return 1, nil
	}

	if _, err := p.forge.CreateComment(ctx, req.ProjectID, req.MergeRequest.IID, body); err != nil {
		return 0, errm.Wrap(err, "failed to create report comment")
	}
	return 1, nil
}

// RenderInlineBody renders the Markdown body of a single inline comment
func (p *Publisher) RenderInlineBody(review *model.ReviewItem) string {
	table := fmt.Sprintf(inlineCommentTemplate, review.IssueHeader, review.IssueContent)
	return p.botName + "\n" + Marker + "\n\n" + table
}

// RenderReport renders the summary report: one HTML table with a row per
// finding carrying the issue header, a code deep-link pinned to the head
// commit, and the description with a collapsible diff snippet.
func (p *Publisher) RenderReport(mr *model.MergeRequest, reviews []*model.ReviewItem, files []*ExtendedFile) string {
	var rows strings.Builder

	for _, review := range reviews {
		file := findFile(files, review.NewPath)
		snippet := diffSnippet(file, review.Type, review.StartLine, review.EndLine)

		path := review.NewPath
		if review.Type == model.SideOld {
			path = review.OldPath
		}

		codeURL := fmt.Sprintf(
			"[Lines %d to %d in %s](%s)\n<details><summary>diff</summary>\n\n```diff\n%s\n```\n\n</details>",
			review.StartLine, review.EndLine, path,
			blobLink(mr, review.Type, path, review.StartLine, review.EndLine),
			snippet,
		)

		rows.WriteString(fmt.Sprintf(reportRowTemplate, review.IssueHeader, codeURL, review.IssueContent))
		rows.WriteString("\n")
	}

	return p.botName + "\n" + Marker + "\n\n" +
		"## Issue List\n" +
		"<table>\n" +
		"  <thead><tr><td><strong>Issue</strong></td><td><strong>Code Location</strong></td>" +
		"<td><strong>Description</strong></td></tr></thead>\n" +
		"  <tbody>\n" + rows.String() + "\n</tbody>\n</table>"
}

// blobLink builds a permalink to the file at the reviewed line range. Links
// are pinned to the diff SHAs rather than branch refs, which can move.
func blobLink(mr *model.MergeRequest, side model.CommentSide, path string, startLine, endLine int) string {
	sha := mr.DiffRefs.HeadSHA
	if sha == "" {
		sha = mr.SHA
	}
	if side == model.SideOld {
		sha = mr.DiffRefs.BaseSHA
	}

	repoURL, gitlabStyle := repoWebURL(mr.URL)
	if gitlabStyle {
		return fmt.Sprintf("%s/-/blob/%s/%s#L%d-%d", repoURL, sha, path, startLine, endLine)
	}
	return fmt.Sprintf("%s/blob/%s/%s#L%d-L%d", repoURL, sha, path, startLine, endLine)
}

// repoWebURL strips the MR/PR suffix from the request URL, leaving the
// repository web URL. The suffix form also tells the two forges apart.
func repoWebURL(mrURL string) (string, bool) {
	if idx := strings.Index(mrURL, "/-/merge_requests/"); idx != -1 {
		return mrURL[:idx], true
	}
	if idx := strings.Index(mrURL, "/pull/"); idx != -1 {
		return mrURL[:idx], false
	}
	return mrURL, false
}

// diffSnippet reconstructs the raw diff lines around the reviewed range with
// a few lines of context on each side.
func diffSnippet(file *ExtendedFile, side model.CommentSide, startLine, endLine int) string {
	if file == nil || file.Diff == "" {
		return ""
	}

	targetStart := startLine - snippetContext
	targetEnd := endLine + snippetContext

	var (
		result []string
		oldNo  int
		newNo  int
	)

	for _, line := range strings.Split(file.Diff, "\n") {
		if strings.HasPrefix(line, "@@") {
			// Every hunk restarts the counters at its own base
			if m := hunkHeaderRegex.FindStringSubmatch(line); m != nil {
				oldNo, _ = strconv.Atoi(m[1])
				newNo, _ = strconv.Atoi(m[3])
			}
			continue
		}

		lineNo := newNo
		if side == model.SideOld {
			lineNo = oldNo
		}
		if lineNo >= targetStart && lineNo <= targetEnd {
			result = append(result, line)
		}

		switch {
		case strings.HasPrefix(line, "+"):
			newNo++
		case strings.HasPrefix(line, "-"):
			oldNo++
		default:
			oldNo++
			newNo++
		}
	}

	return strings.Join(result, "\n")
}

func findFile(files []*ExtendedFile, newPath string) *ExtendedFile {
	for _, file := range files {
		if file.NewPath == newPath {
			return file
		}
	}
	return nil
}

func findMarkerComment(comments []*model.Comment) *model.Comment {
	for _, comment := range comments {
		if strings.Contains(comment.Body, Marker) {
			return comment
		}
	}
	return nil
}

func hasPublishedBody(comments []*model.Comment, body string) bool {
	for _, comment := range comments {
		if strings.Contains(comment.Body, Marker) && comment.Body == body {
			return true
		}
	}
	return false
}
