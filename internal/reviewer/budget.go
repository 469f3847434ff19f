package reviewer

import (
	"strings"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/pkoukk/tiktoken-go"
	"github.com/seele-review/seele/internal/model"
)

const (
	fileMarker = "## new_path:"

	// separatorTokens accounts for the "\n\n" glue between packed files.
	separatorTokens = 2

	// budgetMargin keeps a safety slack against pessimistic encoder overhead.
	budgetMargin = 0.05
)

// ChunkResult holds one chunk of the extended diff together with the parsed
// review list for it. Failed chunks carry Err and an empty review list.
type ChunkResult struct {
	ChunkIndex int
	Content    string
	TokenCount int
	Reviews    []*model.ReviewItem
	Err        error
}

// tokenEncoder is the codec surface the budgeter needs from tiktoken.
// *tiktoken.Tiktoken satisfies it.
type tokenEncoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// Budgeter keeps each model call under the token budget and merges
// per-chunk results back into one deduplicated review list.
type Budgeter struct {
	encoding     tokenEncoder
	maxTokens    int
	chunkOverlap int
	log          logze.Logger
}

// NewBudgeter creates a budgeter with a model-appropriate token encoder,
// falling back to the generic cl100k_base encoding for unknown models.
func NewBudgeter(modelName string, maxTokens, chunkOverlap int) (*Budgeter, error) {
	encoding, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, errm.Wrap(err, "failed to load token encoding")
		}
	}

	return &Budgeter{
		encoding:     encoding,
		maxTokens:    maxTokens,
		chunkOverlap: chunkOverlap,
		log:          logze.With("component", "budgeter"),
	}, nil
}

// CountTokens counts tokens in text
func (b *Budgeter) CountTokens(text string) int {
	return len(b.encoding.Encode(text, nil, nil))
}

// effectiveLimit is the configured budget minus the safety margin.
func (b *Budgeter) effectiveLimit() int {
	return b.maxTokens - int(float64(b.maxTokens)*budgetMargin)
}

// SplitByTokens splits text into raw token windows with overlap. It is the
// fallback for a single file that alone exceeds the budget.
func (b *Budgeter) SplitByTokens(text string, limit int) []string {
	// A window at or below the overlap would never make progress
	if limit <= b.chunkOverlap {
		limit = b.chunkOverlap + 1
	}

	tokens := b.encoding.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(tokens) {
		end := min(start+limit, len(tokens))
		chunks = append(chunks, b.encoding.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
		start = end - b.chunkOverlap
	}

	return chunks
}

// SplitDiff splits the extended diff into chunks that fit the token budget.
// Whole files are packed greedily at "## new_path:" boundaries; the leading
// commit-message header is carried into every chunk so each chunk is a
// standalone prompt.
func (b *Budgeter) SplitDiff(extendedDiff string) []string {
	limit := b.effectiveLimit()

	if b.CountTokens(extendedDiff) <= limit {
		return []string{extendedDiff}
	}

	header, files := splitDiffFiles(extendedDiff)

	headerTokens := 0
	if header != "" {
		headerTokens = b.CountTokens(header)
	}

	var (
		chunks        []string
		currentChunk  []string
		currentTokens int
	)
	startChunk := func() {
		currentChunk = nil
		currentTokens = 0
		if header != "" {
			currentChunk = append(currentChunk, header)
			currentTokens = headerTokens
		}
	}
	flushChunk := func() {
		if len(currentChunk) > 0 {
			chunks = append(chunks, strings.Join(currentChunk, "\n\n"))
		}
	}
	startChunk()

	for _, fileDiff := range files {
		fileTokens := b.CountTokens(fileDiff)

		switch {
		case fileTokens > limit:
			// A single file over the budget: flush and sub-split by raw
			// token windows so hunks keep some shared context.
			flushChunk()
			b.log.Warn("single file exceeds token budget, splitting by token windows",
				"tokens", fileTokens, "limit", limit, "overlap", b.chunkOverlap)
			for _, sub := range b.SplitByTokens(fileDiff, limit-headerTokens-separatorTokens) {
				if header != "" {
					chunks = append(chunks, header+"\n\n"+sub)
				} else {
					chunks = append(chunks, sub)
				}
			}
			startChunk()

		case currentTokens+fileTokens+separatorTokens <= limit:
			currentChunk = append(currentChunk, fileDiff)
			currentTokens += fileTokens + separatorTokens

		default:
			flushChunk()
			startChunk()
			currentChunk = append(currentChunk, fileDiff)
			currentTokens += fileTokens + separatorTokens
		}
	}
	flushChunk()

	return chunks
}

// splitDiffFiles splits the extended diff at file markers, returning the
// leading header (commit message) and the per-file segments.
func splitDiffFiles(extendedDiff string) (header string, files []string) {
	lines := strings.Split(extendedDiff, "\n")

	i := 0
	var headerLines []string
	for ; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], fileMarker) {
			break
		}
		headerLines = append(headerLines, lines[i])
	}
	header = strings.TrimSpace(strings.Join(headerLines, "\n"))

	var current []string
	for ; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], fileMarker) && len(current) > 0 {
			files = append(files, strings.Join(current, "\n"))
			current = nil
		}
		current = append(current, lines[i])
	}
	if len(current) > 0 {
		files = append(files, strings.Join(current, "\n"))
	}

	return header, files
}

// MergeReviews flattens chunk results in chunk order and deduplicates them by
// (new_path, start_line, end_line, type). The first occurrence wins; later
// duplicates get their content appended after a separator unless it is
// already contained.
func MergeReviews(results []*ChunkResult) []*model.ReviewItem {
	var merged []*model.ReviewItem
	seen := make(map[model.ReviewKey]*model.ReviewItem)

	for _, result := range results {
		for _, review := range result.Reviews {
			key := review.Key()

			existing, ok := seen[key]
			if !ok {
				seen[key] = review
				merged = append(merged, review)
				continue
			}

			if review.IssueContent != "" && !strings.Contains(existing.IssueContent, review.IssueContent) {
				existing.IssueContent = strings.TrimSpace(existing.IssueContent + "\n---\n" + review.IssueContent)
			}
		}
	}

	return merged
}
