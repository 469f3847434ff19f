package agent

import (
	"testing"

	"github.com/seele-review/seele/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFirstYAML(t *testing.T) {
	answer := "Here is my review:\n```yaml\nreviews: []\n```\nDone."

	content, ok := extractFirstYAML(answer)
	require.True(t, ok)
	assert.Equal(t, "reviews: []", content)

	_, ok = extractFirstYAML("no fenced block here")
	assert.False(t, ok)

	// Only the first block is taken
	content, ok = extractFirstYAML("```yaml\nfirst: 1\n```\n```yaml\nsecond: 2\n```")
	require.True(t, ok)
	assert.Equal(t, "first: 1", content)
}

func TestParseReviewsCamelCase(t *testing.T) {
	answer := "```yaml\n" +
		"reviews:\n" +
		"  - newPath: a.go\n" +
		"    oldPath: a.go\n" +
		"    type: old\n" +
		"    startLine: 3\n" +
		"    endLine: 5\n" +
		"    issueHeader: Unchecked error\n" +
		"    issueContent: The error from Close is dropped.\n" +
		"```"

	reviews, err := parseReviews(answer)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	review := reviews[0]
	assert.Equal(t, "a.go", review.NewPath)
	assert.Equal(t, "a.go", review.OldPath)
	assert.Equal(t, model.SideOld, review.Type)
	assert.Equal(t, 3, review.StartLine)
	assert.Equal(t, 5, review.EndLine)
	assert.Equal(t, "Unchecked error", review.IssueHeader)
	assert.Equal(t, "The error from Close is dropped.", review.IssueContent)
}

func TestParseReviewsSnakeCase(t *testing.T) {
	answer := "```yaml\n" +
		"reviews:\n" +
		"  - new_path: b.go\n" +
		"    old_path: b.go\n" +
		"    start_line: 1\n" +
		"    end_line: 2\n" +
		"    issue_header: Header\n" +
		"    issue_content: Content\n" +
		"```"

	reviews, err := parseReviews(answer)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	assert.Equal(t, "b.go", reviews[0].NewPath)
	assert.Equal(t, 1, reviews[0].StartLine)
	assert.Equal(t, 2, reviews[0].EndLine)
	assert.Equal(t, "Header", reviews[0].IssueHeader)
}

func TestParseReviewsQuotedNumbers(t *testing.T) {
	answer := "```yaml\nreviews:\n  - newPath: a.go\n    startLine: \"7\"\n    endLine: '9'\n```"

	reviews, err := parseReviews(answer)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	assert.Equal(t, 7, reviews[0].StartLine)
	assert.Equal(t, 9, reviews[0].EndLine)
}

func TestParseReviewsTypeDefaultsToNew(t *testing.T) {
	answer := "```yaml\nreviews:\n  - newPath: a.go\n    startLine: 1\n    endLine: 1\n    type: both\n```"

	reviews, err := parseReviews(answer)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, model.SideNew, reviews[0].Type)

	answer = "```yaml\nreviews:\n  - newPath: a.go\n    startLine: 1\n    endLine: 1\n```"
	reviews, err = parseReviews(answer)
	require.NoError(t, err)
	assert.Equal(t, model.SideNew, reviews[0].Type)
}

func TestParseReviewsBlockScalars(t *testing.T) {
	answer := "```yaml\n" +
		"reviews:\n" +
		"  - newPath: |\n" +
		"      a.go\n" +
		"    type: |\n" +
		"      old\n" +
		"    startLine: 1\n" +
		"    endLine: 1\n" +
		"    issueHeader: |\n" +
		"      Multi word header\n" +
		"```"

	reviews, err := parseReviews(answer)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	// Trailing block-scalar newlines are stripped
	assert.Equal(t, "a.go", reviews[0].NewPath)
	assert.Equal(t, model.SideOld, reviews[0].Type)
	assert.Equal(t, "Multi word header", reviews[0].IssueHeader)
}

func TestParseReviewsEmptyList(t *testing.T) {
	reviews, err := parseReviews("```yaml\nreviews: []\n```")
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestParseReviewsMissingReviewsKey(t *testing.T) {
	_, err := parseReviews("```yaml\nfindings: []\n```")
	assert.ErrorIs(t, err, ErrUnparsableReview)
}

func TestParseReviewsNoBlock(t *testing.T) {
	_, err := parseReviews("The changes look fine to me.")
	assert.ErrorIs(t, err, ErrNoReview)
}

func TestParseReviewsUnparsableAfterRepair(t *testing.T) {
	// A broken flow sequence survives the repair pass untouched, so the
	// second decode fails too and the caller gets the sentinel.
	_, err := parseReviews("```yaml\nreviews: [unclosed\n```")
	assert.ErrorIs(t, err, ErrUnparsableReview)
}

func TestParseReviewsRepairsBrokenYAML(t *testing.T) {
	// Unquoted colon in the header makes the direct parse fail
	answer := "```yaml\n" +
		"reviews:\n" +
		"  - newPath: a.go\n" +
		"    issueHeader: Bad: colon value\n" +
		"    startLine: 3\n" +
		"    endLine: 4\n" +
		"```"

	reviews, err := parseReviews(answer)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	// The repair keeps numeric fields and drops broken inline string values
	assert.Equal(t, 3, reviews[0].StartLine)
	assert.Equal(t, 4, reviews[0].EndLine)
	assert.Empty(t, reviews[0].IssueHeader)
}

func TestFixYAMLFormatIssues(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "missing space after dash",
			in:   "reviews:\n-newPath: a.go",
			want: "reviews:\n  - newPath: |",
		},
		{
			name: "string field rewritten as block scalar",
			in:   "- newPath: a.go\n  issueContent: has: colon",
			want: "  - newPath: |\n    issueContent: |",
		},
		{
			name: "numeric field keeps inline value",
			in:   "- newPath: a.go\n  startLine: 12",
			want: "  - newPath: |\n    startLine: 12",
		},
		{
			name: "unknown key re-indented",
			in:   "- newPath: a.go\n  severity: high",
			want: "  - newPath: |\n    severity: high",
		},
		{
			name: "continuation line indented into scalar",
			in:   "- newPath: a.go\n  issueContent: text\n  wrapped tail",
			want: "  - newPath: |\n    issueContent: |\n      wrapped tail",
		},
		{
			name: "next item resets the state",
			in:   "- newPath: a.go\n  endLine: 1\n- newPath: b.go\n  endLine: 2",
			want: "  - newPath: |\n    endLine: 1\n  - newPath: |\n    endLine: 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fixYAMLFormatIssues(tt.in))
		})
	}
}
