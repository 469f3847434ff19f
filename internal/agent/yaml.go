package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/seele-review/seele/internal/model"
	"gopkg.in/yaml.v3"
)

// ErrNoReview is returned when the model response carries no parsable review
// block. Callers treat it as "zero findings" rather than a hard failure.
var ErrNoReview = errm.New("no parsable review block in model response")

// ErrUnparsableReview is returned when a YAML block exists but cannot be
// decoded even after the repair pass. Like ErrNoReview it is fatal only for
// the chunk that produced it, not for the run.
var ErrUnparsableReview = errm.New("review YAML is unparsable even after repair")

var yamlBlockRegex = regexp.MustCompile("```yaml\\s*([\\s\\S]*?)\\s*```")

// reviewFields are the fields a review item is allowed to carry. Lines with
// other keys are assumed to be indentation accidents and re-indented.
var reviewStringFields = map[string]bool{
	"newPath":      true,
	"oldPath":      true,
	"type":         true,
	"issueHeader":  true,
	"issueContent": true,
}

var reviewNumericFields = map[string]bool{
	"startLine": true,
	"endLine":   true,
}

// extractFirstYAML returns the content of the first ```yaml fenced block
func extractFirstYAML(markdown string) (string, bool) {
	m := yamlBlockRegex.FindStringSubmatch(markdown)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// parseReviews parses the model answer into review items. It extracts the
// first YAML block, tries a direct parse and falls back to a repaired parse
// when the model emitted structurally broken YAML.
func parseReviews(answer string) ([]*model.ReviewItem, error) {
	content, ok := extractFirstYAML(answer)
	if !ok {
		return nil, ErrNoReview
	}

	reviews, err := decodeReviews(content)
	if err == nil {
		return reviews, nil
	}

	reviews, fixErr := decodeReviews(fixYAMLFormatIssues(content))
	if fixErr != nil {
		logze.Warn("review YAML failed to decode even after repair", "error", err)
		return nil, ErrUnparsableReview
	}

	return reviews, nil
}

type reviewListWire struct {
	Reviews []map[string]yaml.Node `yaml:"reviews"`
}

// decodeReviews decodes the YAML review list. Field keys are accepted in both
// camelCase and snake_case, numbers are coerced from quoted strings.
func decodeReviews(content string) ([]*model.ReviewItem, error) {
	var wire reviewListWire
	if err := yaml.Unmarshal([]byte(content), &wire); err != nil {
		return nil, errm.Wrap(err, "failed to unmarshal review YAML")
	}
	if wire.Reviews == nil {
		return nil, errm.New("review YAML has no reviews list")
	}

	reviews := make([]*model.ReviewItem, 0, len(wire.Reviews))
	for _, fields := range wire.Reviews {
		review := &model.ReviewItem{
			NewPath:      stringField(fields, "newPath", "new_path"),
			OldPath:      stringField(fields, "oldPath", "old_path"),
			StartLine:    intField(fields, "startLine", "start_line"),
			EndLine:      intField(fields, "endLine", "end_line"),
			IssueHeader:  stringField(fields, "issueHeader", "issue_header"),
			IssueContent: stringField(fields, "issueContent", "issue_content"),
		}
		review.Type = model.CommentSide(stringField(fields, "type"))

		normalizeReview(review)
		reviews = append(reviews, review)
	}

	return reviews, nil
}

// normalizeReview strips stray newlines that the | block-scalar repair leaves
// in single-line fields and defaults the side to "new".
func normalizeReview(review *model.ReviewItem) {
	review.NewPath = strings.ReplaceAll(review.NewPath, "\n", "")
	review.OldPath = strings.ReplaceAll(review.OldPath, "\n", "")
	review.Type = model.CommentSide(strings.ReplaceAll(string(review.Type), "\n", ""))

	if review.Type != model.SideOld && review.Type != model.SideNew {
		review.Type = model.SideNew
	}

	review.IssueHeader = strings.TrimSpace(review.IssueHeader)
	review.IssueContent = strings.TrimSpace(review.IssueContent)
}

func stringField(fields map[string]yaml.Node, keys ...string) string {
	for _, key := range keys {
		node, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := node.Decode(&s); err == nil {
			return s
		}
	}
	return ""
}

func intField(fields map[string]yaml.Node, keys ...string) int {
	for _, key := range keys {
		node, ok := fields[key]
		if !ok {
			continue
		}
		var n int
		if err := node.Decode(&n); err == nil {
			return n
		}
		var s string
		if err := node.Decode(&s); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return n
			}
		}
	}
	return 0
}

// fixYAMLFormatIssues repairs the YAML shapes models commonly get wrong:
// unquoted values with colons, broken indentation, missing space after the
// list dash. String fields are rewritten as | block scalars with their value
// on the following lines, numeric fields keep inline values.
func fixYAMLFormatIssues(content string) string {
	lines := strings.Split(content, "\n")
	fixed := make([]string, 0, len(lines))
	inReviewItem := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "- newPath:") || strings.HasPrefix(trimmed, "-newPath:"):
			inReviewItem = true
			line = "  - newPath: |"

		case inReviewItem:
			if idx := strings.Index(trimmed, ":"); idx != -1 {
				fieldName := strings.TrimSpace(trimmed[:idx])
				fieldValue := strings.TrimSpace(trimmed[idx+1:])

				switch {
				case reviewStringFields[fieldName]:
					line = "    " + fieldName + ": |"
				case reviewNumericFields[fieldName]:
					line = "    " + fieldName + ": " + fieldValue
				default:
					line = "    " + trimmed
				}
			} else if trimmed != "" {
				line = "      " + trimmed
			}

			if i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if strings.HasPrefix(next, "- newPath:") || strings.HasPrefix(next, "-newPath:") {
					inReviewItem = false
				}
			}
		}

		fixed = append(fixed, line)
	}

	return strings.Join(fixed, "\n")
}
