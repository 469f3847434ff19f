package reviewer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/seele-review/seele/internal/model"
)

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Hunk is one @@ ... @@ section of a unified diff
type Hunk struct {
	OldStart int
	NewStart int
	Lines    []string
}

// ExtendedFile is a file diff annotated with per-line (old, new) numbers.
// NewLines and OldLines map post-change line numbers to the raw marker lines.
type ExtendedFile struct {
	*model.FileDiff
	AnnotatedDiff string
	NewLines      map[int]string
	OldLines      map[int]string
}

// splitHunks splits a unified diff into hunks at every @@ header line.
// The header itself stays as the first line of its hunk.
func splitHunks(diff string) []*Hunk {
	lines := strings.Split(diff, "\n")

	// A trailing newline yields a phantom empty element, not a context line
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var hunks []*Hunk
	current := &Hunk{}

	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			if len(current.Lines) > 0 {
				hunks = append(hunks, current)
				current = &Hunk{}
			}
			if m := hunkHeaderRegex.FindStringSubmatch(line); m != nil {
				current.OldStart, _ = strconv.Atoi(m[1])
				current.NewStart, _ = strconv.Atoi(m[3])
			}
		}
		current.Lines = append(current.Lines, line)
	}
	if len(current.Lines) > 0 {
		hunks = append(hunks, current)
	}

	return hunks
}

// extendHunk prefixes every hunk line with its (old, new) line numbers and
// returns the annotated lines together with the new/old line maps.
// Deletions advance only the old counter, additions only the new one,
// context lines advance both. Prefixes are padded to the widest head in the
// hunk, the header line is kept unchanged.
func extendHunk(hunk *Hunk) (annotated []string, newLines, oldLines map[int]string) {
	newLines = make(map[int]string)
	oldLines = make(map[int]string)

	if len(hunk.Lines) == 0 {
		return nil, newLines, oldLines
	}

	type headedLine struct {
		head string
		line string
	}

	var (
		temp          []headedLine
		maxHeadLength int
	)

	oldNo := hunk.OldStart
	newNo := hunk.NewStart

	for _, line := range hunk.Lines[1:] {
		var head string
		switch {
		case strings.HasPrefix(line, "-"):
			head = fmt.Sprintf("(%d, )", oldNo)
			oldLines[oldNo] = line
			oldNo++
		case strings.HasPrefix(line, "+"):
			head = fmt.Sprintf("( , %d)", newNo)
			newLines[newNo] = line
			newNo++
		default:
			head = fmt.Sprintf("(%d, %d)", oldNo, newNo)
			oldLines[oldNo] = line
			newLines[newNo] = line
			oldNo++
			newNo++
		}
		temp = append(temp, headedLine{head: head, line: line})
		if len(head) > maxHeadLength {
			maxHeadLength = len(head)
		}
	}

	annotated = make([]string, 0, len(hunk.Lines))
	annotated = append(annotated, hunk.Lines[0])
	for _, hl := range temp {
		annotated = append(annotated, fmt.Sprintf("%-*s %s", maxHeadLength, hl.head, hl.line))
	}

	return annotated, newLines, oldLines
}

// ExtendDiff annotates every file diff with per-line numbering
func ExtendDiff(diffs []*model.FileDiff) []*ExtendedFile {
	extended := make([]*ExtendedFile, 0, len(diffs))

	for _, diff := range diffs {
		file := &ExtendedFile{
			FileDiff: diff,
			NewLines: make(map[int]string),
			OldLines: make(map[int]string),
		}

		var annotated []string
		for _, hunk := range splitHunks(diff.Diff) {
			lines, newLines, oldLines := extendHunk(hunk)
			annotated = append(annotated, lines...)
			for n, l := range newLines {
				file.NewLines[n] = l
			}
			for n, l := range oldLines {
				file.OldLines[n] = l
			}
		}
		file.AnnotatedDiff = strings.Join(annotated, "\n")

		extended = append(extended, file)
	}

	return extended
}

// BuildExtendedDiff assembles the model input: a one-line commit message
// header followed by a per-file "## new_path / ## old_path" section with the
// annotated diff. Files with empty diffs are omitted.
func BuildExtendedDiff(title string, files []*ExtendedFile) string {
	var sb strings.Builder
	sb.WriteString("commit message: ")
	sb.WriteString(title)
	sb.WriteString("\n")

	for _, file := range files {
		if strings.TrimSpace(file.AnnotatedDiff) == "" {
			continue
		}
		sb.WriteString("\n## new_path: ")
		sb.WriteString(file.NewPath)
		sb.WriteString("\n## old_path: ")
		sb.WriteString(file.OldPath)
		sb.WriteString("\n")
		sb.WriteString(file.AnnotatedDiff)
		sb.WriteString("\n")
	}

	return sb.String()
}

// StripLinePrefix recovers the raw patch line from an annotated one.
// headWidth is the padded prefix width used for the hunk.
func StripLinePrefix(annotated string, headWidth int) string {
	if !strings.HasPrefix(annotated, "(") || len(annotated) <= headWidth {
		return annotated
	}
	return annotated[headWidth+1:]
}
