package reviewer

import (
	"strings"
	"testing"

	"github.com/seele-review/seele/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `@@ -1,3 +1,4 @@
 package main
-func a() {}
+func b() {}
+func c() {}
 // end`

func TestExtendDiffLineNumbers(t *testing.T) {
	files := ExtendDiff([]*model.FileDiff{{
		OldPath: "main.go",
		NewPath: "main.go",
		Diff:    sampleDiff,
	}})
	require.Len(t, files, 1)
	file := files[0]

	assert.Equal(t, map[int]string{
		1: " package main",
		2: "+func b() {}",
		3: "+func c() {}",
		4: " // end",
	}, file.NewLines)

	assert.Equal(t, map[int]string{
		1: " package main",
		2: "-func a() {}",
		3: " // end",
	}, file.OldLines)
}

func TestExtendDiffAnnotation(t *testing.T) {
	files := ExtendDiff([]*model.FileDiff{{NewPath: "main.go", Diff: sampleDiff}})
	require.Len(t, files, 1)

	lines := strings.Split(files[0].AnnotatedDiff, "\n")
	require.Len(t, lines, 6)

	// Hunk header is kept unchanged
	assert.Equal(t, "@@ -1,3 +1,4 @@", lines[0])

	assert.True(t, strings.HasPrefix(lines[1], "(1, 1)"))
	assert.True(t, strings.HasPrefix(lines[2], "(2, )"))
	assert.True(t, strings.HasPrefix(lines[3], "( , 2)"))
	assert.True(t, strings.HasPrefix(lines[4], "( , 3)"))
	assert.True(t, strings.HasPrefix(lines[5], "(3, 4)"))

	// All heads are padded to the same width
	width := strings.Index(lines[1], " package")
	for _, line := range lines[1:] {
		marker := line[width:]
		assert.Contains(t, []byte{' ', '+', '-'}, marker[0], "line %q", line)
	}
}

func TestExtendDiffTrailingNewline(t *testing.T) {
	files := ExtendDiff([]*model.FileDiff{{
		NewPath: "main.go",
		Diff:    sampleDiff + "\n",
	}})
	require.Len(t, files, 1)
	file := files[0]

	// The trailing newline must not produce a line past the end of the file
	assert.NotContains(t, file.NewLines, 5)
	assert.NotContains(t, file.OldLines, 4)
	assert.Equal(t, " // end", file.NewLines[4])
	assert.False(t, strings.HasSuffix(file.AnnotatedDiff, "\n"))
}

func TestExtendDiffDeterministic(t *testing.T) {
	diff := []*model.FileDiff{{NewPath: "a.go", Diff: sampleDiff}}

	first := ExtendDiff(diff)
	second := ExtendDiff(diff)

	assert.Equal(t, first[0].AnnotatedDiff, second[0].AnnotatedDiff)
	assert.Equal(t, first[0].NewLines, second[0].NewLines)
	assert.Equal(t, first[0].OldLines, second[0].OldLines)
}

func TestExtendDiffMultipleHunks(t *testing.T) {
	diff := "@@ -1 +1 @@\n-old\n+new\n@@ -10,2 +10,3 @@\n context\n+added\n trailing"

	files := ExtendDiff([]*model.FileDiff{{NewPath: "a.go", Diff: diff}})
	require.Len(t, files, 1)
	file := files[0]

	// Missing counts default to start-only headers
	assert.Equal(t, "+new", file.NewLines[1])
	assert.Equal(t, "-old", file.OldLines[1])

	// Second hunk restarts the counters at its own base
	assert.Equal(t, " context", file.NewLines[10])
	assert.Equal(t, "+added", file.NewLines[11])
	assert.Equal(t, " trailing", file.NewLines[12])
	assert.Equal(t, " trailing", file.OldLines[11])
}

func TestBuildExtendedDiff(t *testing.T) {
	files := ExtendDiff([]*model.FileDiff{
		{OldPath: "old.go", NewPath: "new.go", Diff: sampleDiff},
		{OldPath: "empty.go", NewPath: "empty.go", Diff: ""},
	})

	out := BuildExtendedDiff("fix: handle nil case", files)

	assert.True(t, strings.HasPrefix(out, "commit message: fix: handle nil case\n"))
	assert.Contains(t, out, "## new_path: new.go\n## old_path: old.go\n")
	assert.NotContains(t, out, "empty.go")
}

func TestStripLinePrefix(t *testing.T) {
	files := ExtendDiff([]*model.FileDiff{{NewPath: "a.go", Diff: sampleDiff}})
	lines := strings.Split(files[0].AnnotatedDiff, "\n")

	width := strings.Index(lines[1], " package") - 1

	assert.Equal(t, " package main", StripLinePrefix(lines[1], width))
	assert.Equal(t, "-func a() {}", StripLinePrefix(lines[2], width))
	assert.Equal(t, "+func b() {}", StripLinePrefix(lines[3], width))

	// Header lines carry no prefix and are returned as-is
	assert.Equal(t, lines[0], StripLinePrefix(lines[0], width))
}
