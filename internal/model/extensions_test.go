package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReviewable(t *testing.T) {
	tests := []struct {
		name string
		diff FileDiff
		want bool
	}{
		{
			name: "go source",
			diff: FileDiff{NewPath: "main.go", Diff: "+code"},
			want: true,
		},
		{
			name: "yaml config",
			diff: FileDiff{NewPath: "deploy.yaml", Diff: "+replicas: 2"},
			want: true,
		},
		{
			name: "code file with empty diff",
			diff: FileDiff{NewPath: "main.go"},
		},
		{
			name: "binary flag",
			diff: FileDiff{NewPath: "main.go", Diff: "+code", IsBinary: true},
		},
		{
			name: "too large",
			diff: FileDiff{NewPath: "main.go", Diff: "+code", TooLarge: true},
		},
		{
			name: "generated",
			diff: FileDiff{NewPath: "api.pb.go", Diff: "+code", Generated: true},
		},
		{
			name: "deleted file",
			diff: FileDiff{NewPath: "main.go", Diff: "-code", IsDeleted: true},
		},
		{
			name: "excluded image extension",
			diff: FileDiff{NewPath: "logo.png", Diff: "+data"},
		},
		{
			name: "unknown extension with text diff",
			diff: FileDiff{NewPath: "Makefile", Diff: "+build:"},
			want: true,
		},
		{
			name: "unknown extension with invalid utf8",
			diff: FileDiff{NewPath: "data.dat", Diff: string([]byte{0xff, 0xfe})},
		},
		{
			name: "falls back to old path",
			diff: FileDiff{OldPath: "renamed.go", Diff: "+code"},
			want: true,
		},
		{
			name: "extension is case insensitive",
			diff: FileDiff{NewPath: "README.PNG", Diff: "+data"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.diff.IsReviewable())
		})
	}
}

func TestParseReviewMode(t *testing.T) {
	assert.Equal(t, ModeReport, ParseReviewMode("report"))
	assert.Equal(t, ModeReport, ParseReviewMode(" Report "))
	assert.Equal(t, ModeComment, ParseReviewMode("comment"))
	assert.Equal(t, ModeComment, ParseReviewMode(""))
	assert.Equal(t, ModeComment, ParseReviewMode("anything"))
}

func TestReviewKey(t *testing.T) {
	a := &ReviewItem{NewPath: "a.go", StartLine: 1, EndLine: 2, Type: SideNew, IssueHeader: "x"}
	b := &ReviewItem{NewPath: "a.go", StartLine: 1, EndLine: 2, Type: SideNew, IssueHeader: "y"}
	c := &ReviewItem{NewPath: "a.go", StartLine: 1, EndLine: 2, Type: SideOld}

	assert.Equal(t, a.Key(), b.Key(), "header is not part of the identity")
	assert.NotEqual(t, a.Key(), c.Key())
}
