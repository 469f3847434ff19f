package model

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// codeExtensions are file types that are always sent for review.
var codeExtensions = map[string]struct{}{
	".py":   {},
	".js":   {},
	".jsx":  {},
	".ts":   {},
	".tsx":  {},
	".json": {},
	".html": {},
	".css":  {},
	".scss": {},
	".go":   {},
	".rs":   {},
	".java": {},
	".kt":   {},
	".c":    {},
	".h":    {},
	".cpp":  {},
	".hpp":  {},
	".yml":  {},
	".yaml": {},
	".toml": {},
	".sh":   {},
	".sql":  {},
}

// excludeExtensions are binary and media file types that never reach the model.
var excludeExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".svg": {}, ".ico": {},
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {},
	".mp4": {}, ".avi": {}, ".mov": {}, ".mp3": {}, ".wav": {},
	".ttf": {}, ".woff": {}, ".woff2": {}, ".eot": {},
}

// IsReviewable reports whether the file diff should be sent for review.
// A file is kept when its extension is a known code extension, or when it is
// not excluded and carries non-empty valid UTF-8 diff text. Binary, oversized
// and generated files are always dropped.
func (d *FileDiff) IsReviewable() bool {
	if d.IsBinary || d.TooLarge || d.Generated || d.IsDeleted {
		return false
	}

	path := d.NewPath
	if path == "" {
		path = d.OldPath
	}
	ext := strings.ToLower(filepath.Ext(path))

	if _, ok := codeExtensions[ext]; ok {
		return d.Diff != ""
	}
	if _, ok := excludeExtensions[ext]; ok {
		return false
	}
	return d.Diff != "" && utf8.ValidString(d.Diff)
}
