package pdfstow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildListing(t *testing.T) {
	t.Parallel()

	entries := []FileEntry{
		{Path: "docs/readme.md", Size: 2048, ModTime: time.Date(2023, 4, 5, 6, 7, 0, 0, time.UTC)},
		{Path: "weird (name).txt", Size: 10},
	}
	content := string(buildListing(entries))

	assert.True(t, strings.HasPrefix(content, "BT\n"))
	assert.True(t, strings.HasSuffix(content, "ET\n"))
	assert.Contains(t, content, "(Archive contains 2 files) Tj")
	assert.Contains(t, content, "(docs/readme.md) Tj")
	assert.Contains(t, content, "(2.0 KB) Tj")
	assert.Contains(t, content, "(2023-04-05 06:07) Tj")
	// Parens in filenames are escaped so the operand stays balanced.
	assert.Contains(t, content, `(weird \(name\).txt) Tj`)
	// Zero time renders as a placeholder.
	assert.Contains(t, content, "(N/A) Tj")
}

func TestEscapeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "file.txt", "file.txt"},
		{"parens", "a(b)c", `a\(b\)c`},
		{"backslash", `a\b`, `a\\b`},
		{"control bytes dropped", "a\x01b\nc", "abc"},
		{"non-ascii dropped", "naïve.txt", "nave.txt"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, escapeText(tt.in))
		})
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 * 10, "50.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.n), "n=%d", tt.n)
	}
}
