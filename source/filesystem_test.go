package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestListDocumentsFiltering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.py", "def main(): pass")
	writeFile(t, dir, "notes.md", "# Notes")
	writeFile(t, dir, "vendor/dep.py", "def dep(): pass")
	writeFile(t, dir, ".git/config", "noise")

	src, err := NewFilesystemSource(dir)
	require.NoError(t, err)
	assert.Equal(t, "files", src.Name())

	all, err := src.ListDocuments(context.Background(), "", nil, nil)
	require.NoError(t, err)
	// Dot-directories are skipped.
	assert.Len(t, all, 3)

	pyOnly, err := src.ListDocuments(context.Background(), "", []string{"*.py"}, nil)
	require.NoError(t, err)
	assert.Len(t, pyOnly, 2)

	noVendor, err := src.ListDocuments(context.Background(), "", []string{"*.py"}, []string{"vendor/*"})
	require.NoError(t, err)
	require.Len(t, noVendor, 1)
	assert.Equal(t, "main.py", noVendor[0].FilePath)
}

func TestListDocumentsDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.py", "b")
	writeFile(t, dir, "a.py", "a")
	writeFile(t, dir, "c.py", "c")

	src, err := NewFilesystemSource(dir)
	require.NoError(t, err)

	docs, err := src.ListDocuments(context.Background(), "", nil, nil)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a.py", docs[0].FilePath)
	assert.Equal(t, "b.py", docs[1].FilePath)
	assert.Equal(t, "c.py", docs[2].FilePath)
}

func TestMarkdownNormalization(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", "# Title\n\nSome **bold** text.")

	src, err := NewFilesystemSource(dir)
	require.NoError(t, err)

	docs, err := src.ListDocuments(context.Background(), "", nil, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "Title")
	assert.Contains(t, docs[0].Content, "bold")
	assert.NotContains(t, docs[0].Content, "**")
	assert.NotContains(t, docs[0].Content, "<h1>")
}

func TestHTMLNormalizationStripsScripts(t *testing.T) {
	text := htmlToText(`<html><body><script>alert(1)</script><p>visible text</p></body></html>`)
	assert.Contains(t, text, "visible text")
	assert.NotContains(t, text, "alert")
}

func TestReadFileConfinement(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.txt", "fine")

	src, err := NewFilesystemSource(dir)
	require.NoError(t, err)

	content, err := src.ReadFile(context.Background(), "ok.txt")
	require.NoError(t, err)
	assert.Equal(t, "fine", content)

	_, err = src.ReadFile(context.Background(), "../outside.txt")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestChunkerSplit(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(20))

	short := c.Split("tiny content")
	assert.Equal(t, []string{"tiny content"}, short)

	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("line of repeated content here\n")
	}
	chunks := c.Split(b.String())
	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 100)
	}
	// Every byte of input is covered.
	joined := strings.Join(chunks, "")
	assert.GreaterOrEqual(t, len(joined), b.Len())
}

func TestNewFilesystemSourceErrors(t *testing.T) {
	_, err := NewFilesystemSource(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = NewFilesystemSource(file)
	assert.Error(t, err)
}
