package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// FilesystemSource enumerates documents from a directory tree. Markdown and
// HTML files are normalized to plain text before extraction; everything else
// is passed through verbatim.
type FilesystemSource struct {
	name      string
	root      string
	normalize bool
	maxBytes  int64
}

// FilesystemOption configures a FilesystemSource.
type FilesystemOption func(*FilesystemSource)

// WithName sets the source toolkit name (default "files").
func WithName(name string) FilesystemOption {
	return func(s *FilesystemSource) {
		s.name = name
	}
}

// WithoutNormalization disables markdown/HTML to text conversion.
func WithoutNormalization() FilesystemOption {
	return func(s *FilesystemSource) {
		s.normalize = false
	}
}

// WithMaxFileBytes skips files larger than the limit (default 1 MiB).
func WithMaxFileBytes(n int64) FilesystemOption {
	return func(s *FilesystemSource) {
		s.maxBytes = n
	}
}

// NewFilesystemSource creates a source rooted at dir.
func NewFilesystemSource(root string, opts ...FilesystemOption) (*FilesystemSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", root)
	}
	s := &FilesystemSource{
		name:      "files",
		root:      root,
		normalize: true,
		maxBytes:  1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name identifies the source toolkit.
func (s *FilesystemSource) Name() string {
	return s.name
}

// ListDocuments walks the tree and returns matching documents sorted by
// relative path so processing order is deterministic. The branch parameter
// is ignored for local filesystems.
func (s *FilesystemSource) ListDocuments(ctx context.Context, branch string, whitelist, blacklist []string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !MatchesPatterns(rel, whitelist, blacklist) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if s.maxBytes > 0 && info.Size() > s.maxBytes {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := string(raw)
		if s.normalize {
			content = NormalizeContent(rel, content)
		}
		docs = append(docs, Document{
			ID:       uuid.NewString(),
			Content:  content,
			FilePath: rel,
			Metadata: map[string]any{
				"source":    s.name,
				"size":      info.Size(),
				"extension": strings.TrimPrefix(filepath.Ext(rel), "."),
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents under %s: %w", s.root, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].FilePath < docs[j].FilePath })
	return docs, nil
}

// ReadFile returns the raw content of a file relative to the source root.
// Paths resolving outside the root are rejected.
func (s *FilesystemSource) ReadFile(ctx context.Context, path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	resolved, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	if resolved != rootAbs && !strings.HasPrefix(resolved, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes source root", path)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// MatchesPatterns applies glob whitelist then blacklist filtering. An empty
// whitelist admits everything; blacklist always wins.
func MatchesPatterns(path string, whitelist, blacklist []string) bool {
	match := func(pattern string) bool {
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(pattern, filepath.Base(path)); err == nil && ok {
			return true
		}
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "*"))
	}
	for _, pattern := range blacklist {
		if match(pattern) {
			return false
		}
	}
	if len(whitelist) == 0 {
		return true
	}
	for _, pattern := range whitelist {
		if match(pattern) {
			return true
		}
	}
	return false
}
