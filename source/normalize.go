package source

import (
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// NormalizeContent converts markup documents to plain text so LLM extraction
// sees prose rather than tags. Unknown extensions pass through unchanged.
func NormalizeContent(path, content string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return markdownToText(content)
	case ".html", ".htm":
		return htmlToText(content)
	default:
		return content
	}
}

// markdownToText renders markdown to HTML and extracts the text nodes.
func markdownToText(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	rendered := markdown.ToHTML([]byte(md), p, nil)
	return htmlToText(string(rendered))
}

// htmlToText sanitizes the markup and collapses it to text content.
func htmlToText(html string) string {
	sanitized := bluemonday.UGCPolicy().Sanitize(html)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitized))
	if err != nil {
		return sanitized
	}
	text := doc.Text()

	// Collapse runs of blank lines left behind by stripped block elements.
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
