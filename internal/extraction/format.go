package extraction

import (
	"bytes"
	"path"
	"regexp"
	"strings"
)

// Format is the detected kind of an uploaded document.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// DetectFormat combines all detection methods to decide how to extract a document.
// Checks in order: magic bytes, Content-Type, file extension, then content heuristics.
func DetectFormat(filename, contentType string, data []byte) Format {
	if bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return FormatPDF
	}
	if f := formatFromContentType(contentType); f != "" {
		return f
	}
	if f := formatFromFilename(filename); f != "" {
		return f
	}

	trimmed := strings.TrimSpace(string(data))
	switch {
	case looksLikeHTML(trimmed):
		return FormatHTML
	case hasMarkdownPatterns(trimmed):
		return FormatMarkdown
	default:
		return FormatText
	}
}

func formatFromContentType(contentType string) Format {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return FormatPDF
	case strings.HasPrefix(ct, "text/html"), strings.HasPrefix(ct, "application/xhtml"):
		return FormatHTML
	case strings.HasPrefix(ct, "text/markdown"), strings.HasPrefix(ct, "text/x-markdown"):
		return FormatMarkdown
	default:
		// text/plain and application/octet-stream say nothing reliable
		return ""
	}
}

func formatFromFilename(filename string) Format {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt", ".text":
		return FormatText
	default:
		return ""
	}
}

// looksLikeHTML checks if content appears to be HTML.
func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.HasPrefix(lower, "<!doctype") ||
		strings.HasPrefix(lower, "<html") ||
		strings.HasPrefix(lower, "<head") ||
		strings.HasPrefix(lower, "<body")
}

var (
	markdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	markdownList    = regexp.MustCompile(`(?m)^[\-\*]\s+\S`)
	markdownLink    = regexp.MustCompile(`\[.+?\]\(.+?\)`)
)

// hasMarkdownPatterns checks for common markdown syntax.
func hasMarkdownPatterns(content string) bool {
	return markdownHeading.MatchString(content) ||
		markdownList.MatchString(content) ||
		markdownLink.MatchString(content)
}
