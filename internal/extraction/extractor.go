// Package extraction turns uploaded procedure documents into plain text.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// Result is the text recovered from one document.
type Result struct {
	Title  string
	Text   string
	Pages  int
	Format Format
}

// Extractor converts raw uploads into text.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract detects the document format and returns its text.
// Returns models.ErrEmptyDocument when nothing readable remains.
func (e *Extractor) Extract(ctx context.Context, filename, contentType string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := DetectFormat(filename, contentType, data)
	res := &Result{Format: format, Pages: 1}

	switch format {
	case FormatPDF:
		text, pages, err := extractPDF(data)
		if err != nil {
			return nil, fmt.Errorf("failed to extract PDF %s: %w", filename, err)
		}
		res.Text = text
		res.Pages = pages
	case FormatHTML:
		raw := string(data)
		text, err := ConvertHTML(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to convert HTML %s: %w", filename, err)
		}
		res.Title = HTMLTitle(raw)
		res.Text = text
	case FormatMarkdown:
		res.Text = string(data)
		res.Title = MarkdownTitle(res.Text)
	default:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", models.ErrEmptyDocument, filename)
		}
		res.Text = string(data)
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyDocument, filename)
	}
	if res.Title == "" {
		res.Title = titleFromFilename(filename)
	}

	slog.Debug("Extracted document",
		"filename", filename,
		"format", format,
		"pages", res.Pages,
		"chars", utf8.RuneCountInString(res.Text))

	return res, nil
}

func titleFromFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
