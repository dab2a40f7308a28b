package extraction

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/scriptforge/pkg/models"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		data        string
		want        Format
	}{
		{"pdf magic wins over extension", "notes.txt", "text/plain", "%PDF-1.7\n...", FormatPDF},
		{"pdf content type", "upload", "application/pdf", "garbage", FormatPDF},
		{"html content type", "page", "text/html; charset=utf-8", "hello", FormatHTML},
		{"markdown content type", "page", "text/markdown", "hello", FormatMarkdown},
		{"htm extension", "procedure.HTM", "", "hello", FormatHTML},
		{"md extension", "steps.md", "application/octet-stream", "hello", FormatMarkdown},
		{"txt extension", "steps.txt", "", "# heading", FormatText},
		{"html sniffed", "upload", "", "  <!DOCTYPE html><html></html>", FormatHTML},
		{"markdown sniffed", "upload", "", "intro\n## Steps\n- click", FormatMarkdown},
		{"plain fallback", "upload", "", "just words", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.filename, tt.contentType, []byte(tt.data)))
		})
	}
}

func TestExtract_HTML(t *testing.T) {
	html := `<html><head><title>Export Report</title></head>
<body><h1>Steps</h1><p>Click <strong>Export</strong>.</p><ul><li>Open menu</li></ul></body></html>`

	res, err := New().Extract(context.Background(), "guide.html", "", []byte(html))

	require.NoError(t, err)
	assert.Equal(t, FormatHTML, res.Format)
	assert.Equal(t, "Export Report", res.Title)
	assert.Contains(t, res.Text, "# Steps")
	assert.Contains(t, res.Text, "**Export**")
	assert.Contains(t, res.Text, "Open menu")
	assert.NotContains(t, res.Text, "<p>")
}

func TestHTMLTitle_FallsBackToHeading(t *testing.T) {
	assert.Equal(t, "Login Guide", HTMLTitle("<body><h1>Login\n  Guide</h1></body>"))
	assert.Equal(t, "", HTMLTitle("<p>no title</p>"))
}

func TestExtract_Markdown(t *testing.T) {
	md := "Some intro\n\n# Nightly Export\n\n1. Log in\n"

	res, err := New().Extract(context.Background(), "export.md", "", []byte(md))

	require.NoError(t, err)
	assert.Equal(t, "Nightly Export", res.Title)
	assert.Equal(t, md[:len(md)-1], res.Text)
	assert.Equal(t, 1, res.Pages)
}

func TestExtract_PlainTextTitleFromFilename(t *testing.T) {
	res, err := New().Extract(context.Background(), `C:\docs\vendor-portal.txt`, "", []byte("Open the portal.\n"))

	require.NoError(t, err)
	assert.Equal(t, FormatText, res.Format)
	assert.Equal(t, "vendor-portal", res.Title)
	assert.Equal(t, "Open the portal.", res.Text)
}

func TestExtract_EmptyDocument(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"whitespace text", "blank.txt", []byte("  \n\t ")},
		{"empty html body", "blank.html", []byte("<html><body></body></html>")},
		{"binary text", "blob.txt", []byte{0xff, 0xfe, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Extract(context.Background(), tt.filename, "", tt.data)
			assert.ErrorIs(t, err, models.ErrEmptyDocument)
		})
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, "a.txt", "", []byte("text"))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_InvalidPDF(t *testing.T) {
	_, err := New().Extract(context.Background(), "broken.pdf", "", []byte("%PDF-1.4\nnot really a pdf"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestContentStreamText(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "simple lines",
			stream: "BT /F1 12 Tf 72 712 Td (Hello World) Tj 0 -14 Td (Second line) Tj ET",
			want:   "Hello World\nSecond line",
		},
		{
			name:   "TJ array drops kerning",
			stream: "BT [(Sub) -20 (mit) 5 ( form)] TJ ET",
			want:   "Submit form",
		},
		{
			name:   "escapes and nested parens",
			stream: `BT (Path \(C:\\tmp\) \050ok\051) Tj ET`,
			want:   `Path (C:\tmp) (ok)`,
		},
		{
			name:   "hex strings",
			stream: "BT <48656C6C6F> Tj ET",
			want:   "Hello",
		},
		{
			name:   "quote operator starts a line",
			stream: "BT (One) Tj (Two) ' ET",
			want:   "One\nTwo",
		},
		{
			name:   "no text operators",
			stream: "q 1 0 0 1 0 0 cm /Im1 Do Q",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentStreamText(tt.stream))
		})
	}
}

func TestReadPageStreams_OrdersByPage(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("source_Content_page_2.txt", "BT (Second page) Tj ET")
	write("source_Content_page_10.txt", "BT (Tenth page) Tj ET")
	write("source_Content_page_1.txt", "BT (First page) Tj ET")
	write("unrelated.txt", "BT (ignored) Tj ET")

	pages, err := readPageStreams(dir)

	require.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, "First page\n\nSecond page\n\nTenth page", joinPages(pages))
}
