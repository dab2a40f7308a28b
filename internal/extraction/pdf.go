package extraction

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var pageFile = regexp.MustCompile(`page_(\d+)`)

// extractPDF writes data to a scratch directory, lets pdfcpu dump the page
// content streams and decodes the text operators of each page.
func extractPDF(data []byte) (string, int, error) {
	dir, err := os.MkdirTemp("", "scriptforge-pdf-")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return "", 0, fmt.Errorf("failed to write temp PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(src)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read PDF context: %w", err)
	}

	outDir := filepath.Join(dir, "content")
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return "", 0, fmt.Errorf("failed to create content dir: %w", err)
	}
	if err := api.ExtractContentFile(src, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return "", pdfCtx.PageCount, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pages, err := readPageStreams(outDir)
	if err != nil {
		return "", pdfCtx.PageCount, err
	}
	return joinPages(pages), pdfCtx.PageCount, nil
}

// readPageStreams decodes every dumped content stream in dir, keyed by page number.
func readPageStreams(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read content dir: %w", err)
	}

	pages := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pageFile.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d content: %w", num, err)
		}
		pages[num] += ContentStreamText(string(raw))
	}
	return pages, nil
}

func joinPages(pages map[int]string) string {
	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	parts := make([]string, 0, len(nums))
	for _, n := range nums {
		if text := strings.TrimSpace(pages[n]); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ContentStreamText pulls the shown strings out of a PDF page content stream.
// Text positioning operators start a new line; TJ kerning is dropped.
func ContentStreamText(stream string) string {
	var b strings.Builder
	var pending []string

	flushLine := func() {
		line := strings.TrimRight(b.String(), " ")
		b.Reset()
		b.WriteString(line)
		if line != "" && !strings.HasSuffix(line, "\n") {
			b.WriteByte('\n')
		}
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteral(stream, i)
			pending = append(pending, s)
			i = next
		case c == '[' || c == ']':
			i++
		case c == '<' && i+1 < len(stream) && stream[i+1] != '<':
			end := strings.IndexByte(stream[i:], '>')
			if end < 0 {
				i = len(stream)
				continue
			}
			pending = append(pending, decodeHex(stream[i+1:i+end]))
			i += end + 1
		case isSpace(c):
			i++
		default:
			start := i
			for i < len(stream) && !isSpace(stream[i]) && !strings.ContainsRune("()[]<>/", rune(stream[i])) {
				i++
			}
			if i == start {
				i++
				continue
			}
			switch stream[start:i] {
			case "Tj", "TJ":
				b.WriteString(strings.Join(pending, ""))
			case "'", "\"":
				flushLine()
				b.WriteString(strings.Join(pending, ""))
			case "Td", "TD", "T*", "ET":
				flushLine()
			}
			if isOperator(stream[start:i]) {
				pending = pending[:0]
			}
		}
	}
	flushLine()
	return strings.TrimSpace(b.String())
}

// readLiteral decodes a balanced (...) string starting at i and returns the index after it.
func readLiteral(s string, i int) (string, int) {
	var b strings.Builder
	depth := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			switch e := s[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					j := i
					for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
						j++
					}
					v, _ := strconv.ParseUint(s[i:j], 8, 8)
					b.WriteByte(byte(v))
					i = j - 1
				} else {
					b.WriteByte(e)
				}
			}
		case c == '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
		i++
	}
	return b.String(), i
}

func decodeHex(h string) string {
	h = strings.Join(strings.Fields(h), "")
	if len(h)%2 == 1 {
		h += "0"
	}
	out := make([]byte, 0, len(h)/2)
	for k := 0; k+1 < len(h); k += 2 {
		v, err := strconv.ParseUint(h[k:k+2], 16, 8)
		if err != nil {
			return ""
		}
		out = append(out, byte(v))
	}
	return string(out)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

// isOperator reports whether tok is a content stream operator rather than an operand.
func isOperator(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '\'' || c == '"' || c == '*'
}
