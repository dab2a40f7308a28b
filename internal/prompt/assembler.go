// Package prompt assembles the generation prompt: behavioral contract, embedded
// document context, optional page markup, the user instruction and the
// output-format contract.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mfenderov/scriptforge/internal/chunker"
	"github.com/mfenderov/scriptforge/pkg/models"
)

// Default budgets in characters.
const (
	DefaultMaxContextChars = 120000
	DefaultMaxMarkupChars  = 40000
)

// Config holds assembler budgets.
type Config struct {
	MaxContextChars int
	MaxMarkupChars  int
}

// DocumentContext is the full cleaned text of one document.
type DocumentContext struct {
	Title string
	Text  string
}

// Input is everything that goes into one prompt.
// Documents (long-context mode) wins over Chunks (retrieval mode) when both are set.
type Input struct {
	Instruction string
	Documents   []DocumentContext

	Chunks []models.Chunk
	// Titles maps document IDs to display titles for chunk headers.
	Titles map[string]string
	// DocumentOrder fixes the order documents appear in; unknown IDs follow in ID order.
	DocumentOrder []string
	// Overlap lets contiguous chunks be joined without repeating shared text.
	Overlap int

	TargetURL  string
	PageMarkup string
}

// Prompt is an assembled prompt.
type Prompt struct {
	Text         string
	Truncated    bool
	OmittedChars int
}

// Assembler builds prompts under a context budget.
type Assembler struct {
	maxContext int
	maxMarkup  int
}

// New creates an assembler. Zero budgets fall back to the defaults.
func New(cfg Config) *Assembler {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.MaxMarkupChars <= 0 {
		cfg.MaxMarkupChars = DefaultMaxMarkupChars
	}
	return &Assembler{
		maxContext: cfg.MaxContextChars,
		maxMarkup:  cfg.MaxMarkupChars,
	}
}

// Assemble renders the prompt. Only embedded material is ever truncated;
// the contracts and the instruction are always present in full.
func (a *Assembler) Assemble(in Input) Prompt {
	var out Prompt
	var b strings.Builder

	b.WriteString(behaviorContract)
	b.WriteString("\n\n")

	context := a.renderContext(in)
	if context == "" {
		b.WriteString(noContextNotice)
		b.WriteString("\n\n")
	} else {
		context, omitted := truncate(context, a.maxContext, "document context")
		out.Truncated = omitted > 0
		out.OmittedChars = omitted

		b.WriteString(contextBegin)
		b.WriteString("\n")
		b.WriteString(context)
		b.WriteString("\n")
		b.WriteString(contextEnd)
		b.WriteString("\n\n")
	}

	if in.TargetURL != "" {
		fmt.Fprintf(&b, "TARGET PAGE: %s\n\n", in.TargetURL)
	}
	if markup := strings.TrimSpace(in.PageMarkup); markup != "" {
		markup, omitted := truncate(markup, a.maxMarkup, "page markup")
		if omitted > 0 {
			out.Truncated = true
			out.OmittedChars += omitted
		}
		b.WriteString(markupRules)
		b.WriteString("\n\n")
		b.WriteString(markupBegin)
		b.WriteString("\n")
		b.WriteString(markup)
		b.WriteString("\n")
		b.WriteString(markupEnd)
		b.WriteString("\n\n")
	}

	b.WriteString("USER INSTRUCTION:\n")
	b.WriteString(instructionBegin)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(in.Instruction))
	b.WriteString("\n")
	b.WriteString(instructionEnd)
	b.WriteString("\n\n")

	b.WriteString(FormatContract())
	b.WriteString("\n")

	out.Text = b.String()
	return out
}

// FormatContract renders the strict output-format contract.
func FormatContract() string {
	return fmt.Sprintf(formatContract,
		SeleniumSection.Open, SeleniumSection.Library, SeleniumSection.Close,
		PlaywrightSection.Open, PlaywrightSection.Library, PlaywrightSection.Close,
	)
}

func (a *Assembler) renderContext(in Input) string {
	if len(in.Documents) > 0 {
		return renderDocuments(in.Documents)
	}
	if len(in.Chunks) > 0 {
		return renderChunks(in)
	}
	return ""
}

func renderDocuments(docs []DocumentContext) string {
	if len(docs) == 1 && docs[0].Title == "" {
		return docs[0].Text
	}

	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		title := doc.Title
		if title == "" {
			title = "Untitled"
		}
		parts = append(parts, fmt.Sprintf("### Document %d: %s\n%s", i+1, title, doc.Text))
	}
	return strings.Join(parts, "\n\n")
}

// renderChunks groups retrieved chunks per document and emits them in
// sequence order, never in similarity order.
func renderChunks(in Input) string {
	ordered := make([]models.Chunk, len(in.Chunks))
	copy(ordered, in.Chunks)
	chunker.SortBySequence(ordered)

	byDoc := make(map[string][]models.Chunk)
	var docIDs []string
	for _, chunk := range ordered {
		if _, ok := byDoc[chunk.DocumentID]; !ok {
			docIDs = append(docIDs, chunk.DocumentID)
		}
		byDoc[chunk.DocumentID] = append(byDoc[chunk.DocumentID], chunk)
	}
	docIDs = applyOrder(docIDs, in.DocumentOrder)

	parts := make([]string, 0, len(docIDs))
	for i, docID := range docIDs {
		title := in.Titles[docID]
		if title == "" {
			title = docID
		}

		var b strings.Builder
		fmt.Fprintf(&b, "### Document %d: %s (excerpts)\n", i+1, title)
		prev := -1
		for _, chunk := range byDoc[docID] {
			content := chunk.Content
			switch {
			case prev < 0:
			case chunk.Sequence == prev+1:
				content = dropPrefix(content, in.Overlap)
			default:
				b.WriteString("\n[...]\n")
			}
			b.WriteString(content)
			prev = chunk.Sequence
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}

func applyOrder(ids, order []string) []string {
	if len(order) == 0 {
		return ids
	}
	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}

	out := make([]string, 0, len(ids))
	for _, id := range order {
		if present[id] {
			out = append(out, id)
			delete(present, id)
		}
	}
	for _, id := range ids {
		if present[id] {
			out = append(out, id)
		}
	}
	return out
}

func dropPrefix(s string, n int) string {
	runes := []rune(s)
	if n <= 0 {
		return s
	}
	if n >= len(runes) {
		return ""
	}
	return string(runes[n:])
}

// truncate cuts s to limit characters from the end and appends a visible marker.
func truncate(s string, limit int, what string) (string, int) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, 0
	}
	omitted := len(runes) - limit
	return string(runes[:limit]) + fmt.Sprintf("\n[... %s truncated: %d characters omitted ...]", what, omitted), omitted
}
