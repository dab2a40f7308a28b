// Package chunker splits normalized document text into overlapping fixed-size windows.
package chunker

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 3000

// DefaultChunkOverlap is the default number of characters shared by consecutive chunks.
const DefaultChunkOverlap = 300

var (
	horizontalSpace = regexp.MustCompile(`[^\S\n]+`)
	lineBreaks      = regexp.MustCompile(`\s*\n\s*`)
)

// Chunker produces chunks with a sliding character window.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithOverlap sets the overlap between consecutive windows in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a chunker. The window must advance: overlap has to be
// non-negative and strictly smaller than the chunk size.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", models.ErrInvalidChunking, c.size)
	}
	if c.overlap < 0 || c.overlap >= c.size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", models.ErrInvalidChunking, c.overlap, c.size)
	}
	return c, nil
}

// Size returns the window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the window overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Normalize collapses horizontal whitespace runs to one space and
// newline runs to one newline, then trims.
func Normalize(text string) string {
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = lineBreaks.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// Chunk normalizes text and splits it into chunks owned by documentID.
// Empty input is not a valid procedure document and yields ErrEmptyDocument.
func (c *Chunker) Chunk(documentID, text string) ([]models.Chunk, error) {
	runes := []rune(Normalize(text))
	if len(runes) == 0 {
		return nil, models.ErrEmptyDocument
	}

	step := c.size - c.overlap
	chunks := make([]models.Chunk, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			seq := len(chunks)
			chunks = append(chunks, models.Chunk{
				ID:         models.ChunkID(documentID, seq),
				DocumentID: documentID,
				Sequence:   seq,
				Content:    content,
				Tokens:     models.EstimateTokens(content),
			})
		}

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// SortBySequence orders chunks by document and sequence index in place.
// Storage and retrieval order is never trusted.
func SortBySequence(chunks []models.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].Sequence < chunks[j].Sequence
	})
}

// Reassemble rebuilds the normalized text of one document from its chunks,
// dropping the overlap each chunk repeats from its predecessor.
func Reassemble(chunks []models.Chunk, overlap int) string {
	ordered := make([]models.Chunk, len(chunks))
	copy(ordered, chunks)
	SortBySequence(ordered)

	var b strings.Builder
	for i, chunk := range ordered {
		if i == 0 {
			b.WriteString(chunk.Content)
			continue
		}
		runes := []rune(chunk.Content)
		if overlap >= len(runes) {
			continue
		}
		b.WriteString(string(runes[overlap:]))
	}
	return b.String()
}
