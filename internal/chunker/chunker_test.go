package chunker

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/scriptforge/pkg/models"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c, err := New()
		require.NoError(t, err)
		assert.Equal(t, DefaultChunkSize, c.Size())
		assert.Equal(t, DefaultChunkOverlap, c.Overlap())
	})

	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 100, 20, false},
		{"zero overlap", 100, 0, false},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
		{"negative overlap", 100, -1, true},
		{"zero size", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithChunkSize(tt.size), WithOverlap(tt.overlap))
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidChunking)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses spaces", "open   the\t\tportal", "open the portal"},
		{"collapses newlines", "step one\n\n\n\nstep two", "step one\nstep two"},
		{"newlines with padding", "step one  \n \r\n  step two", "step one\nstep two"},
		{"trims", "  \n report \n ", "report"},
		{"empty", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestChunk_EmptyDocument(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	chunks, err := c.Chunk("doc", "   \n\n  ")
	assert.ErrorIs(t, err, models.ErrEmptyDocument)
	assert.Empty(t, chunks)
}

func TestChunk_ProcedureDocument(t *testing.T) {
	text := strings.Repeat("step ", 1799) + "done."
	require.Len(t, text, 9000)

	c, err := New(WithChunkSize(3000), WithOverlap(300))
	require.NoError(t, err)

	chunks, err := c.Chunk("proc-1", text)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Sequence)
		assert.Equal(t, "proc-1", chunk.DocumentID)
		assert.Equal(t, models.ChunkID("proc-1", i), chunk.ID)
		assert.NotZero(t, chunk.Tokens, "chunk %d has no token estimate", i)
	}
	assert.Len(t, []rune(chunks[3].Content), 900)
}

func TestChunk_SmallContent(t *testing.T) {
	c, err := New(WithChunkSize(100), WithOverlap(20))
	require.NoError(t, err)

	chunks, err := c.Chunk("doc", "Open the portal and sign in.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Open the portal and sign in.", chunks[0].Content)
}

func TestChunk_ExactWindowDoesNotEmitOverlapOnlyChunk(t *testing.T) {
	c, err := New(WithChunkSize(10), WithOverlap(3))
	require.NoError(t, err)

	chunks, err := c.Chunk("doc", "abcdefghij")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestChunk_MultibyteText(t *testing.T) {
	c, err := New(WithChunkSize(4), WithOverlap(1))
	require.NoError(t, err)
	text := "ÄÖÜßéèà"

	chunks, err := c.Chunk("doc", text)
	require.NoError(t, err)
	assert.Equal(t, text, Reassemble(chunks, 1))
}

func TestReassemble_ReconstructsNormalizedText(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefghij KLMN\n\t.,")

	configs := []struct{ size, overlap int }{
		{2, 0}, {2, 1}, {7, 3}, {50, 0}, {64, 63}, {300, 30},
	}

	for round := 0; round < 40; round++ {
		length := rng.Intn(2000)
		var b strings.Builder
		for i := 0; i < length; i++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		normalized := Normalize(b.String())
		if normalized == "" {
			continue
		}

		for _, cfg := range configs {
			c, err := New(WithChunkSize(cfg.size), WithOverlap(cfg.overlap))
			require.NoError(t, err)
			chunks, err := c.Chunk("doc", normalized)
			require.NoError(t, err)
			require.Equal(t, normalized, Reassemble(chunks, cfg.overlap),
				"round %d size=%d overlap=%d", round, cfg.size, cfg.overlap)
		}
	}
}

func TestReassemble_IgnoresStorageOrder(t *testing.T) {
	c, err := New(WithChunkSize(40), WithOverlap(8))
	require.NoError(t, err)
	text := strings.Repeat("Log into the portal, open reports, download today's file. ", 20)

	chunks, err := c.Chunk("doc", text)
	require.NoError(t, err)
	want := Reassemble(chunks, 8)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := make([]models.Chunk, len(chunks))
		copy(shuffled, chunks)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		require.Equal(t, want, Reassemble(shuffled, 8), "shuffle %d", i)
	}
}

func TestSortBySequence_GroupsByDocument(t *testing.T) {
	chunks := []models.Chunk{
		{DocumentID: "b", Sequence: 1},
		{DocumentID: "a", Sequence: 2},
		{DocumentID: "b", Sequence: 0},
		{DocumentID: "a", Sequence: 0},
	}

	SortBySequence(chunks)

	var got []string
	for _, c := range chunks {
		got = append(got, fmt.Sprintf("%s/%d", c.DocumentID, c.Sequence))
	}
	assert.Equal(t, []string{"a/0", "a/2", "b/0", "b/1"}, got)
}
