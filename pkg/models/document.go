package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DocumentStatus is the lifecycle state of an uploaded document.
type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "uploaded"
	DocumentProcessing DocumentStatus = "processing"
	DocumentIndexed    DocumentStatus = "indexed"
	DocumentFailed     DocumentStatus = "failed"
)

// Document represents an uploaded procedure document.
// Text holds the full extracted text once extraction succeeds.
type Document struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Filename  string         `json:"filename"`
	Status    DocumentStatus `json:"status"`
	Text      string         `json:"text,omitempty"`
	Pages     int            `json:"pages,omitempty"`
	Chunks    int            `json:"chunks,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Usable reports whether the document may contribute context to a prompt.
func (d Document) Usable() bool {
	return d.Status == DocumentIndexed
}

// Chunk is a bounded slice of a document's normalized text.
// Sequence is the authoritative reconstruction order.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Sequence   int       `json:"sequence"`
	Content    string    `json:"content"`
	Tokens     int       `json:"tokens"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Score      float64   `json:"-"`
}

// ChunkID derives the stable identifier of a chunk from its document and sequence.
func ChunkID(documentID string, sequence int) string {
	return fmt.Sprintf("%s-%05d", documentID, sequence)
}

// ContentHash returns a short SHA-256 fingerprint of content.
// Ingestion logs it with each upload so repeated uploads of one file can be traced.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])[:16]
}

// EstimateTokens approximates the token count of text (about four characters per token).
func EstimateTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
