package domain

import "time"

// DocumentChunk is a bounded span of source-document text stored with a
// precomputed embedding. Chunks are produced by the offline ingestion
// pipeline and are read-only at query time.
type DocumentChunk struct {
	ID         string
	DocumentID string
	Content    string
	// Similarity is the score on whichever scale ranked this chunk:
	// cosine similarity from the vector index, or the reranker's
	// relevance score after reranking. A single result set never mixes
	// the two scales.
	Similarity float64
	ChunkIndex int
	Language   string
	SourceURL  string
	// Entities and KeyPhrases are pre-extracted annotations from ingestion.
	Entities   []string
	KeyPhrases []string
	Embedding  []float32
	CreatedAt  time.Time
}

// HasEmbedding reports whether the chunk carries a stored embedding.
func (c *DocumentChunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// ValidateDocumentChunk validates a DocumentChunk instance
func ValidateDocumentChunk(c *DocumentChunk) error {
	if c == nil {
		return NewDomainError(ErrCodeValidation, "chunk cannot be nil")
	}
	if c.DocumentID == "" {
		return NewDomainError(ErrCodeValidation, "chunk DocumentID is required")
	}
	if c.Content == "" {
		return NewDomainError(ErrCodeValidation, "chunk Content is required")
	}
	if c.ChunkIndex < 0 {
		return NewDomainError(ErrCodeValidation, "chunk ChunkIndex cannot be negative")
	}
	return nil
}
