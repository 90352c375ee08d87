package domain

import "strings"

// Default limits applied when a caller leaves them unset.
const (
	DefaultChunkLimit       = 5
	DefaultEntityLimit      = 5
	DefaultOversampleFactor = 3
)

// RetrievalQuery captures one retrieval request. Immutable once built;
// a new value is created per request.
type RetrievalQuery struct {
	Text                   string
	Language               string
	ChunkLimit             int
	EntityLimit            int
	IncludeRelatedEntities bool
	EnableReranking        bool
	OversampleFactor       int
}

// Normalized returns a copy with trimmed text and defaulted limits.
func (q RetrievalQuery) Normalized() RetrievalQuery {
	out := q
	out.Text = strings.TrimSpace(q.Text)
	if out.ChunkLimit <= 0 {
		out.ChunkLimit = DefaultChunkLimit
	}
	if out.EntityLimit <= 0 {
		out.EntityLimit = DefaultEntityLimit
	}
	if out.OversampleFactor <= 0 {
		out.OversampleFactor = DefaultOversampleFactor
	}
	return out
}

// IsEmpty reports whether the query has no searchable text.
func (q RetrievalQuery) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// RetrievalResult is the ephemeral aggregate produced for one query.
// It is never persisted; the context assembler renders it and the
// generation caller discards it.
type RetrievalResult struct {
	Chunks          []*DocumentChunk
	Entities        []*Entity
	RelatedEntities []*RelatedEntity
	// Reranked reports which scale Chunk.Similarity carries: reranker
	// relevance when true, raw vector similarity when false.
	Reranked bool
}

// EmptyRetrievalResult returns a well-formed aggregate with no hits, so
// downstream rendering can short-circuit without nil checks.
func EmptyRetrievalResult() *RetrievalResult {
	return &RetrievalResult{
		Chunks:          []*DocumentChunk{},
		Entities:        []*Entity{},
		RelatedEntities: []*RelatedEntity{},
	}
}

// IsEmpty reports whether the result carries neither chunks nor entities.
func (r *RetrievalResult) IsEmpty() bool {
	return len(r.Chunks) == 0 && len(r.Entities) == 0
}

// RerankedDocument is one reranker verdict: the candidate's position in
// the submitted list plus its cross-encoder relevance score.
type RerankedDocument struct {
	Index          int
	RelevanceScore float64
}
