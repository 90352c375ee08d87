package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplepath-ai/maplepath/internal/domain"
)

func sampleResult() *domain.RetrievalResult {
	return &domain.RetrievalResult{
		Chunks: []*domain.DocumentChunk{
			{
				ID:         "chunk-1",
				DocumentID: "doc-1",
				Content:    "Express Entry manages applications for three economic immigration programs.",
				Similarity: 0.73,
				SourceURL:  "https://example.org/express-entry",
			},
			{
				ID:         "chunk-2",
				DocumentID: "doc-1",
				Content:    "Candidates are ranked using the Comprehensive Ranking System.",
				Similarity: 0.91,
			},
		},
		Entities: []*domain.Entity{
			{
				ID:          "ent-1",
				Type:        domain.EntityTypeProgram,
				Name:        "express_entry",
				DisplayName: "Express Entry",
				Confidence:  0.95,
				Properties: map[string]any{
					"category":        "economic",
					"processing_time": "6 months",
				},
				Active: true,
			},
		},
		RelatedEntities: []*domain.RelatedEntity{
			{
				Entity: &domain.Entity{
					ID:          "ent-2",
					Type:        domain.EntityTypeCountry,
					Name:        "canada",
					DisplayName: "Canada",
					Active:      true,
				},
				Relationship: &domain.Relationship{
					ID:       "rel-1",
					SourceID: "ent-1",
					TargetID: "ent-2",
					Type:     "offered_by",
					Strength: 0.9,
				},
			},
		},
	}
}

// TestBuildKnowledgeContext_English tests the full English rendering
func TestBuildKnowledgeContext_English(t *testing.T) {
	out := BuildKnowledgeContext(sampleResult(), "en")

	require.NotEmpty(t, out)
	assert.Contains(t, out, "Relevant information from the immigration knowledge base:")
	assert.Contains(t, out, "[1] (relevance: 73.0%)")
	assert.Contains(t, out, "[2] (relevance: 91.0%)")
	assert.Contains(t, out, "Source: https://example.org/express-entry")
	assert.Contains(t, out, "Known entities related to this question:")
	assert.Contains(t, out, "- Express Entry (immigration_program, confidence: 95.0%)")
	assert.Contains(t, out, "Connected concepts:")
	assert.Contains(t, out, "- Canada (country, offered_by)")
	assert.Contains(t, out, "Cite the sources you rely on.")
}

// TestBuildKnowledgeContext_French tests the French rendering
func TestBuildKnowledgeContext_French(t *testing.T) {
	out := BuildKnowledgeContext(sampleResult(), "fr")

	assert.Contains(t, out, "Informations pertinentes de la base de connaissances en immigration :")
	assert.Contains(t, out, "(pertinence: 73.0%)")
	assert.Contains(t, out, "Entités connues liées à cette question :")
	assert.Contains(t, out, "confiance: 95.0%")
	assert.Contains(t, out, "Concepts connexes :")
	assert.NotContains(t, out, "Relevant information")
}

// TestBuildKnowledgeContext_LocaleFallback tests that unknown and
// regional language tags resolve sensibly
func TestBuildKnowledgeContext_LocaleFallback(t *testing.T) {
	t.Run("unknown language falls back to English", func(t *testing.T) {
		out := BuildKnowledgeContext(sampleResult(), "de")
		assert.Contains(t, out, "Relevant information from the immigration knowledge base:")
	})

	t.Run("regional French tag resolves to French", func(t *testing.T) {
		out := BuildKnowledgeContext(sampleResult(), "fr-CA")
		assert.Contains(t, out, "Informations pertinentes")
	})

	t.Run("underscore separator resolves to French", func(t *testing.T) {
		out := BuildKnowledgeContext(sampleResult(), "fr_CA")
		assert.Contains(t, out, "Informations pertinentes")
	})

	t.Run("empty language falls back to English", func(t *testing.T) {
		out := BuildKnowledgeContext(sampleResult(), "")
		assert.Contains(t, out, "Relevant information from the immigration knowledge base:")
	})
}

// TestBuildKnowledgeContext_EmptyResult tests that empty and nil results
// render as no context at all
func TestBuildKnowledgeContext_EmptyResult(t *testing.T) {
	assert.Empty(t, BuildKnowledgeContext(nil, "en"))
	assert.Empty(t, BuildKnowledgeContext(domain.EmptyRetrievalResult(), "en"))
}

// TestBuildKnowledgeContext_ScoreNormalization tests that fraction and
// percent scales render identically
func TestBuildKnowledgeContext_ScoreNormalization(t *testing.T) {
	result := &domain.RetrievalResult{
		Chunks: []*domain.DocumentChunk{
			{ID: "a", Content: "fraction scale", Similarity: 0.87},
			{ID: "b", Content: "percent scale", Similarity: 87},
		},
	}

	out := BuildKnowledgeContext(result, "en")

	assert.Contains(t, out, "[1] (relevance: 87.0%)")
	assert.Contains(t, out, "[2] (relevance: 87.0%)")
}

// TestBuildKnowledgeContext_Deterministic tests that identical inputs
// produce byte-identical output across runs, including map-backed
// entity properties
func TestBuildKnowledgeContext_Deterministic(t *testing.T) {
	result := sampleResult()
	result.Entities[0].Properties = map[string]any{
		"zeta":  "last",
		"alpha": "first",
		"mid":   3,
		"nil":   nil,
	}

	first := BuildKnowledgeContext(result, "en")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildKnowledgeContext(result, "en"))
	}

	alphaIdx := strings.Index(first, "alpha: first")
	midIdx := strings.Index(first, "mid: 3")
	zetaIdx := strings.Index(first, "zeta: last")
	require.Positive(t, alphaIdx)
	assert.Less(t, alphaIdx, midIdx)
	assert.Less(t, midIdx, zetaIdx)
	assert.NotContains(t, first, "nil:")
}

// TestBuildKnowledgeContext_EntityWithoutDisplayName tests the label
// fallback to the canonical name
func TestBuildKnowledgeContext_EntityWithoutDisplayName(t *testing.T) {
	result := &domain.RetrievalResult{
		Entities: []*domain.Entity{
			{ID: "e1", Type: domain.EntityTypeDocumentType, Name: "passport", Confidence: 0.8, Active: true},
		},
	}

	out := BuildKnowledgeContext(result, "en")

	assert.Contains(t, out, "- passport (document_type, confidence: 80.0%)")
}

// TestBuildKnowledgeContext_SkipsBrokenRelated tests that related entries
// missing either side are skipped rather than rendered half-empty
func TestBuildKnowledgeContext_SkipsBrokenRelated(t *testing.T) {
	result := sampleResult()
	result.RelatedEntities = append(result.RelatedEntities,
		&domain.RelatedEntity{Entity: nil, Relationship: &domain.Relationship{Type: "orphaned"}},
		&domain.RelatedEntity{Entity: &domain.Entity{ID: "x", Name: "dangling"}, Relationship: nil},
	)

	out := BuildKnowledgeContext(result, "en")

	assert.NotContains(t, out, "orphaned")
	assert.NotContains(t, out, "dangling")
	assert.Contains(t, out, "- Canada (country, offered_by)")
}
