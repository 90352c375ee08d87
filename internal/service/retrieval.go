package service

import (
	"context"
	"log"
	"time"

	"github.com/maplepath-ai/maplepath/internal/domain"
	"github.com/maplepath-ai/maplepath/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// ChunkSearchOptions carries the per-call knobs for a vector search.
type ChunkSearchOptions struct {
	Limit     int
	Threshold float64
	Language  string
}

// ChunkRepositoryInterface defines the vector search boundary.
type ChunkRepositoryInterface interface {
	SearchByEmbedding(ctx context.Context, embedding []float32, opts ChunkSearchOptions) ([]*domain.DocumentChunk, error)
}

// EntityRepositoryInterface defines the lexical entity search boundary.
type EntityRepositoryInterface interface {
	SearchByName(ctx context.Context, query string, limit int, typeFilter string) ([]*domain.Entity, error)
}

// RelationshipRepositoryInterface defines the relationship expansion boundary.
// FindRelated resolves whichever endpoint of each edge is not the anchor.
type RelationshipRepositoryInterface interface {
	FindRelated(ctx context.Context, entityID string, limit int, typeFilter string) ([]*domain.RelatedEntity, error)
}

// EmbeddingClientInterface defines the interface for query embedding.
type EmbeddingClientInterface interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RerankClientInterface defines the reranker boundary. Implementations
// return an explicit error; the orchestrator owns the fallback decision.
type RerankClientInterface interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankedDocument, error)
}

// RetrievalConfig holds the fixed retrieval policy. The two similarity
// thresholds are deliberate policy constants rather than per-call
// parameters; tune them here.
type RetrievalConfig struct {
	// StrictThreshold applies when results go straight to the caller.
	StrictThreshold float64
	// PermissiveThreshold applies when oversampling for the reranker,
	// which is a higher-precision judge than the vector index and may
	// promote candidates the index scored low.
	PermissiveThreshold float64
	// MaxExpansionAnchors caps how many entities get relationship
	// expansion, regardless of the caller's entity limit.
	MaxExpansionAnchors int
	// ExpansionLimit caps related entities per anchor.
	ExpansionLimit int
	SearchTimeout  time.Duration
	RerankTimeout  time.Duration
}

// DefaultRetrievalConfig returns the default retrieval policy.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		StrictThreshold:     0.5,
		PermissiveThreshold: 0.25,
		MaxExpansionAnchors: 3,
		ExpansionLimit:      5,
		SearchTimeout:       10 * time.Second,
		RerankTimeout:       10 * time.Second,
	}
}

func (c RetrievalConfig) normalized() RetrievalConfig {
	out := c
	def := DefaultRetrievalConfig()
	if out.StrictThreshold <= 0 {
		out.StrictThreshold = def.StrictThreshold
	}
	if out.PermissiveThreshold <= 0 {
		out.PermissiveThreshold = def.PermissiveThreshold
	}
	if out.MaxExpansionAnchors <= 0 {
		out.MaxExpansionAnchors = def.MaxExpansionAnchors
	}
	if out.ExpansionLimit <= 0 {
		out.ExpansionLimit = def.ExpansionLimit
	}
	if out.SearchTimeout <= 0 {
		out.SearchTimeout = def.SearchTimeout
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = def.RerankTimeout
	}
	return out
}

// RetrievalService composes vector search, entity search, relationship
// expansion and reranking into one query answer.
type RetrievalService struct {
	chunks        ChunkRepositoryInterface
	entities      EntityRepositoryInterface
	relationships RelationshipRepositoryInterface
	embedding     EmbeddingClientInterface
	// reranker is nil when reranking is not configured; this is decided
	// at construction time, never via an environment lookup per call.
	reranker RerankClientInterface
	cfg      RetrievalConfig
}

// NewRetrievalService creates a RetrievalService with the default policy.
// Pass a nil reranker to run without reranking.
func NewRetrievalService(
	chunks ChunkRepositoryInterface,
	entities EntityRepositoryInterface,
	relationships RelationshipRepositoryInterface,
	embedding EmbeddingClientInterface,
	reranker RerankClientInterface,
) *RetrievalService {
	return NewRetrievalServiceWithConfig(chunks, entities, relationships, embedding, reranker, DefaultRetrievalConfig())
}

// NewRetrievalServiceWithConfig creates a RetrievalService with an explicit policy.
func NewRetrievalServiceWithConfig(
	chunks ChunkRepositoryInterface,
	entities EntityRepositoryInterface,
	relationships RelationshipRepositoryInterface,
	embedding EmbeddingClientInterface,
	reranker RerankClientInterface,
	cfg RetrievalConfig,
) *RetrievalService {
	return &RetrievalService{
		chunks:        chunks,
		entities:      entities,
		relationships: relationships,
		embedding:     embedding,
		reranker:      reranker,
		cfg:           cfg.normalized(),
	}
}

// RerankerConfigured reports whether a reranker was injected.
func (s *RetrievalService) RerankerConfigured() bool {
	return s.reranker != nil
}

// Retrieve runs the full retrieval pipeline for one query.
//
// Vector search is the primary channel: its failure (including the
// embedding call) propagates so the caller knows it has zero retrieved
// context. Entity search, relationship expansion and reranking are
// enhancements that degrade silently into a smaller but well-formed
// result.
func (s *RetrievalService) Retrieve(ctx context.Context, query domain.RetrievalQuery) (*domain.RetrievalResult, error) {
	q := query.Normalized()
	if q.IsEmpty() {
		return domain.EmptyRetrievalResult(), nil
	}

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	shouldRerank := q.EnableReranking && s.reranker != nil

	// Oversample for the reranker: ask the index for more candidates at
	// a permissive threshold so the higher-precision judge has a pool
	// to promote from.
	searchLimit := q.ChunkLimit
	threshold := s.cfg.StrictThreshold
	if shouldRerank {
		searchLimit = q.ChunkLimit * q.OversampleFactor
		threshold = s.cfg.PermissiveThreshold
	}

	var (
		candidates []*domain.DocumentChunk
		entities   []*domain.Entity
	)

	// Stage 1: vector search and entity search run concurrently; both
	// complete before anything downstream starts.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		searchCtx, cancel := context.WithTimeout(gctx, s.cfg.SearchTimeout)
		defer cancel()

		embedding, err := s.embedding.GenerateEmbedding(searchCtx, q.Text)
		if err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "failed to embed query", err)
		}

		chunks, err := s.chunks.SearchByEmbedding(searchCtx, embedding, ChunkSearchOptions{
			Limit:     searchLimit,
			Threshold: threshold,
			Language:  q.Language,
		})
		if err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "vector search failed", err)
		}
		candidates = chunks
		return nil
	})
	g.Go(func() error {
		searchCtx, cancel := context.WithTimeout(gctx, s.cfg.SearchTimeout)
		defer cancel()

		found, err := s.entities.SearchByName(searchCtx, q.Text, q.EntityLimit, "")
		if err != nil {
			// Entity search is an enhancement channel; degrade to an
			// empty entity list rather than failing the query.
			log.Printf("retrieval: entity search degraded: %v", err)
			return nil
		}
		entities = found
		return nil
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	chunks, reranked := s.rerankOrFallback(ctx, q, candidates, shouldRerank)
	if len(entities) > q.EntityLimit {
		entities = entities[:q.EntityLimit]
	}

	related := s.expandEntities(ctx, q, entities)

	result := &domain.RetrievalResult{
		Chunks:          chunks,
		Entities:        entities,
		RelatedEntities: related,
		Reranked:        reranked,
	}
	if result.Chunks == nil {
		result.Chunks = []*domain.DocumentChunk{}
	}
	if result.Entities == nil {
		result.Entities = []*domain.Entity{}
	}
	if result.RelatedEntities == nil {
		result.RelatedEntities = []*domain.RelatedEntity{}
	}
	return result, nil
}

// rerankOrFallback applies the conditional rerank step. On any reranker
// failure the original vector-similarity ordering is kept, truncated to
// the chunk limit: a degraded result beats a failed query for a
// best-effort quality enhancement.
func (s *RetrievalService) rerankOrFallback(
	ctx context.Context,
	q domain.RetrievalQuery,
	candidates []*domain.DocumentChunk,
	shouldRerank bool,
) ([]*domain.DocumentChunk, bool) {
	if !shouldRerank || len(candidates) == 0 {
		return truncateChunks(candidates, q.ChunkLimit), false
	}

	documents := make([]string, len(candidates))
	for i, chunk := range candidates {
		documents[i] = chunk.Content
	}

	rerankCtx, cancel := context.WithTimeout(ctx, s.cfg.RerankTimeout)
	defer cancel()

	ranked, err := s.reranker.Rerank(rerankCtx, q.Text, documents, q.ChunkLimit)
	if err != nil {
		log.Printf("retrieval: rerank degraded to vector ordering: %v", err)
		return truncateChunks(candidates, q.ChunkLimit), false
	}

	// Adopt the reranker's ordering and scores wholesale so the result
	// set carries a single comparable scale.
	chunks := make([]*domain.DocumentChunk, 0, len(ranked))
	for _, doc := range ranked {
		chunk := candidates[doc.Index]
		chunk.Similarity = doc.RelevanceScore
		chunks = append(chunks, chunk)
	}
	return truncateChunks(chunks, q.ChunkLimit), true
}

// expandEntities runs stage 2: bounded concurrent relationship expansion
// over at most MaxExpansionAnchors entities. Expansion never scales with
// the caller's entity limit.
func (s *RetrievalService) expandEntities(
	ctx context.Context,
	q domain.RetrievalQuery,
	entities []*domain.Entity,
) []*domain.RelatedEntity {
	if !q.IncludeRelatedEntities || len(entities) == 0 {
		return nil
	}

	anchors := entities
	if len(anchors) > s.cfg.MaxExpansionAnchors {
		anchors = anchors[:s.cfg.MaxExpansionAnchors]
	}

	expanded := make([][]*domain.RelatedEntity, len(anchors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxExpansionAnchors)
	for i, anchor := range anchors {
		g.Go(func() error {
			expandCtx, cancel := context.WithTimeout(gctx, s.cfg.SearchTimeout)
			defer cancel()

			related, err := s.relationships.FindRelated(expandCtx, anchor.ID, s.cfg.ExpansionLimit, "")
			if err != nil {
				log.Printf("retrieval: relationship expansion degraded for entity %s: %v", anchor.ID, err)
				return nil
			}
			expanded[i] = related
			return nil
		})
	}
	_ = g.Wait()

	var flattened []*domain.RelatedEntity
	for _, related := range expanded {
		flattened = append(flattened, related...)
	}
	return flattened
}

func truncateChunks(chunks []*domain.DocumentChunk, limit int) []*domain.DocumentChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}
