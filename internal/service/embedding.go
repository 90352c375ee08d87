package service

import (
	"context"
	"fmt"

	"github.com/maplepath-ai/maplepath/internal/domain"
	"github.com/maplepath-ai/maplepath/internal/telemetry"
)

// BatchEmbeddingClient generates embeddings for batches of texts.
type BatchEmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingChunkRepository defines the repository surface the backfill
// path needs: read a chunk, store its vector.
type EmbeddingChunkRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]*domain.DocumentChunk, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// EmbeddingService fills in vectors for chunks the ingestion pipeline
// stored without embeddings. Called by the background worker.
type EmbeddingService struct {
	client BatchEmbeddingClient
	chunks EmbeddingChunkRepository
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client BatchEmbeddingClient, chunks EmbeddingChunkRepository) *EmbeddingService {
	return &EmbeddingService{client: client, chunks: chunks}
}

// EmbedChunks generates and stores embeddings for the given chunk IDs in
// one batch call. Chunks that already carry an embedding are skipped.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.EmbedChunks", telemetry.SpanAttributes{
		Operation: "embed_chunks",
	})
	defer span.End()

	chunks, err := s.chunks.GetByIDs(ctx, chunkIDs)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}

	pending := make([]*domain.DocumentChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if !chunk.HasEmbedding() {
			pending = append(pending, chunk)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, len(pending))
	for i, chunk := range pending {
		texts[i] = chunk.Content
	}

	embeddings, err := s.client.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(pending) {
		return fmt.Errorf("expected %d embeddings, got %d", len(pending), len(embeddings))
	}

	for i, chunk := range pending {
		if err := s.chunks.UpdateEmbedding(ctx, chunk.ID, embeddings[i]); err != nil {
			return fmt.Errorf("failed to store embedding for chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}
