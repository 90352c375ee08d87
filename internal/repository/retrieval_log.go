package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maplepath-ai/maplepath/internal/service"
)

// RetrievalLogRepository stores retrieval logs for evaluation loops.
type RetrievalLogRepository struct {
	pool *pgxpool.Pool
}

func NewRetrievalLogRepository(pool *pgxpool.Pool) *RetrievalLogRepository {
	return &RetrievalLogRepository{pool: pool}
}

func (r *RetrievalLogRepository) CreateRetrievalLog(ctx context.Context, entry service.RetrievalLogEntry) (string, error) {
	details := map[string]any{
		"query_length":     len(entry.Query),
		"chunk_limit":      entry.ChunkLimit,
		"entity_limit":     entry.EntityLimit,
		"rerank_requested": entry.RerankRequested,
		"rerank_applied":   entry.RerankApplied,
	}
	if entry.Language != "" {
		details["language"] = entry.Language
	}
	detailsJSON, _ := json.Marshal(details)

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO retrieval_logs (query, language, details, chunk_count, entity_count, related_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		entry.Query,
		nullableString(entry.Language),
		detailsJSON,
		entry.ChunkCount,
		entry.EntityCount,
		entry.RelatedCount,
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
