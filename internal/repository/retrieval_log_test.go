//go:build integration

package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplepath-ai/maplepath/internal/service"
	"github.com/maplepath-ai/maplepath/internal/testutil"
)

func TestRetrievalLogRepository_CreateRetrievalLog(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewRetrievalLogRepository(pool)

	t.Run("persists a log entry and returns its id", func(t *testing.T) {
		id, err := repo.CreateRetrievalLog(ctx, service.RetrievalLogEntry{
			Query:           "how long does express entry take",
			Language:        "en",
			ChunkLimit:      5,
			EntityLimit:     5,
			RerankRequested: true,
			RerankApplied:   true,
			ChunkCount:      4,
			EntityCount:     2,
			RelatedCount:    1,
			DurationMs:      120,
		})

		require.NoError(t, err)
		require.NotEmpty(t, id)

		var (
			query        string
			language     *string
			detailsJSON  []byte
			chunkCount   int
			entityCount  int
			relatedCount int
			durationMs   int
		)
		err = pool.QueryRow(ctx,
			`SELECT query, language, details, chunk_count, entity_count, related_count, duration_ms
			 FROM retrieval_logs WHERE id = $1`, id,
		).Scan(&query, &language, &detailsJSON, &chunkCount, &entityCount, &relatedCount, &durationMs)
		require.NoError(t, err)

		assert.Equal(t, "how long does express entry take", query)
		require.NotNil(t, language)
		assert.Equal(t, "en", *language)
		assert.Equal(t, 4, chunkCount)
		assert.Equal(t, 2, entityCount)
		assert.Equal(t, 1, relatedCount)
		assert.Equal(t, 120, durationMs)

		var details map[string]any
		require.NoError(t, json.Unmarshal(detailsJSON, &details))
		assert.Equal(t, true, details["rerank_requested"])
		assert.Equal(t, true, details["rerank_applied"])
		assert.Equal(t, float64(len("how long does express entry take")), details["query_length"])
	})

	t.Run("empty language is stored as null", func(t *testing.T) {
		id, err := repo.CreateRetrievalLog(ctx, service.RetrievalLogEntry{
			Query:      "visa",
			ChunkCount: 0,
		})
		require.NoError(t, err)

		var language *string
		err = pool.QueryRow(ctx, `SELECT language FROM retrieval_logs WHERE id = $1`, id).Scan(&language)
		require.NoError(t, err)
		assert.Nil(t, language)
	})
}
