//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplepath-ai/maplepath/internal/domain"
	"github.com/maplepath-ai/maplepath/internal/service"
	"github.com/maplepath-ai/maplepath/internal/testutil"
)

// unitVector returns a 1536-dim vector whose cosine similarity against
// unitVector(0) decreases as the axis index grows apart.
func unitVector(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1
	return v
}

// blendVector mixes two axes so similarity against unitVector(a) lands
// strictly between 0 and 1.
func blendVector(a, b int, weight float32) []float32 {
	v := make([]float32, 1536)
	v[a] = weight
	v[b] = 1 - weight
	return v
}

func insertSourceDocument(ctx context.Context, t *testing.T, pool *pgxpool.Pool, storageKey string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx,
		`INSERT INTO source_documents (title, storage_key, language)
		 VALUES ($1, $2, $3) RETURNING id`,
		"IRCC guide", nullableTestString(storageKey), "en",
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func nullableTestString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func insertChunk(ctx context.Context, t *testing.T, pool *pgxpool.Pool, docID, content, language string, index int, embedding []float32) string {
	t.Helper()
	var id string
	var vec *pgvector.Vector
	if embedding != nil {
		v := pgvector.NewVector(embedding)
		vec = &v
	}
	err := pool.QueryRow(ctx,
		`INSERT INTO document_chunks (document_id, content, chunk_index, language, embedding)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		docID, content, index, language, vec,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestChunkRepository_SearchByEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool)
	docID := insertSourceDocument(ctx, t, pool, "guides/express-entry.pdf")

	insertChunk(ctx, t, pool, docID, "exact match", "en", 0, unitVector(0))
	insertChunk(ctx, t, pool, docID, "close match", "en", 1, blendVector(0, 1, 0.9))
	insertChunk(ctx, t, pool, docID, "weak match", "en", 2, blendVector(0, 1, 0.3))
	insertChunk(ctx, t, pool, docID, "orthogonal", "en", 3, unitVector(2))
	insertChunk(ctx, t, pool, docID, "no embedding", "en", 4, nil)

	t.Run("orders by descending similarity above the threshold", func(t *testing.T) {
		chunks, err := repo.SearchByEmbedding(ctx, unitVector(0), service.ChunkSearchOptions{
			Limit:     10,
			Threshold: 0.5,
		})

		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "exact match", chunks[0].Content)
		assert.Equal(t, "close match", chunks[1].Content)
		assert.Greater(t, chunks[0].Similarity, chunks[1].Similarity)
		assert.InDelta(t, 1.0, chunks[0].Similarity, 0.001)
	})

	t.Run("permissive threshold admits weaker candidates", func(t *testing.T) {
		chunks, err := repo.SearchByEmbedding(ctx, unitVector(0), service.ChunkSearchOptions{
			Limit:     10,
			Threshold: 0.25,
		})

		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, "weak match", chunks[2].Content)
	})

	t.Run("respects the limit", func(t *testing.T) {
		chunks, err := repo.SearchByEmbedding(ctx, unitVector(0), service.ChunkSearchOptions{
			Limit:     1,
			Threshold: 0.25,
		})

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "exact match", chunks[0].Content)
	})

	t.Run("filters by language", func(t *testing.T) {
		frID := insertChunk(ctx, t, pool, docID, "correspondance exacte", "fr", 5, unitVector(0))
		defer pool.Exec(ctx, "DELETE FROM document_chunks WHERE id = $1", frID)

		chunks, err := repo.SearchByEmbedding(ctx, unitVector(0), service.ChunkSearchOptions{
			Limit:     10,
			Threshold: 0.5,
			Language:  "fr",
		})

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "correspondance exacte", chunks[0].Content)
	})

	t.Run("empty result is a non-nil slice", func(t *testing.T) {
		chunks, err := repo.SearchByEmbedding(ctx, unitVector(7), service.ChunkSearchOptions{
			Limit:     10,
			Threshold: 0.99,
		})

		require.NoError(t, err)
		assert.NotNil(t, chunks)
		assert.Empty(t, chunks)
	})
}

func TestChunkRepository_GetByIDsAndUpdateEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool)
	docID := insertSourceDocument(ctx, t, pool, "")

	withVec := insertChunk(ctx, t, pool, docID, "embedded", "en", 0, unitVector(0))
	withoutVec := insertChunk(ctx, t, pool, docID, "pending", "en", 1, nil)

	t.Run("loads chunks with their embedding state", func(t *testing.T) {
		chunks, err := repo.GetByIDs(ctx, []string{withVec, withoutVec})

		require.NoError(t, err)
		require.Len(t, chunks, 2)

		byID := map[string]*domain.DocumentChunk{}
		for _, c := range chunks {
			byID[c.ID] = c
		}
		assert.True(t, byID[withVec].HasEmbedding())
		assert.False(t, byID[withoutVec].HasEmbedding())
	})

	t.Run("stores a new embedding", func(t *testing.T) {
		err := repo.UpdateEmbedding(ctx, withoutVec, unitVector(3))
		require.NoError(t, err)

		chunks, err := repo.GetByIDs(ctx, []string{withoutVec})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.True(t, chunks[0].HasEmbedding())
	})

	t.Run("returns not found for an unknown chunk", func(t *testing.T) {
		err := repo.UpdateEmbedding(ctx, uuid.NewString(), unitVector(0))
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("empty id list short-circuits", func(t *testing.T) {
		chunks, err := repo.GetByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestChunkRepository_DocumentKeyByChunk(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool)

	keyedDoc := insertSourceDocument(ctx, t, pool, "guides/study-permit.pdf")
	keyedChunk := insertChunk(ctx, t, pool, keyedDoc, "stored", "en", 0, nil)

	unkeyedDoc := insertSourceDocument(ctx, t, pool, "")
	unkeyedChunk := insertChunk(ctx, t, pool, unkeyedDoc, "web only", "en", 0, nil)

	t.Run("resolves the storage key through the chunk", func(t *testing.T) {
		key, err := repo.DocumentKeyByChunk(ctx, keyedChunk)
		require.NoError(t, err)
		assert.Equal(t, "guides/study-permit.pdf", key)
	})

	t.Run("document without a stored file is not found", func(t *testing.T) {
		_, err := repo.DocumentKeyByChunk(ctx, unkeyedChunk)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("unknown chunk is not found", func(t *testing.T) {
		_, err := repo.DocumentKeyByChunk(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})
}
