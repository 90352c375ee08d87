package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/maplepath-ai/maplepath/internal/domain"
	"github.com/maplepath-ai/maplepath/internal/service"
)

// ChunkRepository implements vector search and embedding storage over
// document_chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// SearchByEmbedding returns chunks ordered by descending cosine
// similarity, restricted to similarity >= threshold and at most limit
// rows. An error here means the primary retrieval channel is down and
// is surfaced unmasked.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, opts service.ChunkSearchOptions) ([]*domain.DocumentChunk, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = domain.DefaultChunkLimit
	}

	vec := pgvector.NewVector(embedding)

	const baseQuery = `
		SELECT id, document_id, content, chunk_index, language, source_url,
		       entities, key_phrases, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $2`

	query := baseQuery + `
		ORDER BY similarity DESC
		LIMIT $3`
	args := []any{vec, opts.Threshold, limit}

	if opts.Language != "" {
		query = baseQuery + ` AND language = $3
		ORDER BY similarity DESC
		LIMIT $4`
		args = []any{vec, opts.Threshold, opts.Language, limit}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// GetByIDs loads chunks by ID, including any stored embedding.
func (r *ChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.DocumentChunk, error) {
	if len(ids) == 0 {
		return []*domain.DocumentChunk{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, content, chunk_index, language, source_url,
		       entities, key_phrases, created_at, embedding
		FROM document_chunks
		WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.DocumentChunk
	for rows.Next() {
		chunk, err := scanChunkRow(rows, true)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// UpdateEmbedding stores a freshly generated embedding for a chunk.
func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE document_chunks SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// DocumentKeyByChunk resolves the storage key of the source document a
// chunk belongs to. Used by the source-download handler.
func (r *ChunkRepository) DocumentKeyByChunk(ctx context.Context, chunkID string) (string, error) {
	var key pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT storage_key FROM source_documents sd
		 JOIN document_chunks dc ON dc.document_id = sd.id
		 WHERE dc.id = $1`,
		chunkID,
	).Scan(&key)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrDocumentNotFound
		}
		return "", err
	}
	if !key.Valid || key.String == "" {
		return "", domain.ErrDocumentNotFound
	}
	return key.String, nil
}

func scanChunks(rows pgx.Rows) ([]*domain.DocumentChunk, error) {
	chunks := make([]*domain.DocumentChunk, 0)
	for rows.Next() {
		var chunk domain.DocumentChunk
		var language, sourceURL pgtype.Text
		var entitiesJSON, keyPhrasesJSON []byte
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.ChunkIndex,
			&language, &sourceURL, &entitiesJSON, &keyPhrasesJSON,
			&chunk.CreatedAt, &chunk.Similarity,
		); err != nil {
			return nil, err
		}
		if language.Valid {
			chunk.Language = language.String
		}
		if sourceURL.Valid {
			chunk.SourceURL = sourceURL.String
		}
		if err := unmarshalStrings(entitiesJSON, &chunk.Entities); err != nil {
			return nil, err
		}
		if err := unmarshalStrings(keyPhrasesJSON, &chunk.KeyPhrases); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func scanChunkRow(rows pgx.Rows, withEmbedding bool) (*domain.DocumentChunk, error) {
	var chunk domain.DocumentChunk
	var language, sourceURL pgtype.Text
	var entitiesJSON, keyPhrasesJSON []byte
	var embedding *pgvector.Vector

	dest := []any{
		&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.ChunkIndex,
		&language, &sourceURL, &entitiesJSON, &keyPhrasesJSON, &chunk.CreatedAt,
	}
	if withEmbedding {
		dest = append(dest, &embedding)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	if language.Valid {
		chunk.Language = language.String
	}
	if sourceURL.Valid {
		chunk.SourceURL = sourceURL.String
	}
	if embedding != nil {
		chunk.Embedding = embedding.Slice()
	}
	if err := unmarshalStrings(entitiesJSON, &chunk.Entities); err != nil {
		return nil, err
	}
	if err := unmarshalStrings(keyPhrasesJSON, &chunk.KeyPhrases); err != nil {
		return nil, err
	}
	return &chunk, nil
}

func unmarshalStrings(data []byte, dest *[]string) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
