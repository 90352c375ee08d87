package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maplepath-ai/maplepath/internal/domain"
)

// EntityRepository implements lexical search over knowledge-graph entities.
type EntityRepository struct {
	db dbtx
}

func NewEntityRepository(pool *pgxpool.Pool) *EntityRepository {
	return &EntityRepository{db: pool}
}

func NewEntityRepositoryWithTx(tx pgx.Tx) *EntityRepository {
	return &EntityRepository{db: tx}
}

// SearchByName matches entities by name/display-name substring, active
// only, ordered by descending confidence. Containment runs both ways:
// a short query like "ielts" matches inside entity names, and a full
// natural-language query matches entities whose display name appears in
// it. Matching is deliberately lexical: a cheap complement to vector
// search, not a replacement.
func (r *EntityRepository) SearchByName(ctx context.Context, query string, limit int, typeFilter string) ([]*domain.Entity, error) {
	if limit <= 0 {
		limit = domain.DefaultEntityLimit
	}

	const baseQuery = `
		SELECT id, type, name, display_name, properties, confidence, active, created_at, updated_at
		FROM kb_entities
		WHERE active = TRUE
		  AND (name ILIKE '%' || $1 || '%' OR display_name ILIKE '%' || $1 || '%'
		    OR $1 ILIKE '%' || name || '%' OR $1 ILIKE '%' || display_name || '%')`

	sql := baseQuery + `
		ORDER BY confidence DESC
		LIMIT $2`
	args := []any{query, limit}

	if typeFilter != "" {
		sql = baseQuery + ` AND type = $2
		ORDER BY confidence DESC
		LIMIT $3`
		args = []any{query, typeFilter, limit}
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]*domain.Entity, 0)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// GetByID loads a single entity.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, type, name, display_name, properties, confidence, active, created_at, updated_at
		FROM kb_entities
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, domain.ErrEntityNotFound
	}
	return scanEntity(rows)
}

// scanEntity reads one entity row and validates its property bag against
// the per-type schema, so loosely-typed rows never leak past the store
// boundary. A bag that fails validation is dropped, not fatal.
func scanEntity(rows pgx.Rows) (*domain.Entity, error) {
	var entity domain.Entity
	var displayName pgtype.Text
	var propertiesJSON []byte
	if err := rows.Scan(
		&entity.ID, &entity.Type, &entity.Name, &displayName,
		&propertiesJSON, &entity.Confidence, &entity.Active,
		&entity.CreatedAt, &entity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if displayName.Valid {
		entity.DisplayName = displayName.String
	}
	if len(propertiesJSON) > 0 {
		if err := json.Unmarshal(propertiesJSON, &entity.Properties); err != nil {
			return nil, err
		}
	}
	if err := domain.ValidateEntityProperties(entity.Type, entity.Properties); err != nil {
		var domainErr *domain.DomainError
		if !errors.As(err, &domainErr) {
			return nil, err
		}
		log.Printf("entity %s: dropping invalid property bag: %v", entity.ID, err)
		entity.Properties = nil
	}
	return &entity, nil
}
