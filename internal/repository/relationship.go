package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maplepath-ai/maplepath/internal/domain"
)

// RelationshipRepository implements knowledge-graph edge expansion.
type RelationshipRepository struct {
	db dbtx
}

func NewRelationshipRepository(pool *pgxpool.Pool) *RelationshipRepository {
	return &RelationshipRepository{db: pool}
}

func NewRelationshipRepositoryWithTx(tx pgx.Tx) *RelationshipRepository {
	return &RelationshipRepository{db: tx}
}

// FindRelated returns the strongest edges touching the anchor entity in
// either direction, each paired with the entity at the far endpoint.
// Only active neighbors are returned.
func (r *RelationshipRepository) FindRelated(ctx context.Context, entityID string, limit int, typeFilter string) ([]*domain.RelatedEntity, error) {
	if limit <= 0 {
		limit = 5
	}

	const baseQuery = `
		SELECT rel.id, rel.source_id, rel.target_id, rel.type, rel.properties, rel.strength,
		       ent.id, ent.type, ent.name, ent.display_name, ent.properties,
		       ent.confidence, ent.active, ent.created_at, ent.updated_at
		FROM kb_relationships rel
		JOIN kb_entities ent
		  ON ent.id = CASE WHEN rel.source_id = $1 THEN rel.target_id ELSE rel.source_id END
		WHERE (rel.source_id = $1 OR rel.target_id = $1)
		  AND ent.active = TRUE`

	sql := baseQuery + `
		ORDER BY rel.strength DESC
		LIMIT $2`
	args := []any{entityID, limit}

	if typeFilter != "" {
		sql = baseQuery + ` AND rel.type = $2
		ORDER BY rel.strength DESC
		LIMIT $3`
		args = []any{entityID, typeFilter, limit}
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	related := make([]*domain.RelatedEntity, 0)
	for rows.Next() {
		var rel domain.Relationship
		var entity domain.Entity
		var relPropsJSON, entPropsJSON []byte
		var displayName pgtype.Text
		if err := rows.Scan(
			&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type, &relPropsJSON, &rel.Strength,
			&entity.ID, &entity.Type, &entity.Name, &displayName, &entPropsJSON,
			&entity.Confidence, &entity.Active, &entity.CreatedAt, &entity.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if displayName.Valid {
			entity.DisplayName = displayName.String
		}
		if len(relPropsJSON) > 0 {
			if err := json.Unmarshal(relPropsJSON, &rel.Properties); err != nil {
				return nil, err
			}
		}
		if len(entPropsJSON) > 0 {
			if err := json.Unmarshal(entPropsJSON, &entity.Properties); err != nil {
				return nil, err
			}
		}
		if err := domain.ValidateEntityProperties(entity.Type, entity.Properties); err != nil {
			entity.Properties = nil
		}
		related = append(related, &domain.RelatedEntity{
			Entity:       &entity,
			Relationship: &rel,
		})
	}
	return related, rows.Err()
}
