package domain

// Relationship is a typed, weighted directed edge between two entities.
// For expansion purposes the edge is treated as undirected: the queried
// entity may sit at either endpoint.
type Relationship struct {
	ID         string
	SourceID   string
	TargetID   string
	Type       string
	Properties map[string]any
	// Strength is the edge weight in [0, 1].
	Strength float64
}

// OtherEndpoint returns the entity ID at the far side of the edge from
// the given anchor. Returns the empty string when the anchor is not an
// endpoint of this edge.
func (r *Relationship) OtherEndpoint(anchorID string) string {
	switch anchorID {
	case r.SourceID:
		return r.TargetID
	case r.TargetID:
		return r.SourceID
	default:
		return ""
	}
}

// RelatedEntity pairs an expanded neighbor entity with the edge that
// connects it to the anchor entity.
type RelatedEntity struct {
	Entity       *Entity
	Relationship *Relationship
}

// ValidateRelationship validates a Relationship instance
func ValidateRelationship(r *Relationship) error {
	if r == nil {
		return NewDomainError(ErrCodeValidation, "relationship cannot be nil")
	}
	if r.SourceID == "" || r.TargetID == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "relationship endpoints are required", ErrMissingRequiredData)
	}
	if r.SourceID == r.TargetID {
		return NewDomainError(ErrCodeValidation, "relationship cannot be self-referential")
	}
	if r.Type == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "relationship Type is required", ErrMissingRequiredData)
	}
	if r.Strength < 0 || r.Strength > 1 {
		return NewDomainError(ErrCodeValidation, "relationship Strength must be in [0, 1]")
	}
	return nil
}
