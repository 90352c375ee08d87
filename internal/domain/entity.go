package domain

import "time"

// Well-known knowledge-graph entity types. The type tag is free-form, but
// entities of these types carry schema-checked property bags.
const (
	EntityTypeProgram      = "immigration_program"
	EntityTypeCountry      = "country"
	EntityTypeDocumentType = "document_type"
	EntityTypeOccupation   = "occupation"
	EntityTypeLanguageTest = "language_test"
)

// Entity is a named, typed knowledge-graph node (a program, country,
// document type, ...) with a confidence score and a property bag.
type Entity struct {
	ID          string
	Type        string
	Name        string
	DisplayName string
	Properties  map[string]any
	Confidence  float64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Label returns the display name when set, falling back to the canonical name.
func (e *Entity) Label() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Name
}

// entityPropertyKeys lists the allowed property keys for well-known entity
// types. Property bags are validated at the store boundary so loosely-typed
// rows never leak past the repository; free-form types pass through as-is.
var entityPropertyKeys = map[string][]string{
	EntityTypeProgram:      {"country", "category", "min_score", "processing_time", "official_url", "annual_quota"},
	EntityTypeCountry:      {"iso_code", "region", "official_languages"},
	EntityTypeDocumentType: {"issuing_authority", "validity_months", "required_for"},
	EntityTypeOccupation:   {"noc_code", "skill_level", "teer_category"},
	EntityTypeLanguageTest: {"skills", "score_scale", "validity_months", "accepted_by"},
}

// ValidateEntityProperties checks a property bag against the schema for the
// given entity type. Unknown entity types are free-form and always pass.
func ValidateEntityProperties(entityType string, properties map[string]any) error {
	allowed, known := entityPropertyKeys[entityType]
	if !known {
		return nil
	}
	for key := range properties {
		if !containsKey(allowed, key) {
			return NewDomainErrorWithCause(ErrCodeValidation,
				"unknown property key for entity type "+entityType,
				ErrInvalidPropertyKey)
		}
	}
	return nil
}

// ValidateEntity validates an Entity instance
func ValidateEntity(e *Entity) error {
	if e == nil {
		return NewDomainError(ErrCodeValidation, "entity cannot be nil")
	}
	if e.Name == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "entity Name is required", ErrMissingRequiredData)
	}
	if e.Type == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "entity Type is required", ErrMissingRequiredData)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return NewDomainError(ErrCodeValidation, "entity Confidence must be in [0, 1]")
	}
	return ValidateEntityProperties(e.Type, e.Properties)
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
