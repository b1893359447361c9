package model

import "time"

// Relationship types with fixed meaning.
const (
	RelCollection           = "collection"            // member -> collection
	RelCollectionDefinition = "collection_definition" // collection -> collection, carries name/description
	RelSummarizes           = "summarizes"            // summary -> collection
)

// Endpoint kinds of a relationship.
const (
	EndpointItem       = "item"
	EndpointCollection = "collection"
	EndpointSummary    = "summary"
)

// Relationship attribute keys written by the scanner.
const (
	RelAttrConfidence   = "confidence"
	RelAttrExplanation  = "explanation"
	RelAttrBatchID      = "batch_id"
	RelAttrModelConfig  = "model_configuration_id"
	RelAttrTypeInferred = "type_inferred"
	RelAttrDescription  = "description"
)

// RelationshipRecord is a persisted edge between two endpoints.
type RelationshipRecord struct {
	ID               int64      `json:"id"`
	RelationshipType string     `json:"relationshipType"`
	SourceType       string     `json:"sourceType"`
	SourceID         int64      `json:"sourceId"`
	TargetType       string     `json:"targetType"`
	TargetID         int64      `json:"targetId"`
	Name             string     `json:"name,omitempty"`
	Attributes       Attributes `json:"attributes,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}
