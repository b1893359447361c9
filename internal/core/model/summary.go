package model

import "time"

// SummaryRecord entity types.
const (
	SummaryOfItem         = "item"
	SummaryOfRelationship = "relationship"
	SummaryOfCollection   = "collection"
)

// SummaryRecord is generated text persisted for an item, a relationship's
// rationale or a collection.
type SummaryRecord struct {
	ID                   int64     `json:"id"`
	EntityID             int64     `json:"entityId"`
	EntityType           string    `json:"entityType"`
	Name                 string    `json:"name,omitempty"`
	Content              string    `json:"content"`
	BatchID              int64     `json:"batchId,omitempty"`
	ModelConfigurationID int64     `json:"modelConfigurationId"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// ModelCall is the audit row of one model invocation.
type ModelCall struct {
	ID                   int64     `json:"id"`
	CorrelationID        string    `json:"correlationId"`
	ModelConfigurationID int64     `json:"modelConfigurationId"`
	Provider             string    `json:"provider"`
	Model                string    `json:"model"`
	BatchID              int64     `json:"batchId,omitempty"`
	RequestContext       string    `json:"requestContext,omitempty"`
	SystemPrompt         string    `json:"systemPrompt"`
	UserPrompt           string    `json:"userPrompt"`
	Response             string    `json:"response,omitempty"`
	PromptTokens         int       `json:"promptTokens"`
	CompletionTokens     int       `json:"completionTokens"`
	DurationMillis       int64     `json:"durationMillis"`
	Success              bool      `json:"success"`
	Error                string    `json:"error,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}
