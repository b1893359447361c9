package model

import (
	"encoding/json"
	"fmt"
)

type entityPayload struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Attributes  Attributes `json:"attributes"`
}

// PromptPayload renders the entity for a model prompt as indented JSON. When
// the attributes cannot be encoded it falls back to a plain-text block, so
// every entity renders.
func (e Entity) PromptPayload() string {
	attrs := e.Attributes
	if attrs == nil {
		attrs = Attributes{}
	}
	data, err := json.MarshalIndent(entityPayload{
		ID:          e.ID,
		Name:        e.Name,
		Type:        e.Type,
		Description: e.Description,
		Attributes:  attrs,
	}, "", "  ")
	if err != nil {
		return e.PlainText()
	}
	return string(data)
}

func (e Entity) PlainText() string {
	return fmt.Sprintf("Item Details:\n- ID: %d\n- Name: %s\n- Type: %s\n- Attributes: %s",
		e.ID, e.Name, e.Type, e.Attributes.Format())
}
