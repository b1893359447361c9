package model

import "time"

// Common item types.
const (
	TypeBook       = "book"
	TypePerson     = "person"
	TypeFilm       = "film"
	TypePaper      = "paper"
	TypeCollection = "collection"
)

// Entity is a stored item the engine can summarize or relate.
type Entity struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Attributes  Attributes `json:"attributes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Collection is the named grouping behind a collection_definition edge.
type Collection struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
