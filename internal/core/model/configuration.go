package model

import (
	"strings"
	"time"
)

type Model struct {
	ID       int64  `json:"id"`
	Name     string `json:"modelName"`
	Provider string `json:"modelProvider"`
	APIURL   string `json:"modelApiUrl,omitempty"`
}

// GenerationParams are the tunable sampling parameters of a configuration.
// Nil fields are left to the provider default.
type GenerationParams struct {
	Temperature      *float32 `json:"temperature,omitempty"`
	TopP             *float32 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	FrequencyPenalty *float32 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float32 `json:"presence_penalty,omitempty"`
}

// ModelConfiguration binds a provider model to generation parameters. It is
// read-only for the batch engine.
type ModelConfiguration struct {
	ID        int64            `json:"id"`
	Model     Model            `json:"model"`
	Params    GenerationParams `json:"moreConfig"`
	Comment   string           `json:"comment,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

var apiModelNames = map[string]string{
	"GPT-3.5-TURBO":     "gpt-3.5-turbo",
	"GPT-4":             "gpt-4",
	"GPT-4-TURBO":       "gpt-4-turbo",
	"GPT-4O":            "gpt-4o",
	"GPT-4O-MINI":       "gpt-4o-mini",
	"GPT-4.1":           "gpt-4.1",
	"GPT-4.1-MINI":      "gpt-4.1-mini",
	"CLAUDE-3-5-SONNET": "claude-3-5-sonnet-latest",
	"CLAUDE-3-5-HAIKU":  "claude-3-5-haiku-latest",
	"CLAUDE-3-OPUS":     "claude-3-opus-latest",
	"GEMINI-1.5-PRO":    "gemini-1.5-pro",
	"GEMINI-1.5-FLASH":  "gemini-1.5-flash",
}

// APIModelName maps a display name such as "GPT-4O" to the provider's model
// id. Unknown names are passed through trimmed.
func (m Model) APIModelName() string {
	name := strings.TrimSpace(m.Name)
	if mapped, ok := apiModelNames[strings.ToUpper(name)]; ok {
		return mapped
	}
	return name
}
