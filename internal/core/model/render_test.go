package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_PromptPayload(t *testing.T) {
	e := Entity{
		ID:         4,
		Type:       TypeBook,
		Name:       "The Left Hand of Darkness",
		Attributes: Attributes{AttrAuthor: "Ursula K. Le Guin", AttrYear: 1969},
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.PromptPayload()), &decoded))
	assert.Equal(t, float64(4), decoded["id"])
	assert.Equal(t, "book", decoded["type"])
	assert.NotContains(t, decoded, "description")
	assert.Contains(t, e.PromptPayload(), "\n  \"name\"")
}

func TestEntity_PromptPayloadWithoutAttributes(t *testing.T) {
	e := Entity{ID: 1, Type: TypePerson, Name: "Ada Lovelace"}
	assert.Contains(t, e.PromptPayload(), `"attributes": {}`)
}

func TestEntity_PromptPayloadFallsBackToPlainText(t *testing.T) {
	e := Entity{
		ID:         9,
		Type:       TypePaper,
		Name:       "Broken",
		Attributes: Attributes{"score": math.NaN()},
	}

	assert.Equal(t,
		"Item Details:\n- ID: 9\n- Name: Broken\n- Type: paper\n- Attributes: score: NaN",
		e.PromptPayload())
}
