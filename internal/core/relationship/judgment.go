package relationship

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/agenthands/genai/internal/core/common"
)

// ParseMode selects how model responses are turned into verdicts.
type ParseMode string

const (
	// ParseStrict requires a JSON judgment naming a candidate type.
	ParseStrict ParseMode = "strict"
	// ParseLenient accepts free text carrying a "hasRelationship": true
	// marker and infers the type from quoted candidates.
	ParseLenient ParseMode = "lenient"
)

var ErrInvalidJudgment = errors.New("invalid relationship judgment")

// Judgment is the structured answer requested from the model.
type Judgment struct {
	HasRelationship  bool    `json:"hasRelationship" jsonschema:"description=Whether a listed relationship applies"`
	RelationshipType string  `json:"relationshipType" jsonschema:"description=One of the listed relationship types"`
	Confidence       float64 `json:"confidence" jsonschema:"description=Confidence between 0 and 1"`
	Explanation      string  `json:"explanation" jsonschema:"description=Short rationale"`
}

// judgmentWire detects missing fields that Judgment would zero silently.
type judgmentWire struct {
	HasRelationship  *bool    `json:"hasRelationship"`
	RelationshipType string   `json:"relationshipType"`
	Confidence       *float64 `json:"confidence"`
	Explanation      string   `json:"explanation"`
}

// Verdict is a parsed judgment with the type resolved to a candidate.
type Verdict struct {
	Affirmed      bool
	Type          string
	Confidence    float64
	HasConfidence bool
	Explanation   string
	// TypeInferred marks a lenient verdict whose type fell back to the first
	// candidate.
	TypeInferred bool
}

// JudgmentSchema returns the JSON schema of Judgment with relationshipType
// restricted to candidates.
func JudgmentSchema(candidates []string) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&Judgment{})
	if prop, ok := schema.Properties.Get("relationshipType"); ok {
		enum := make([]any, len(candidates))
		for i, c := range candidates {
			enum[i] = c
		}
		prop.Enum = enum
	}
	return schema
}

var affirmedMarker = regexp.MustCompile(`"hasRelationship"\s*:\s*true`)

// ParseJudgment turns a model response into a Verdict. Strict mode errors
// wrap ErrInvalidJudgment; lenient mode never fails.
func ParseJudgment(text string, candidates []string, mode ParseMode) (Verdict, error) {
	if mode == ParseLenient {
		return parseLenient(text, candidates), nil
	}
	return parseStrict(text, candidates)
}

func parseStrict(text string, candidates []string) (Verdict, error) {
	wire, err := common.ParseJSON[judgmentWire](text)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidJudgment, err)
	}
	if wire.HasRelationship == nil {
		return Verdict{}, fmt.Errorf("%w: hasRelationship is missing", ErrInvalidJudgment)
	}
	if !*wire.HasRelationship {
		return Verdict{Explanation: wire.Explanation}, nil
	}

	typ, ok := matchCandidate(wire.RelationshipType, candidates)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: relationship type %q is not one of %s",
			ErrInvalidJudgment, wire.RelationshipType, strings.Join(candidates, ", "))
	}
	if wire.Confidence == nil {
		return Verdict{}, fmt.Errorf("%w: confidence is missing", ErrInvalidJudgment)
	}
	if c := *wire.Confidence; c < 0 || c > 1 {
		return Verdict{}, fmt.Errorf("%w: confidence %v is outside [0,1]", ErrInvalidJudgment, c)
	}

	return Verdict{
		Affirmed:      true,
		Type:          typ,
		Confidence:    *wire.Confidence,
		HasConfidence: true,
		Explanation:   wire.Explanation,
	}, nil
}

func parseLenient(text string, candidates []string) Verdict {
	if wire, err := common.ParseJSON[judgmentWire](text); err == nil && wire.HasRelationship != nil {
		if !*wire.HasRelationship {
			return Verdict{Explanation: wire.Explanation}
		}
		v := Verdict{Affirmed: true, Explanation: wire.Explanation}
		if typ, ok := matchCandidate(wire.RelationshipType, candidates); ok {
			v.Type = typ
		} else {
			v.Type, v.TypeInferred = quotedCandidate(text, candidates)
		}
		if wire.Confidence != nil {
			v.Confidence = min(max(*wire.Confidence, 0), 1)
			v.HasConfidence = true
		}
		return v
	}

	if !affirmedMarker.MatchString(text) {
		return Verdict{}
	}
	v := Verdict{Affirmed: true}
	v.Type, v.TypeInferred = quotedCandidate(text, candidates)
	return v
}

func matchCandidate(typ string, candidates []string) (string, bool) {
	typ = strings.TrimSpace(typ)
	for _, c := range candidates {
		if strings.EqualFold(typ, c) {
			return c, true
		}
	}
	return "", false
}

// quotedCandidate returns the first candidate that appears quoted in text, or
// the first candidate flagged as inferred.
func quotedCandidate(text string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if strings.Contains(text, `"`+c+`"`) {
			return c, false
		}
	}
	return candidates[0], true
}
