package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseJSON cleans and unmarshals a model response into a type T.
// It handles common LLM quirks like surrounding markdown, extra text and
// slightly malformed JSON.
func ParseJSON[T any](response string) (T, error) {
	var result T

	jsonStr, err := extractObject(response)
	if err != nil {
		return result, err
	}

	if err := UnmarshalFlexible(jsonStr, &result); err != nil {
		return result, err
	}
	return result, nil
}

// extractObject returns the text between the first '{' and the last '}'.
func extractObject(response string) (string, error) {
	start := strings.IndexByte(response, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response (missing '{')")
	}
	end := strings.LastIndexByte(response, '}')
	if end < start {
		// Truncated output; leave the closing to the repair step.
		return response[start:], nil
	}
	return response[start : end+1], nil
}

// UnmarshalFlexible tries strict decoding first, then a double-encoded
// string, then a repaired version of the input.
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, repaired)
	}
	return nil
}

// RetryWithContext calls fn up to maxTries times until it succeeds or ctx is
// done. Context errors returned by fn end the loop immediately.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}
