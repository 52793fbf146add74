package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
)

const validationResponseSchema = `{
  "type": "object",
  "required": ["status", "message"],
  "properties": {
    "status": {"enum": ["ok", "suggestions", "rejected"]},
    "message": {"type": "string"},
    "suggestions": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["original", "suggested"],
        "properties": {
          "original": {"type": "string"},
          "suggested": {"type": "string"},
          "reason": {"type": "string"}
        }
      }
    }
  }
}`

var validationSchema = jsonschema.MustCompileString("validation-response.json", validationResponseSchema)

var errMissingJSON = errors.New("response does not contain a json object")

// extractJSONObject returns the span between the first '{' and the last
// '}', tolerating code fences or prose around the object.
func extractJSONObject(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return "", errMissingJSON
	}
	return trimmed[start : end+1], nil
}

// parseValidationResponse decodes and schema-checks the model's verdict.
func parseValidationResponse(content string) (affirmation.ValidationResult, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return affirmation.ValidationResult{}, err
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return affirmation.ValidationResult{}, fmt.Errorf("parse json: %w", err)
	}
	if err := validationSchema.Validate(doc); err != nil {
		return affirmation.ValidationResult{}, fmt.Errorf("unexpected response shape: %w", err)
	}

	var result affirmation.ValidationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return affirmation.ValidationResult{}, fmt.Errorf("decode verdict: %w", err)
	}
	if !result.Status.Valid() {
		return affirmation.ValidationResult{}, fmt.Errorf("unknown status %q", result.Status)
	}

	for i := range result.Suggestions {
		result.Suggestions[i].Original = strings.TrimSpace(result.Suggestions[i].Original)
		result.Suggestions[i].Suggested = strings.TrimSpace(result.Suggestions[i].Suggested)
		result.Suggestions[i].Reason = strings.TrimSpace(result.Suggestions[i].Reason)
	}
	return result, nil
}
