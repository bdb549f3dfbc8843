package progress

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema describes the persisted document shape. Nothing is required:
// older payloads legitimately omit fields, and absent fields default on load.
// The schema only rejects payloads whose present fields carry the wrong types.
const documentSchema = `{
  "type": "object",
  "properties": {
    "completedChapters": {
      "type": "array",
      "items": {"type": "integer"}
    },
    "quizScores": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "score": {"type": "integer", "minimum": 0},
          "totalQuestions": {"type": "integer", "minimum": 1},
          "passed": {"type": "boolean"},
          "timestamp": {"type": "string"}
        }
      }
    },
    "lastVisited": {
      "type": "object",
      "properties": {
        "chapterId": {"type": "integer"},
        "section": {"type": "string"},
        "timestamp": {"type": "string"}
      }
    },
    "lastUpdated": {"type": "string"},
    "deviceId": {"type": "string"}
  }
}`

// Validator checks raw document payloads against the document schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the document schema.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling document schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Valid reports whether raw is a well-shaped document payload.
func (v *Validator) Valid(raw []byte) bool {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return false
	}
	return result.Valid()
}
