package tool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objectSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":  map[string]interface{}{"type": "string"},
			"limit": map[string]interface{}{"type": "integer"},
			"tags": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required": []string{"path"},
	}
}

func TestValidateInput_Valid(t *testing.T) {
	input := json.RawMessage(`{"path":"/tmp/file.txt","limit":10,"tags":["a","b"]}`)
	assert.NoError(t, ValidateInput(objectSchema(), input))
}

func TestValidateInput_MissingRequiredField(t *testing.T) {
	err := ValidateInput(objectSchema(), json.RawMessage(`{"limit":10}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
}

func TestValidateInput_TypeMismatch(t *testing.T) {
	err := ValidateInput(objectSchema(), json.RawMessage(`{"path":42}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected string")

	err = ValidateInput(objectSchema(), json.RawMessage(`{"path":"ok","tags":["a",7]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tags[1]")
}

func TestValidateInput_UnknownFieldsAllowed(t *testing.T) {
	input := json.RawMessage(`{"path":"/tmp","extra":"ignored"}`)
	assert.NoError(t, ValidateInput(objectSchema(), input))
}

func TestValidateInput_EmptyInputAgainstOptionalSchema(t *testing.T) {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
	assert.NoError(t, ValidateInput(schema, nil))
	assert.NoError(t, ValidateInput(schema, json.RawMessage(`{}`)))
}

func TestValidateInput_InvalidJSON(t *testing.T) {
	err := ValidateInput(objectSchema(), json.RawMessage(`{"path":`))
	assert.Error(t, err)
}
