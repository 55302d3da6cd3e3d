package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// validateArguments checks the proposal's raw arguments against the
// capability's parameter schema.
func validateArguments(raw json.RawMessage, schema map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("argument validation error: %w", err)
	}

	if !result.Valid() {
		var errMsg string
		for i, verr := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += verr.String()
		}
		return fmt.Errorf("arguments do not match parameter schema: %s", errMsg)
	}

	return nil
}

// invocationInput extracts the single text argument the guest call contract
// accepts. The contract currently maps the "input" field to the guest's sole
// parameter; this function is the one place to generalize if capabilities
// ever take richer parameter shapes.
func invocationInput(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	value, ok := args["input"]
	if !ok {
		return "", nil
	}

	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("input field is not text")
	}

	return text, nil
}
