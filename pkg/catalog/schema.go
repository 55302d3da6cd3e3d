package catalog

// SourceSchema is the JSON Schema for catalog source validation. The source
// document is an ordered array of capability records.
const SourceSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "description", "binary_path", "handler", "parameters"],
    "properties": {
      "name": {
        "type": "string",
        "minLength": 1,
        "description": "Unique capability name"
      },
      "description": {
        "type": "string",
        "description": "Natural-language description shown to the planning oracle"
      },
      "binary_path": {
        "type": "string",
        "minLength": 1,
        "description": "Path to the sandboxed wasm artifact"
      },
      "handler": {
        "type": "string",
        "minLength": 1,
        "description": "Exported entry point the sandbox invokes"
      },
      "parameters": {
        "type": "object",
        "description": "JSON Schema describing invocation arguments"
      }
    }
  }
}`
