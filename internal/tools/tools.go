// Package tools defines the tool descriptor shared by all Cadenza tool
// implementations and the strict argument decoding they use.
package tools

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/MrWong99/cadenza/internal/toolerr"
)

// Handler executes one tool call. The returned value is serialized as the
// tool's structured result; a classified *toolerr.Error becomes a
// structured failure response.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool describes one MCP-facing tool: its wire name, a description for the
// client's model, a JSON schema for its arguments, and the handler.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handle      Handler
}

// DecodeArgs decodes raw tool arguments into v, rejecting unknown fields.
// A nil or empty payload decodes as an empty object so that tools with all
// optional arguments accept a bare call.
func DecodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return toolerr.New(
			toolerr.CodeInvalidArguments,
			"Tool arguments did not match the expected schema.",
			"",
		).Wrap(err)
	}
	return nil
}

// Schema helpers keep the inline tool schemas readable.

// Obj builds an object schema from properties and the required field list.
func Obj(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Str builds a string property schema.
func Str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// StrEnum builds a string property schema restricted to the given values.
func StrEnum(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

// Int builds an integer property schema.
func Int(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

// Bool builds a boolean property schema.
func Bool(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

// StrArray builds an array-of-strings property schema.
func StrArray(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}
