package tools

import (
	"encoding/json"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
)

func mustSchema(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// defaultBuiltinTools returns the registry's built-in external-type →
// function-tool-definition map, keyed by the bare external type ("apply_patch",
// not "apply_patch_call").
func defaultBuiltinTools() map[string]chatapi.ToolDefinition {
	return map[string]chatapi.ToolDefinition{
		"apply_patch": {
			Type: "function",
			Function: chatapi.ToolFunction{
				Name:        "ob_apply_patch",
				Description: "Return a Cursor ApplyPatch patch as a string.",
				Parameters: mustSchema(map[string]any{
					"type": "object",
					"properties": map[string]any{
						"patch": map[string]any{"type": "string"},
					},
					"required":             []string{"patch"},
					"additionalProperties": false,
				}),
			},
		},
		"shell": {
			Type: "function",
			Function: chatapi.ToolFunction{
				Name:        "ob_shell",
				Description: "Run a shell command.",
				Parameters: mustSchema(map[string]any{
					"type": "object",
					"properties": map[string]any{
						"command":    map[string]any{"type": "string"},
						"timeout_ms": map[string]any{"type": "integer", "minimum": 0},
						"cwd":        map[string]any{"type": "string"},
					},
					"required":             []string{"command"},
					"additionalProperties": false,
				}),
			},
		},
	}
}
