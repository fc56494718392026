// Package tools maps Responses API built-in tool types (opaque strings like
// "apply_patch", "shell") to the internal function-tool definitions the
// upstream chat-completions API understands, and back again.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
)

// ErrReservedPrefix indicates a user-declared function tool used the
// registry's reserved internal prefix.
type ErrReservedPrefix struct {
	Name   string
	Prefix string
}

func (e *ErrReservedPrefix) Error() string {
	return fmt.Sprintf("function tool name must not start with reserved prefix %q: %q", e.Prefix, e.Name)
}

// ErrDuplicateName indicates two tools in the same request resolved to the
// same effective upstream function name.
type ErrDuplicateName struct {
	Name string
}

func (e *ErrDuplicateName) Error() string {
	return fmt.Sprintf("duplicate tool name: %q", e.Name)
}

// ErrNameCollision indicates a built-in's canonical function name collided
// with another tool already registered under that name in the same request.
type ErrNameCollision struct {
	ExternalType string
	Name         string
}

func (e *ErrNameCollision) Error() string {
	return fmt.Sprintf("tool name collision for external type %q: %q", e.ExternalType, e.Name)
}

// Virtualization is the per-request result of rewriting a client's declared
// tool list into upstream function tools, plus both directions of the name map.
type Virtualization struct {
	ChatTools       []chatapi.ToolDefinition
	FunctionToExternal map[string]string
	ExternalToFunction map[string]string
}

// Registry holds the canonical built-in tool definitions. It is constructed
// once per process and is read-only thereafter.
type Registry struct {
	prefix   string
	builtins map[string]chatapi.ToolDefinition
}

// DefaultRegistry returns a registry pre-populated with the standard
// built-ins (apply_patch, shell) under the default reserved prefix.
func DefaultRegistry() *Registry {
	return &Registry{prefix: "ob_", builtins: defaultBuiltinTools()}
}

// FunctionNameForExternal returns the deterministic upstream function name
// for a built-in external type: the built-in's canonical name if registered,
// else the reserved-prefix fallback.
func (r *Registry) FunctionNameForExternal(externalType string) string {
	if def, ok := r.builtins[externalType]; ok {
		return def.Function.Name
	}
	return r.prefix + externalType
}

// ToolDefinitionForExternal returns the registered schema for a built-in, or
// a permissive fallback schema {payload: string} for unknown external types.
func (r *Registry) ToolDefinitionForExternal(externalType string) chatapi.ToolDefinition {
	if def, ok := r.builtins[externalType]; ok {
		return def
	}
	schema, _ := json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"payload": map[string]any{"type": "string"}},
		"required":             []string{"payload"},
		"additionalProperties": false,
	})
	return chatapi.ToolDefinition{
		Type: "function",
		Function: chatapi.ToolFunction{
			Name:        r.FunctionNameForExternal(externalType),
			Description: fmt.Sprintf("Return a JSON payload for %s.", externalType),
			Parameters:  schema,
		},
	}
}

// VirtualizeTools walks the declared tool list once, emitting function tools
// verbatim and rewriting built-ins into registry-backed function tools while
// recording both directions of the name map.
func (r *Registry) VirtualizeTools(declared []responsesapi.Tool) (Virtualization, error) {
	result := Virtualization{
		FunctionToExternal: map[string]string{},
		ExternalToFunction: map[string]string{},
	}
	if len(declared) == 0 {
		return result, nil
	}

	seen := map[string]bool{}
	for _, tool := range declared {
		if tool.Type == "function" {
			fn := tool.EffectiveFunction()
			if fn.Name == "" {
				continue
			}
			if len(fn.Name) >= len(r.prefix) && fn.Name[:len(r.prefix)] == r.prefix {
				return Virtualization{}, &ErrReservedPrefix{Name: fn.Name, Prefix: r.prefix}
			}
			if seen[fn.Name] {
				return Virtualization{}, &ErrDuplicateName{Name: fn.Name}
			}
			seen[fn.Name] = true
			result.ChatTools = append(result.ChatTools, chatapi.ToolDefinition{
				Type:     "function",
				Function: chatapi.ToolFunction{Name: fn.Name, Description: fn.Description, Parameters: fn.Parameters},
			})
			continue
		}

		def := r.ToolDefinitionForExternal(tool.Type)
		name := def.Function.Name
		if seen[name] {
			return Virtualization{}, &ErrNameCollision{ExternalType: tool.Type, Name: name}
		}
		seen[name] = true
		result.ChatTools = append(result.ChatTools, def)
		result.FunctionToExternal[name] = tool.Type
		result.ExternalToFunction[tool.Type] = name
	}

	return result, nil
}

// ToolCallArgsFromItem produces the upstream function arguments JSON from a
// built-in call item. If the item already carries a parseable JSON string in
// Arguments it is returned verbatim; otherwise the item's non-framing fields
// (everything but type/id/call_id) are serialized as a JSON object.
func (r *Registry) ToolCallArgsFromItem(item responsesapi.InputItem) string {
	if item.Arguments != "" {
		if json.Valid([]byte(item.Arguments)) {
			return item.Arguments
		}
	}

	data := map[string]any{}
	for k, v := range item.Extra {
		data[k] = v
	}
	if item.Name != "" {
		data["name"] = item.Name
	}
	if len(item.Output) > 0 {
		var out any
		if err := json.Unmarshal(item.Output, &out); err == nil {
			data["output"] = out
		}
	}
	if item.Role != "" {
		data["role"] = item.Role
	}
	if len(item.Content) > 0 {
		var c any
		if err := json.Unmarshal(item.Content, &c); err == nil {
			data["content"] = c
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
