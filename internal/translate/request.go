// Package translate implements the bidirectional mapping between the rich
// Responses item graph and the flat Chat-Completions transcript (§4.C, §4.D).
package translate

import (
	"encoding/json"
	"fmt"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/config"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
	"github.com/NeapolitanIcecream/openbridge/internal/tools"
)

// ErrInvalidReasoning indicates the request's "reasoning" field was present
// but not a JSON object.
var ErrInvalidReasoning = fmt.Errorf("reasoning must be a JSON object")

// Result is the ephemeral per-request translation output: the chat request
// to send upstream, the tool-name virtualization used to build it, and the
// transcript to persist as conversation state (history + this turn's input,
// deliberately excluding the instructions system message).
type Result struct {
	ChatRequest      chatapi.CompletionRequest
	ToolMap          tools.Virtualization
	MessagesForState []chatapi.Message
}

// reasoningBuffer holds opaque reasoning detail blocks pending attachment to
// the next assistant message that arises from the input item walk.
type reasoningBuffer struct {
	text    string
	details []json.RawMessage
}

// TranslateRequest implements §4.C: Responses request → Chat request.
func TranslateRequest(settings *config.Settings, req responsesapi.CreateRequest, registry *tools.Registry, history []chatapi.Message) (Result, error) {
	modelMap, err := loadModelMap(settings.ModelMapPath)
	if err != nil {
		return Result{}, err
	}

	inputMessages, err := inputItemsToMessages(req, registry)
	if err != nil {
		return Result{}, err
	}

	messages := make([]chatapi.Message, 0, len(history)+1+len(inputMessages))
	messages = append(messages, history...)
	if req.Instructions != "" {
		sys := chatapi.Message{Role: "system"}
		sys.SetContentString(req.Instructions)
		messages = append(messages, sys)
	}
	messages = append(messages, inputMessages...)

	declaredTools := req.Tools
	forceNoTools := false
	if len(declaredTools) == 0 {
		if inferred := inferToolsFromInput(req); len(inferred) > 0 {
			declaredTools = inferred
			forceNoTools = true
		}
	}

	toolMap, normalizedChoice, err := normalizeToolsAndChoice(declaredTools, req.ToolChoice, registry)
	if err != nil {
		return Result{}, err
	}
	if forceNoTools && len(req.ToolChoice) == 0 {
		normalizedChoice = "none"
	}

	responseFormat := buildResponseFormat(req.Text)

	var reasoning json.RawMessage
	if len(req.Reasoning) > 0 && string(req.Reasoning) != "null" {
		var obj map[string]any
		if err := json.Unmarshal(req.Reasoning, &obj); err != nil {
			return Result{}, ErrInvalidReasoning
		}
		reasoning = req.Reasoning
	}

	var maxTokens *int
	if req.MaxOutputTokens != nil {
		v := *req.MaxOutputTokens + settings.MaxTokensBuffer
		maxTokens = &v
	}

	chatReq := chatapi.CompletionRequest{
		Model:             resolveModel(req.Model, modelMap),
		Messages:          messages,
		ParallelToolCalls: req.ParallelToolCalls,
		MaxTokens:         maxTokens,
		Temperature:       req.Temperature,
		TopP:              req.TopP,
		Verbosity:         req.Verbosity,
		Reasoning:         reasoning,
		ResponseFormat:    responseFormat,
		Stream:            req.Stream,
	}
	if len(toolMap.ChatTools) > 0 {
		chatReq.Tools = toolMap.ChatTools
	}
	if normalizedChoice != nil {
		chatReq.ToolChoice = normalizedChoice
	}

	messagesForState := make([]chatapi.Message, 0, len(history)+len(inputMessages))
	messagesForState = append(messagesForState, history...)
	messagesForState = append(messagesForState, inputMessages...)

	return Result{ChatRequest: chatReq, ToolMap: toolMap, MessagesForState: messagesForState}, nil
}

func inputItemsToMessages(req responsesapi.CreateRequest, registry *tools.Registry) ([]chatapi.Message, error) {
	if s, ok := req.InputAsString(); ok {
		m := chatapi.Message{Role: "user"}
		m.SetContentString(s)
		return []chatapi.Message{m}, nil
	}

	items, err := req.InputAsItems()
	if err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var messages []chatapi.Message
	var pending *reasoningBuffer

	attachPending := func(m *chatapi.Message) {
		if pending == nil {
			return
		}
		m.Reasoning = pending.text
		m.ReasoningRaw = pending.details
		pending = nil
	}

	appendToolCall := func(call chatapi.ToolCall) {
		if len(messages) > 0 {
			last := &messages[len(messages)-1]
			if last.Role == "assistant" && len(last.ToolCalls) > 0 {
				last.ToolCalls = append(last.ToolCalls, call)
				return
			}
		}
		m := chatapi.Message{Role: "assistant", ToolCalls: []chatapi.ToolCall{call}}
		attachPending(&m)
		messages = append(messages, m)
	}

	for _, item := range items {
		if item.Role != "" && item.Content != nil {
			content := canonicalizeContent(item.Content)
			m := chatapi.Message{Role: item.Role, Content: content}
			if item.Role == "assistant" {
				attachPending(&m)
			}
			messages = append(messages, m)
			continue
		}

		switch {
		case item.Type == "reasoning":
			pending = extractReasoningBuffer(item)

		case item.Type == "function_call":
			appendToolCall(chatapi.ToolCall{
				ID:   item.CallID,
				Type: "function",
				Function: chatapi.ToolCallFunction{
					Name:      item.Name,
					Arguments: orDefault(item.Arguments, "{}"),
				},
			})

		case item.Type == "function_call_output":
			messages = append(messages, chatapi.Message{
				Role:       "tool",
				ToolCallID: item.CallID,
				Content:    stringifyOutput(item.Output),
			})

		case hasSuffix(item.Type, "_call"):
			externalType := item.Type[:len(item.Type)-len("_call")]
			functionName := registry.FunctionNameForExternal(externalType)
			appendToolCall(chatapi.ToolCall{
				ID:   item.CallID,
				Type: "function",
				Function: chatapi.ToolCallFunction{
					Name:      functionName,
					Arguments: registry.ToolCallArgsFromItem(item),
				},
			})

		case hasSuffix(item.Type, "_call_output"):
			messages = append(messages, chatapi.Message{
				Role:       "tool",
				ToolCallID: item.CallID,
				Content:    stringifyOutput(item.Output),
			})
		}
	}

	return messages, nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// canonicalizeContent returns item content as json.RawMessage, re-encoding
// non-string/list/object scalars to their JSON string form.
func canonicalizeContent(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		b, _ := json.Marshal(s)
		return b
	}
	var arr []any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return raw
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return raw
	}
	// scalar (number/bool/null): canonicalize to its JSON string form.
	b, _ := json.Marshal(string(raw))
	return b
}

func stringifyOutput(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		b, _ := json.Marshal("")
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		b, _ := json.Marshal(s)
		return b
	}
	b, _ := json.Marshal(string(raw))
	return b
}

func extractReasoningBuffer(item responsesapi.InputItem) *reasoningBuffer {
	buf := &reasoningBuffer{}
	if item.Extra == nil {
		return buf
	}
	if text, ok := item.Extra["reasoning"].(string); ok {
		buf.text = text
	}
	if rawDetails, ok := item.Extra["reasoning_details"]; ok {
		if list, ok := rawDetails.([]any); ok {
			for _, d := range list {
				b, err := json.Marshal(d)
				if err == nil {
					buf.details = append(buf.details, b)
				}
			}
		}
	}
	return buf
}

// inferToolsFromInput synthesizes minimal, permissive tool declarations for
// every distinct call/call-output item referenced by the input, used only
// when the client declared no tools of its own (§4.C.4). A function_call_output
// item contributes a declaration only when it carries a name.
func inferToolsFromInput(req responsesapi.CreateRequest) []responsesapi.Tool {
	items, err := req.InputAsItems()
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var inferred []responsesapi.Tool
	for _, item := range items {
		switch {
		case item.Type == "function_call" || item.Type == "function_call_output":
			if item.Name == "" || seen[item.Name] {
				continue
			}
			seen[item.Name] = true
			inferred = append(inferred, responsesapi.Tool{
				Type: "function",
				Function: &responsesapi.ToolFunction{
					Name:       item.Name,
					Parameters: permissiveSchema(),
				},
			})
		case hasSuffix(item.Type, "_call") && item.Type != "function_call":
			externalType := item.Type[:len(item.Type)-len("_call")]
			if seen[externalType] {
				continue
			}
			seen[externalType] = true
			inferred = append(inferred, responsesapi.Tool{Type: externalType})
		case hasSuffix(item.Type, "_call_output") && item.Type != "function_call_output":
			externalType := item.Type[:len(item.Type)-len("_call_output")]
			if seen[externalType] {
				continue
			}
			seen[externalType] = true
			inferred = append(inferred, responsesapi.Tool{Type: externalType})
		}
	}
	return inferred
}

func permissiveSchema() json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"payload": map[string]any{"type": "string"}},
		"required":             []string{"payload"},
		"additionalProperties": false,
	})
	return b
}

func normalizeToolsAndChoice(declared []responsesapi.Tool, rawChoice json.RawMessage, registry *tools.Registry) (tools.Virtualization, any, error) {
	filtered := declared

	var normalized any
	if len(rawChoice) > 0 && string(rawChoice) != "null" {
		var s string
		if err := json.Unmarshal(rawChoice, &s); err == nil {
			normalized = s
		} else {
			var generic map[string]any
			if err := json.Unmarshal(rawChoice, &generic); err == nil {
				switch generic["type"] {
				case "allowed_tools":
					var allowed responsesapi.ToolChoiceAllowedTools
					if err := json.Unmarshal(rawChoice, &allowed); err == nil {
						filtered = filterToolsByAllowed(declared, allowed.Tools)
						normalized = allowed.Mode
					}
				case "function":
					var fc responsesapi.ToolChoiceFunction
					if err := json.Unmarshal(rawChoice, &fc); err == nil {
						normalized = map[string]any{"type": "function", "function": map[string]any{"name": fc.Name}}
					}
				default:
					normalized = generic
				}
			}
		}
	}

	toolMap, err := registry.VirtualizeTools(filtered)
	if err != nil {
		return tools.Virtualization{}, nil, err
	}
	return toolMap, normalized, nil
}

func filterToolsByAllowed(declared []responsesapi.Tool, allowed []responsesapi.Tool) []responsesapi.Tool {
	allowedSet := map[string]bool{}
	for _, t := range allowed {
		if t.Type == "function" {
			fn := t.EffectiveFunction()
			if fn.Name != "" {
				allowedSet[fn.Name] = true
			}
		} else {
			allowedSet[t.Type] = true
		}
	}

	var filtered []responsesapi.Tool
	for _, t := range declared {
		if t.Type == "function" {
			fn := t.EffectiveFunction()
			if allowedSet[fn.Name] {
				filtered = append(filtered, t)
			}
		} else if allowedSet[t.Type] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func buildResponseFormat(text *responsesapi.TextConfig) map[string]any {
	if text == nil || text.Format == nil {
		return nil
	}
	format := text.Format
	switch format.Type {
	case "json_schema":
		js := map[string]any{}
		if format.Name != "" {
			js["name"] = format.Name
		}
		if format.Strict != nil {
			js["strict"] = *format.Strict
		}
		if len(format.Schema) > 0 {
			var schema any
			if err := json.Unmarshal(format.Schema, &schema); err == nil {
				js["schema"] = schema
			}
		}
		return map[string]any{"type": "json_schema", "json_schema": js}
	case "json_object":
		return map[string]any{"type": "json_object"}
	default:
		return nil
	}
}
