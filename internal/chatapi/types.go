// Package chatapi defines the flat, stateless "Chat Completions" wire shape that
// the upstream speaks: messages, tool calls and a single response object.
package chatapi

import "encoding/json"

// ToolFunction describes a callable function's name, human description, and
// JSON-schema parameters.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolDefinition is the upstream's function-tool wrapper.
type ToolDefinition struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolCallFunction carries a tool call's name and its arguments, always
// transported as an opaque JSON-encoded string (never a parsed object) — the
// upstream never guarantees the arguments are valid JSON mid-stream.
type ToolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// ToolCall is one assistant-issued call to a declared tool.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// Message is one turn of the flat chat transcript. Content is carried as
// json.RawMessage because it is either a plain string or a provider-specific
// structured block list; callers that need the string form use ContentString.
type Message struct {
	Role         string          `json:"role"`
	Content      json.RawMessage `json:"content,omitempty"`
	ToolCalls    []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Reasoning    string          `json:"reasoning,omitempty"`
	ReasoningRaw []json.RawMessage `json:"reasoning_details,omitempty"`
}

// ContentString returns the message content as a string. If the underlying
// content is a JSON string literal it is unquoted; otherwise the raw JSON
// bytes are returned verbatim (already-canonicalized structured content).
func (m Message) ContentString() string {
	if len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	return string(m.Content)
}

// SetContentString stores s as a JSON string value in Content.
func (m *Message) SetContentString(s string) {
	b, _ := json.Marshal(s)
	m.Content = b
}

// HasContent reports whether the message carries any non-null content.
func (m Message) HasContent() bool {
	return len(m.Content) > 0 && string(m.Content) != "null"
}

// CompletionRequest is the upstream request body.
type CompletionRequest struct {
	Model             string           `json:"model"`
	Messages          []Message        `json:"messages"`
	Tools             []ToolDefinition `json:"tools,omitempty"`
	ToolChoice        any              `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool            `json:"parallel_tool_calls,omitempty"`
	MaxTokens         *int             `json:"max_tokens,omitempty"`
	Temperature       *float64         `json:"temperature,omitempty"`
	TopP              *float64         `json:"top_p,omitempty"`
	Verbosity         string           `json:"verbosity,omitempty"`
	Reasoning         json.RawMessage  `json:"reasoning,omitempty"`
	ResponseFormat    map[string]any   `json:"response_format,omitempty"`
	Stream            bool             `json:"stream,omitempty"`
}

// Choice is one candidate completion: Message is set in a non-streaming
// response, Delta in a streaming chunk.
type Choice struct {
	Index        int             `json:"index,omitempty"`
	Message      *Message        `json:"message,omitempty"`
	Delta        *Delta          `json:"delta,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// Delta is one incremental SSE chunk's worth of an in-progress assistant turn.
type Delta struct {
	Content      *string        `json:"content,omitempty"`
	ToolCalls    []ToolCallDelta `json:"tool_calls,omitempty"`
	Reasoning    *string        `json:"reasoning,omitempty"`
}

// ToolCallDelta is a partial tool call fragment keyed by its stream index;
// any of ID/Function.Name/Function.Arguments may be absent on a given chunk.
type ToolCallDelta struct {
	Index    int                  `json:"index"`
	ID       string               `json:"id,omitempty"`
	Type     string               `json:"type,omitempty"`
	Function ToolCallFunctionDelta `json:"function,omitempty"`
}

// ToolCallFunctionDelta mirrors ToolCallFunction but every field is optional.
type ToolCallFunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// CompletionResponse is the upstream's non-streaming response body, and also
// the logical shape of one fully-reassembled streaming response.
type CompletionResponse struct {
	ID      string          `json:"id,omitempty"`
	Object  string          `json:"object,omitempty"`
	Created int64           `json:"created,omitempty"`
	Model   string          `json:"model,omitempty"`
	Choices []Choice        `json:"choices,omitempty"`
	Usage   json.RawMessage `json:"usage,omitempty"`
}

// StreamChunk is one SSE "data:" payload in a streaming response.
type StreamChunk struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
}

// ErrorBody is the envelope upstreams typically use to describe failures.
type ErrorBody struct {
	Error struct {
		Message string `json:"message,omitempty"`
		Type    string `json:"type,omitempty"`
		Param   string `json:"param,omitempty"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
	Message string `json:"message,omitempty"`
}
