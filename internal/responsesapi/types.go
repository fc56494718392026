// Package responsesapi defines the rich, item-oriented "Responses" wire shape
// that clients speak: typed output items, built-in tool calls, reasoning
// blocks, and structured-output formats.
package responsesapi

import "encoding/json"

// ToolFunction is the function half of a client-declared function tool.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Tool is either {type:"function", function:{...}} or {type:<built-in>},
// with the function fields sometimes flattened directly onto the tool (the
// shorthand form some clients use instead of nesting under "function").
type Tool struct {
	Type        string          `json:"type"`
	Function    *ToolFunction   `json:"function,omitempty"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// EffectiveFunction resolves a function tool's name/description/parameters
// whether they arrived nested under "function" or flattened onto the tool.
func (t Tool) EffectiveFunction() ToolFunction {
	if t.Function != nil {
		return *t.Function
	}
	return ToolFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// ToolChoiceFunction forces the model to call one named function.
type ToolChoiceFunction struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ToolChoiceAllowedTools restricts the declared tool set to a named subset
// under a specific invocation mode.
type ToolChoiceAllowedTools struct {
	Type  string `json:"type"`
	Mode  string `json:"mode"`
	Tools []Tool `json:"tools"`
}

// TextFormat describes the requested structured-output shape.
type TextFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Strict *bool           `json:"strict,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// TextConfig wraps the optional structured-output format.
type TextConfig struct {
	Format *TextFormat `json:"format,omitempty"`
}

// InputItem is a variant-typed record carrying exactly one of: a
// conversational message, a function call, a function-call output, a
// built-in tool call, a built-in tool-call output, or a reasoning block.
// Unknown/extra fields needed to reconstruct a built-in call's arguments
// (when it carries no "arguments" string) are preserved in Extra.
type InputItem struct {
	Type      string          `json:"type,omitempty"`
	Role      string          `json:"role,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Extra     map[string]any  `json:"-"`
}

// UnmarshalJSON captures the known fields plus anything else as Extra, so a
// built-in call item's ad hoc payload fields survive even when the client
// didn't pass a pre-serialized "arguments" string.
func (i *InputItem) UnmarshalJSON(data []byte) error {
	type alias InputItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*i = InputItem(a)

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for _, known := range []string{"type", "role", "content", "call_id", "name", "arguments", "output", "id"} {
		delete(m, known)
	}
	if len(m) > 0 {
		i.Extra = m
	}
	return nil
}

// CreateRequest is the POST /v1/responses body.
type CreateRequest struct {
	Model              string          `json:"model"`
	Input              json.RawMessage `json:"input"`
	Instructions       string          `json:"instructions,omitempty"`
	Tools              []Tool          `json:"tools,omitempty"`
	ToolChoice         json.RawMessage `json:"tool_choice,omitempty"`
	ParallelToolCalls  *bool           `json:"parallel_tool_calls,omitempty"`
	MaxOutputTokens    *int            `json:"max_output_tokens,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	TopP               *float64        `json:"top_p,omitempty"`
	Verbosity          string          `json:"verbosity,omitempty"`
	Text               *TextConfig     `json:"text,omitempty"`
	Stream             bool            `json:"stream,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	Store              *bool           `json:"store,omitempty"`
	Metadata           map[string]any  `json:"metadata,omitempty"`
	Reasoning          json.RawMessage `json:"reasoning,omitempty"`
}

// StoreOrDefault reports whether the response should be persisted; an
// absent "store" field defaults to true.
func (r CreateRequest) StoreOrDefault() bool {
	if r.Store == nil {
		return true
	}
	return *r.Store
}

// InputAsString reports whether Input is a bare string and, if so, its value.
func (r CreateRequest) InputAsString() (string, bool) {
	var s string
	if err := json.Unmarshal(r.Input, &s); err == nil {
		return s, true
	}
	return "", false
}

// InputAsItems parses Input as an ordered item list.
func (r CreateRequest) InputAsItems() ([]InputItem, error) {
	var items []InputItem
	if err := json.Unmarshal(r.Input, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// OutputText is the single content-block shape a message output item carries.
type OutputText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutputItem is a tagged output record: message, reasoning, function_call, or
// a virtualized "<external>_call".
type OutputItem struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Role      string          `json:"role,omitempty"`
	Content   []OutputText    `json:"content,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
	Summary   []SummaryText   `json:"summary,omitempty"`

	// Provider-scoped reasoning pass-through; never parsed semantically.
	OpenRouterReasoning        string            `json:"openrouter_reasoning,omitempty"`
	OpenRouterReasoningDetails []json.RawMessage `json:"openrouter_reasoning_details,omitempty"`
}

// SummaryText is a standardized reasoning-summary block derived from
// provider-specific reasoning detail entries tagged "reasoning.summary".
type SummaryText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CreateResponse is the POST /v1/responses success body (and the payload
// carried inside response.created/completed/failed streaming events).
type CreateResponse struct {
	ID        string          `json:"id"`
	Object    string          `json:"object"`
	CreatedAt int64           `json:"created_at"`
	Model     string          `json:"model"`
	Output    []OutputItem    `json:"output"`
	Usage     json.RawMessage `json:"usage,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// NewCreateResponse builds a response envelope with the fixed object tag.
func NewCreateResponse(id string, createdAt int64, model string, output []OutputItem) CreateResponse {
	if output == nil {
		output = []OutputItem{}
	}
	return CreateResponse{ID: id, Object: "response", CreatedAt: createdAt, Model: model, Output: output}
}
