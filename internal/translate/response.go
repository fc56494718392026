package translate

import (
	"encoding/json"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/ids"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
	"github.com/NeapolitanIcecream/openbridge/internal/tools"
)

// ChatResponseToResponses implements §4.D: a non-streaming chat completion
// becomes a response's output item list, in order: the reasoning block (if
// any), then each tool call (re-typed through the virtualization map back to
// its built-in external type where applicable), then the text message.
func ChatResponseToResponses(resp chatapi.CompletionResponse, toolMap tools.Virtualization, requestID string) responsesapi.CreateResponse {
	out := responsesapi.NewCreateResponse(requestID, ids.Now(), resp.Model, nil)
	out.Usage = resp.Usage

	if len(resp.Choices) == 0 {
		return out
	}

	msg := resp.Choices[0].Message
	if msg == nil {
		return out
	}

	var output []responsesapi.OutputItem
	if item, ok := reasoningToOutputItem(*msg); ok {
		output = append(output, item)
	}
	for _, call := range msg.ToolCalls {
		output = append(output, toolCallToOutputItem(call, toolMap))
	}
	if text := msg.ContentString(); text != "" {
		output = append(output, textToOutputItem(text))
	}

	out.Output = output
	return out
}

func reasoningToOutputItem(msg chatapi.Message) (responsesapi.OutputItem, bool) {
	if msg.Reasoning == "" && len(msg.ReasoningRaw) == 0 {
		return responsesapi.OutputItem{}, false
	}

	item := responsesapi.OutputItem{
		ID:                         ids.New("item"),
		Type:                       "reasoning",
		OpenRouterReasoning:        msg.Reasoning,
		OpenRouterReasoningDetails: msg.ReasoningRaw,
	}

	for _, raw := range msg.ReasoningRaw {
		var detail struct {
			Type    string `json:"type"`
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal(raw, &detail); err != nil {
			continue
		}
		if detail.Type == "reasoning.summary" && detail.Summary != "" {
			item.Summary = append(item.Summary, responsesapi.SummaryText{Type: "summary_text", Text: detail.Summary})
		}
	}

	return item, true
}

func toolCallToOutputItem(call chatapi.ToolCall, toolMap tools.Virtualization) responsesapi.OutputItem {
	itemType := "function_call"
	name := call.Function.Name
	if external, ok := toolMap.FunctionToExternal[name]; ok {
		itemType = external + "_call"
		name = external
	}
	return responsesapi.OutputItem{
		ID:        ids.New("item"),
		Type:      itemType,
		CallID:    call.ID,
		Name:      name,
		Arguments: call.Function.Arguments,
	}
}

func textToOutputItem(text string) responsesapi.OutputItem {
	return responsesapi.OutputItem{
		ID:      ids.New("item"),
		Type:    "message",
		Role:    "assistant",
		Content: []responsesapi.OutputText{{Type: "output_text", Text: text}},
	}
}
