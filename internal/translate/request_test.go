package translate_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/config"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
	"github.com/NeapolitanIcecream/openbridge/internal/tools"
	"github.com/NeapolitanIcecream/openbridge/internal/translate"
)

func settings() *config.Settings {
	return &config.Settings{}
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestTranslateRequestStringInput(t *testing.T) {
	req := responsesapi.CreateRequest{
		Model: "gpt-4o",
		Input: rawJSON(t, "hello"),
	}

	result, err := translate.TranslateRequest(settings(), req, tools.DefaultRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, result.ChatRequest.Messages, 1)
	assert.Equal(t, "user", result.ChatRequest.Messages[0].Role)
	assert.Equal(t, "hello", result.ChatRequest.Messages[0].ContentString())
	assert.Equal(t, "openai/gpt-4o", result.ChatRequest.Model)
}

func TestTranslateRequestInstructionsBecomeSystemMessageAfterHistory(t *testing.T) {
	earlier := chatapi.Message{Role: "user"}
	earlier.SetContentString("earlier turn")
	history := []chatapi.Message{earlier}
	req := responsesapi.CreateRequest{
		Model:        "gpt-4o",
		Input:        rawJSON(t, "next turn"),
		Instructions: "be terse",
	}

	result, err := translate.TranslateRequest(settings(), req, tools.DefaultRegistry(), history)
	require.NoError(t, err)
	require.Len(t, result.ChatRequest.Messages, 3)
	assert.Equal(t, "user", result.ChatRequest.Messages[0].Role)
	assert.Equal(t, "system", result.ChatRequest.Messages[1].Role)
	assert.Equal(t, "be terse", result.ChatRequest.Messages[1].ContentString())
	assert.Equal(t, "user", result.ChatRequest.Messages[2].Role)

	// messages_for_state excludes the instructions message.
	require.Len(t, result.MessagesForState, 2)
	for _, m := range result.MessagesForState {
		assert.NotEqual(t, "be terse", m.ContentString())
	}
}

func TestTranslateRequestFunctionCallRoundTrip(t *testing.T) {
	items := []map[string]any{
		{"type": "function_call", "call_id": "call_1", "name": "lookup", "arguments": `{"q":"x"}`},
		{"type": "function_call_output", "call_id": "call_1", "output": "42"},
	}
	req := responsesapi.CreateRequest{
		Model: "gpt-4o",
		Input: rawJSON(t, items),
	}

	result, err := translate.TranslateRequest(settings(), req, tools.DefaultRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, result.ChatRequest.Messages, 2)

	assistant := result.ChatRequest.Messages[0]
	assert.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "lookup", assistant.ToolCalls[0].Function.Name)

	toolMsg := result.ChatRequest.Messages[1]
	assert.Equal(t, "tool", toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
}

func TestTranslateRequestBuiltinCallVirtualizesName(t *testing.T) {
	items := []map[string]any{
		{"type": "apply_patch_call", "call_id": "call_2", "arguments": `{"patch":"diff"}`},
	}
	req := responsesapi.CreateRequest{
		Model: "gpt-4o",
		Input: rawJSON(t, items),
		Tools: []responsesapi.Tool{{Type: "apply_patch"}},
	}

	result, err := translate.TranslateRequest(settings(), req, tools.DefaultRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, result.ChatRequest.Messages, 1)
	require.Len(t, result.ChatRequest.Messages[0].ToolCalls, 1)
	assert.Equal(t, "ob_apply_patch", result.ChatRequest.Messages[0].ToolCalls[0].Function.Name)
}

func TestTranslateRequestInfersToolsAndForcesChoiceNone(t *testing.T) {
	items := []map[string]any{
		{"type": "function_call", "call_id": "call_1", "name": "lookup", "arguments": `{}`},
	}
	req := responsesapi.CreateRequest{
		Model: "gpt-4o",
		Input: rawJSON(t, items),
	}

	result, err := translate.TranslateRequest(settings(), req, tools.DefaultRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, result.ChatRequest.Tools, 1)
	assert.Equal(t, "lookup", result.ChatRequest.Tools[0].Function.Name)
	assert.Equal(t, "none", result.ChatRequest.ToolChoice)
}

func TestTranslateRequestRejectsNonObjectReasoning(t *testing.T) {
	req := responsesapi.CreateRequest{
		Model:     "gpt-4o",
		Input:     rawJSON(t, "hi"),
		Reasoning: rawJSON(t, "high"),
	}

	_, err := translate.TranslateRequest(settings(), req, tools.DefaultRegistry(), nil)
	require.ErrorIs(t, err, translate.ErrInvalidReasoning)
}

func TestTranslateRequestMaxOutputTokensAddsBuffer(t *testing.T) {
	s := settings()
	s.MaxTokensBuffer = 10
	maxOut := 100
	req := responsesapi.CreateRequest{
		Model:           "gpt-4o",
		Input:           rawJSON(t, "hi"),
		MaxOutputTokens: &maxOut,
	}

	result, err := translate.TranslateRequest(s, req, tools.DefaultRegistry(), nil)
	require.NoError(t, err)
	require.NotNil(t, result.ChatRequest.MaxTokens)
	assert.Equal(t, 110, *result.ChatRequest.MaxTokens)
}
