package streaming_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
	"github.com/NeapolitanIcecream/openbridge/internal/streaming"
	"github.com/NeapolitanIcecream/openbridge/internal/tools"
)

func strPtr(s string) *string { return &s }

func TestTranslatorTextDeltaLifecycle(t *testing.T) {
	tr := streaming.NewTranslator("resp_1", "gpt-4o", 1000, tools.Virtualization{})

	created := tr.StartEvents()
	require.Len(t, created, 1)
	assert.Equal(t, responsesapi.EventCreated, created[0].Name)

	events := tr.ProcessChunk(chatapi.StreamChunk{Choices: []chatapi.Choice{
		{Delta: &chatapi.Delta{Content: strPtr("hel")}},
	}})
	require.Len(t, events, 2)
	assert.Equal(t, responsesapi.EventOutputItemAdded, events[0].Name)
	assert.Equal(t, responsesapi.EventOutputTextDelta, events[1].Name)

	events = tr.ProcessChunk(chatapi.StreamChunk{Choices: []chatapi.Choice{
		{Delta: &chatapi.Delta{Content: strPtr("lo")}},
	}})
	require.Len(t, events, 1)
	assert.Equal(t, responsesapi.EventOutputTextDelta, events[0].Name)

	finish := tr.FinishEvents()
	require.Len(t, finish, 3)
	assert.Equal(t, responsesapi.EventOutputTextDone, finish[0].Name)
	assert.Equal(t, responsesapi.EventOutputItemDone, finish[1].Name)
	assert.Equal(t, responsesapi.EventCompleted, finish[2].Name)

	done := finish[0].Data.(responsesapi.OutputTextDoneEvent)
	assert.Equal(t, "hello", done.Text)
}

func TestTranslatorDefersToolCallItemAddedUntilIdentityKnown(t *testing.T) {
	tr := streaming.NewTranslator("resp_1", "gpt-4o", 1000, tools.Virtualization{})

	// arguments arrive before the name/id are known: must be buffered, not
	// emitted as a delta event yet.
	events := tr.ProcessChunk(chatapi.StreamChunk{Choices: []chatapi.Choice{
		{Delta: &chatapi.Delta{ToolCalls: []chatapi.ToolCallDelta{
			{Index: 0, Function: chatapi.ToolCallFunctionDelta{Arguments: `{"q":`}},
		}}},
	}})
	assert.Empty(t, events)

	// the id arrives with no name yet: still deferred.
	events = tr.ProcessChunk(chatapi.StreamChunk{Choices: []chatapi.Choice{
		{Delta: &chatapi.Delta{ToolCalls: []chatapi.ToolCallDelta{
			{Index: 0, ID: "call_1"},
		}}},
	}})
	assert.Empty(t, events)

	// the name arrives: both id and name now known, triggering
	// output_item.added followed immediately by the buffered delta, in
	// arrival order.
	events = tr.ProcessChunk(chatapi.StreamChunk{Choices: []chatapi.Choice{
		{Delta: &chatapi.Delta{ToolCalls: []chatapi.ToolCallDelta{
			{Index: 0, Function: chatapi.ToolCallFunctionDelta{Name: "lookup"}},
		}}},
	}})
	require.Len(t, events, 2)
	assert.Equal(t, responsesapi.EventOutputItemAdded, events[0].Name)
	assert.Equal(t, responsesapi.EventFunctionCallArgsDelta, events[1].Name)
	delta := events[1].Data.(responsesapi.FunctionCallArgumentsDeltaEvent)
	assert.Equal(t, `{"q":`, delta.Delta)

	// further argument fragments now stream through immediately.
	events = tr.ProcessChunk(chatapi.StreamChunk{Choices: []chatapi.Choice{
		{Delta: &chatapi.Delta{ToolCalls: []chatapi.ToolCallDelta{
			{Index: 0, Function: chatapi.ToolCallFunctionDelta{Arguments: `"x"}`}},
		}}},
	}})
	require.Len(t, events, 1)
	assert.Equal(t, responsesapi.EventFunctionCallArgsDelta, events[0].Name)

	finish := tr.FinishEvents()
	require.Len(t, finish, 3)
	doneArgs := finish[0].Data.(responsesapi.FunctionCallArgumentsDoneEvent)
	assert.Equal(t, `{"q":"x"}`, doneArgs.Arguments)
}

func TestTranslatorRetypesBuiltinToolCallViaVirtualization(t *testing.T) {
	toolMap := tools.Virtualization{
		FunctionToExternal: map[string]string{"ob_shell": "shell"},
	}
	tr := streaming.NewTranslator("resp_1", "gpt-4o", 1000, toolMap)

	events := tr.ProcessChunk(chatapi.StreamChunk{Choices: []chatapi.Choice{
		{Delta: &chatapi.Delta{ToolCalls: []chatapi.ToolCallDelta{
			{Index: 0, ID: "call_1", Function: chatapi.ToolCallFunctionDelta{Name: "ob_shell"}},
		}}},
	}})
	require.Len(t, events, 1)
	added := events[0].Data.(responsesapi.OutputItemAddedEvent)
	assert.Equal(t, "shell_call", added.Item.Type)
	assert.Equal(t, "shell", added.Item.Name)
}

func TestTranslatorAssistantMessageDropsUnresolvedToolCalls(t *testing.T) {
	tr := streaming.NewTranslator("resp_1", "gpt-4o", 1000, tools.Virtualization{})

	// a tool call whose name never arrives before the stream ends.
	tr.ProcessChunk(chatapi.StreamChunk{Choices: []chatapi.Choice{
		{Delta: &chatapi.Delta{ToolCalls: []chatapi.ToolCallDelta{
			{Index: 0, ID: "call_1"},
		}}},
	}})
	tr.ProcessChunk(chatapi.StreamChunk{Choices: []chatapi.Choice{
		{Delta: &chatapi.Delta{Content: strPtr("answer")}},
	}})

	msg := tr.AssistantMessage()
	require.NotNil(t, msg)
	assert.Empty(t, msg.ToolCalls)
	assert.Equal(t, "answer", msg.ContentString())
}

func TestTranslatorFailureEventCarriesErrorPayload(t *testing.T) {
	tr := streaming.NewTranslator("resp_1", "gpt-4o", 1000, tools.Virtualization{})
	ev := tr.FailureEvent(map[string]any{"message": "boom", "type": "upstream_error"})
	assert.Equal(t, responsesapi.EventFailed, ev.Name)
	failed := ev.Data.(responsesapi.FailedEvent)
	assert.Equal(t, "boom", failed.Error["message"])
}
