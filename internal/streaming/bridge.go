// Package streaming implements the Streaming Bridge (§4.E): a per-index
// reconstruction state machine that turns Chat-Completions SSE deltas into
// strictly-ordered Responses SSE events, plus the retry/degrade orchestration
// that drives one streamed turn end to end.
package streaming

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/config"
	"github.com/NeapolitanIcecream/openbridge/internal/ids"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
	"github.com/NeapolitanIcecream/openbridge/internal/tools"
	"github.com/NeapolitanIcecream/openbridge/internal/upstream"
)

// toolCallState tracks one in-progress tool call across SSE chunks, keyed by
// its stream index. Identity (call_id and name) may arrive incrementally and
// out of order relative to argument fragments; emission of the corresponding
// output item is deferred until both are known.
type toolCallState struct {
	index               int
	callID              string
	name                string
	arguments           string
	outputIndex         int
	hasOutputIndex      bool
	externalType        string
	pendingArgDeltas    []string
}

// Translator reconstructs one response's worth of output items from a
// sequence of Chat-Completions stream chunks, emitting Responses events in
// the order invariant requires.
type Translator struct {
	responseID  string
	model       string
	createdAt   int64
	toolMap     tools.Virtualization
	outputItems []responsesapi.OutputItem

	textOutputIndex int
	hasTextIndex    bool
	textContent     string

	toolOrder []int // indices into toolCalls, in first-seen order
	toolCalls map[int]*toolCallState
}

// NewTranslator constructs a Translator for one response turn.
func NewTranslator(responseID, model string, createdAt int64, toolMap tools.Virtualization) *Translator {
	return &Translator{
		responseID: responseID,
		model:      model,
		createdAt:  createdAt,
		toolMap:    toolMap,
		toolCalls:  map[int]*toolCallState{},
	}
}

// StartEvents returns the initial response.created event.
func (t *Translator) StartEvents() []responsesapi.Event {
	return []responsesapi.Event{responsesapi.NewCreatedEvent(t.buildResponse())}
}

// ProcessChunk translates one upstream stream chunk into zero or more events.
func (t *Translator) ProcessChunk(chunk chatapi.StreamChunk) []responsesapi.Event {
	var events []responsesapi.Event
	for _, choice := range chunk.Choices {
		if choice.Delta == nil {
			continue
		}
		if choice.Delta.Content != nil {
			events = append(events, t.handleTextDelta(*choice.Delta.Content)...)
		}
		if len(choice.Delta.ToolCalls) > 0 {
			events = append(events, t.handleToolCallDeltas(choice.Delta.ToolCalls)...)
		}
	}
	return events
}

// FinishEvents closes out any still-open output items and appends the
// terminal response.completed event, in ascending output_index order for
// tool calls per the ordering invariant.
func (t *Translator) FinishEvents() []responsesapi.Event {
	var events []responsesapi.Event

	if t.hasTextIndex {
		events = append(events, responsesapi.NewOutputTextDoneEvent(t.textOutputIndex, t.textContent))
		events = append(events, responsesapi.NewOutputItemDoneEvent(t.textOutputIndex, t.outputItems[t.textOutputIndex]))
	}

	type indexed struct {
		outputIndex int
		state       *toolCallState
	}
	var ordered []indexed
	for _, idx := range t.toolOrder {
		state := t.toolCalls[idx]
		if state.hasOutputIndex {
			ordered = append(ordered, indexed{outputIndex: state.outputIndex, state: state})
		}
	}
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].outputIndex < ordered[i].outputIndex {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	for _, entry := range ordered {
		events = append(events, responsesapi.NewFunctionCallArgumentsDoneEvent(entry.outputIndex, entry.state.arguments))
		events = append(events, responsesapi.NewOutputItemDoneEvent(entry.outputIndex, t.outputItems[entry.outputIndex]))
	}

	events = append(events, responsesapi.NewCompletedEvent(t.buildResponse()))
	return events
}

// FailureEvent builds the terminal response.failed event.
func (t *Translator) FailureEvent(errPayload map[string]any) responsesapi.Event {
	return responsesapi.NewFailedEvent(t.buildResponse(), errPayload)
}

// AssistantMessage reconstructs the assistant turn accumulated so far as a
// chat message suitable for persisting into conversation state. Tool calls
// missing a call_id or name (identity never resolved before the stream
// ended) are dropped rather than persisted half-formed.
func (t *Translator) AssistantMessage() *chatapi.Message {
	type indexed struct {
		outputIndex int
		state       *toolCallState
	}
	var ordered []indexed
	for _, idx := range t.toolOrder {
		state := t.toolCalls[idx]
		if state.hasOutputIndex {
			ordered = append(ordered, indexed{outputIndex: state.outputIndex, state: state})
		}
	}
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].outputIndex < ordered[i].outputIndex {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}

	var toolCalls []chatapi.ToolCall
	for _, entry := range ordered {
		if entry.state.callID == "" || entry.state.name == "" {
			continue
		}
		toolCalls = append(toolCalls, chatapi.ToolCall{
			ID:   entry.state.callID,
			Type: "function",
			Function: chatapi.ToolCallFunction{
				Name:      entry.state.name,
				Arguments: entry.state.arguments,
			},
		})
	}

	if len(toolCalls) == 0 && t.textContent == "" {
		return nil
	}

	msg := &chatapi.Message{Role: "assistant", ToolCalls: toolCalls}
	if t.textContent != "" {
		msg.SetContentString(t.textContent)
	}
	return msg
}

// FinalResponse returns the fully-assembled response for persistence.
func (t *Translator) FinalResponse() responsesapi.CreateResponse {
	return t.buildResponse()
}

func (t *Translator) handleTextDelta(delta string) []responsesapi.Event {
	var events []responsesapi.Event

	if !t.hasTextIndex {
		item := responsesapi.OutputItem{
			ID:      ids.New("item"),
			Type:    "message",
			Role:    "assistant",
			Content: []responsesapi.OutputText{{Type: "output_text", Text: ""}},
		}
		t.textOutputIndex = len(t.outputItems)
		t.hasTextIndex = true
		t.outputItems = append(t.outputItems, item)
		events = append(events, responsesapi.NewOutputItemAddedEvent(t.textOutputIndex, item))
	}

	t.textContent += delta
	item := &t.outputItems[t.textOutputIndex]
	if len(item.Content) > 0 {
		item.Content[0].Text = t.textContent
	}
	events = append(events, responsesapi.NewOutputTextDeltaEvent(t.textOutputIndex, delta))
	return events
}

func (t *Translator) handleToolCallDeltas(deltas []chatapi.ToolCallDelta) []responsesapi.Event {
	var events []responsesapi.Event

	for _, delta := range deltas {
		state, ok := t.toolCalls[delta.Index]
		if !ok {
			state = &toolCallState{index: delta.Index}
			t.toolCalls[delta.Index] = state
			t.toolOrder = append(t.toolOrder, delta.Index)
		}

		if delta.ID != "" {
			state.callID = delta.ID
		}

		if delta.Function.Name != "" {
			state.name = delta.Function.Name
			if state.externalType == "" {
				state.externalType = t.toolMap.FunctionToExternal[delta.Function.Name]
			}
		}

		if delta.Function.Arguments != "" {
			state.arguments += delta.Function.Arguments
			if !state.hasOutputIndex {
				state.pendingArgDeltas = append(state.pendingArgDeltas, delta.Function.Arguments)
			} else {
				item := &t.outputItems[state.outputIndex]
				item.Arguments = state.arguments
				events = append(events, responsesapi.NewFunctionCallArgumentsDeltaEvent(state.outputIndex, delta.Function.Arguments))
			}
		}

		events = append(events, t.maybeEmitToolCallItemAdded(state)...)
	}

	return events
}

func (t *Translator) maybeEmitToolCallItemAdded(state *toolCallState) []responsesapi.Event {
	if state.hasOutputIndex {
		return nil
	}
	if state.callID == "" || state.name == "" {
		return nil
	}

	itemType := "function_call"
	itemName := state.name
	if state.externalType != "" {
		itemType = state.externalType + "_call"
		itemName = state.externalType
	}

	item := responsesapi.OutputItem{
		ID:     ids.New("item"),
		Type:   itemType,
		CallID: state.callID,
		Name:   itemName,
	}
	outputIndex := len(t.outputItems)
	t.outputItems = append(t.outputItems, item)
	state.outputIndex = outputIndex
	state.hasOutputIndex = true

	events := []responsesapi.Event{responsesapi.NewOutputItemAddedEvent(outputIndex, item)}

	if len(state.pendingArgDeltas) > 0 {
		itemPtr := &t.outputItems[outputIndex]
		for _, delta := range state.pendingArgDeltas {
			itemPtr.Arguments = state.arguments
			events = append(events, responsesapi.NewFunctionCallArgumentsDeltaEvent(outputIndex, delta))
		}
		state.pendingArgDeltas = nil
	}

	return events
}

func (t *Translator) buildResponse() responsesapi.CreateResponse {
	return responsesapi.NewCreateResponse(t.responseID, t.createdAt, t.model, t.outputItems)
}

// Options bundles everything StreamResponsesEvents needs beyond the
// translator itself: the upstream collaborator, the request payload, and the
// per-process settings that govern retry/degrade behavior.
type Options struct {
	Client     *upstream.Client
	Settings   *config.Settings
	ChatPayload []byte
	Emit       func(responsesapi.Event) error
}

// StreamResponsesEvents drives one streamed turn: connect upstream, retry on
// retryable statuses and network errors, degrade-and-retry-once on a 4xx
// whose error message names a configured field (or on a non-SSE content
// type), and translate every chunk through translator. Once any event has
// reached the caller (the "started" latch), a later failure is emitted
// in-band as response.failed rather than retried, since the client has
// already observed part of the stream.
func StreamResponsesEvents(ctx context.Context, translator *Translator, opts Options, onComplete func(responsesapi.CreateResponse, *chatapi.Message)) error {
	payload := opts.ChatPayload
	started := false

	emit := func(ev responsesapi.Event) error {
		started = true
		return opts.Emit(ev)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Duration(opts.Settings.RetryBackoff * float64(time.Second))
	policy.MaxInterval = time.Duration(opts.Settings.RetryMaxSeconds * float64(time.Second))

	type streamOutcome struct {
		failed    bool
		errorBody map[string]any
	}

	outcome, err := backoff.Retry(ctx, func() (streamOutcome, error) {
		resp, err := opts.Client.ChatCompletions(ctx, payload)
		if err != nil {
			if started {
				return streamOutcome{}, backoff.Permanent(err)
			}
			return streamOutcome{}, err
		}
		defer resp.Body.Close()

		reader, err := upstream.DecompressBody(resp)
		if err != nil {
			if started {
				return streamOutcome{}, backoff.Permanent(err)
			}
			return streamOutcome{}, err
		}
		defer reader.Close()

		if upstream.RetryableStatus[resp.StatusCode] {
			io.Copy(io.Discard, reader)
			return streamOutcome{}, &upstream.RetryableError{StatusCode: resp.StatusCode}
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(reader)
			errorMessage := upstream.ExtractErrorMessage(body)
			if degraded, ok := upstream.ApplyDegradeFields(payload, opts.Settings.DegradeFields, errorMessage); ok {
				payload = degraded
				return streamOutcome{}, fmt.Errorf("upstream rejected payload, retrying degraded: %s", errorMessage)
			}
			return streamOutcome{failed: true, errorBody: map[string]any{"message": errorMessage, "type": "upstream_error"}}, nil
		}

		if upstream.ContentType(resp) != "text/event-stream" {
			body, _ := io.ReadAll(reader)
			errorMessage := upstream.ExtractErrorMessage(body)
			if degraded, ok := upstream.ApplyDegradeFields(payload, opts.Settings.DegradeFields, errorMessage); ok {
				payload = degraded
				return streamOutcome{}, fmt.Errorf("upstream did not return SSE, retrying degraded: %s", errorMessage)
			}
			return streamOutcome{failed: true, errorBody: map[string]any{"message": errorMessage, "type": "upstream_error"}}, nil
		}

		if !started {
			for _, ev := range translator.StartEvents() {
				if err := emit(ev); err != nil {
					return streamOutcome{}, backoff.Permanent(err)
				}
			}
		}

		if err := scanSSE(reader, func(chunk chatapi.StreamChunk) error {
			for _, ev := range translator.ProcessChunk(chunk) {
				if err := emit(ev); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return streamOutcome{}, backoff.Permanent(err)
		}

		return streamOutcome{}, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(opts.Settings.RetryMaxAttempts)))

	if err != nil {
		if !started {
			for _, ev := range translator.StartEvents() {
				if emitErr := opts.Emit(ev); emitErr != nil {
					return emitErr
				}
			}
		}
		return opts.Emit(translator.FailureEvent(map[string]any{"message": err.Error(), "type": "upstream_error"}))
	}

	if outcome.failed {
		return opts.Emit(translator.FailureEvent(outcome.errorBody))
	}

	for _, ev := range translator.FinishEvents() {
		if err := opts.Emit(ev); err != nil {
			return err
		}
	}

	if onComplete != nil {
		onComplete(translator.FinalResponse(), translator.AssistantMessage())
	}
	return nil
}

// scanSSE reads upstream's newline-delimited SSE frames, extracting each
// "data: " payload as one Chat-Completions stream chunk, the way the
// teacher's proxy handler manually scans SSE lines with bufio.Scanner.
func scanSSE(r io.Reader, handle func(chatapi.StreamChunk) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if bytes.HasPrefix(line, []byte(":")) {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if len(data) == 0 {
			continue
		}
		if string(data) == "[DONE]" {
			break
		}

		var chunk chatapi.StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		if err := handle(chunk); err != nil {
			return err
		}
	}
	return scanner.Err()
}
