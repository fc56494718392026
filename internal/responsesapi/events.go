package responsesapi

// Event is the envelope written over SSE as "event: <Name>\ndata: <json>\n\n".
// Data is one of the typed event payloads below, chosen by Name.
type Event struct {
	Name string
	Data any
}

type CreatedEvent struct {
	Type     string         `json:"type"`
	Response CreateResponse `json:"response"`
}

type OutputItemAddedEvent struct {
	Type        string     `json:"type"`
	OutputIndex int        `json:"output_index"`
	Item        OutputItem `json:"item"`
}

type OutputTextDeltaEvent struct {
	Type         string `json:"type"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

type OutputTextDoneEvent struct {
	Type         string `json:"type"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Text         string `json:"text"`
}

type FunctionCallArgumentsDeltaEvent struct {
	Type        string `json:"type"`
	OutputIndex int    `json:"output_index"`
	Delta       string `json:"delta"`
}

type FunctionCallArgumentsDoneEvent struct {
	Type        string `json:"type"`
	OutputIndex int    `json:"output_index"`
	Arguments   string `json:"arguments"`
}

type OutputItemDoneEvent struct {
	Type        string     `json:"type"`
	OutputIndex int        `json:"output_index"`
	Item        OutputItem `json:"item"`
}

type CompletedEvent struct {
	Type     string         `json:"type"`
	Response CreateResponse `json:"response"`
}

type FailedEvent struct {
	Type     string         `json:"type"`
	Response CreateResponse `json:"response"`
	Error    map[string]any `json:"error"`
}

const (
	EventCreated                  = "response.created"
	EventOutputItemAdded          = "response.output_item.added"
	EventOutputTextDelta          = "response.output_text.delta"
	EventOutputTextDone           = "response.output_text.done"
	EventFunctionCallArgsDelta    = "response.function_call_arguments.delta"
	EventFunctionCallArgsDone     = "response.function_call_arguments.done"
	EventOutputItemDone           = "response.output_item.done"
	EventCompleted                = "response.completed"
	EventFailed                   = "response.failed"
)

func NewCreatedEvent(r CreateResponse) Event {
	return Event{Name: EventCreated, Data: CreatedEvent{Type: EventCreated, Response: r}}
}

func NewOutputItemAddedEvent(outputIndex int, item OutputItem) Event {
	return Event{Name: EventOutputItemAdded, Data: OutputItemAddedEvent{Type: EventOutputItemAdded, OutputIndex: outputIndex, Item: item}}
}

func NewOutputTextDeltaEvent(outputIndex int, delta string) Event {
	return Event{Name: EventOutputTextDelta, Data: OutputTextDeltaEvent{Type: EventOutputTextDelta, OutputIndex: outputIndex, ContentIndex: 0, Delta: delta}}
}

func NewOutputTextDoneEvent(outputIndex int, text string) Event {
	return Event{Name: EventOutputTextDone, Data: OutputTextDoneEvent{Type: EventOutputTextDone, OutputIndex: outputIndex, ContentIndex: 0, Text: text}}
}

func NewFunctionCallArgumentsDeltaEvent(outputIndex int, delta string) Event {
	return Event{Name: EventFunctionCallArgsDelta, Data: FunctionCallArgumentsDeltaEvent{Type: EventFunctionCallArgsDelta, OutputIndex: outputIndex, Delta: delta}}
}

func NewFunctionCallArgumentsDoneEvent(outputIndex int, arguments string) Event {
	return Event{Name: EventFunctionCallArgsDone, Data: FunctionCallArgumentsDoneEvent{Type: EventFunctionCallArgsDone, OutputIndex: outputIndex, Arguments: arguments}}
}

func NewOutputItemDoneEvent(outputIndex int, item OutputItem) Event {
	return Event{Name: EventOutputItemDone, Data: OutputItemDoneEvent{Type: EventOutputItemDone, OutputIndex: outputIndex, Item: item}}
}

func NewCompletedEvent(r CreateResponse) Event {
	return Event{Name: EventCompleted, Data: CompletedEvent{Type: EventCompleted, Response: r}}
}

func NewFailedEvent(r CreateResponse, errPayload map[string]any) Event {
	return Event{Name: EventFailed, Data: FailedEvent{Type: EventFailed, Response: r, Error: errPayload}}
}
