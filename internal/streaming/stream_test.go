package streaming_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/config"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
	"github.com/NeapolitanIcecream/openbridge/internal/streaming"
	"github.com/NeapolitanIcecream/openbridge/internal/tools"
	"github.com/NeapolitanIcecream/openbridge/internal/upstream"
)

func streamSettings() *config.Settings {
	return &config.Settings{
		UpstreamAPIKey:   "key",
		RetryMaxAttempts: 3,
		RetryBackoff:     0.001,
		RetryMaxSeconds:  0.01,
		DegradeFields:    []string{"verbosity"},
	}
}

func TestStreamResponsesEventsHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":"hi"}}]}`+"\n\n")
		flusher.Flush()
		io.WriteString(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	s := streamSettings()
	s.UpstreamBaseURL = server.URL
	client := upstream.NewClient(s)
	translator := streaming.NewTranslator("resp_1", "gpt-4o", 1000, tools.Virtualization{})

	var events []responsesapi.Event
	var completedResponse responsesapi.CreateResponse
	completed := false

	err := streaming.StreamResponsesEvents(context.Background(), translator, streaming.Options{
		Client:      client,
		Settings:    s,
		ChatPayload: []byte(`{"model":"gpt-4o"}`),
		Emit: func(ev responsesapi.Event) error {
			events = append(events, ev)
			return nil
		},
	}, func(r responsesapi.CreateResponse, m *chatapi.Message) {
		completed = true
		completedResponse = r
	})
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, "resp_1", completedResponse.ID)

	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	assert.Contains(t, names, responsesapi.EventCreated)
	assert.Contains(t, names, responsesapi.EventCompleted)
}

func TestStreamResponsesEventsDegradesAndRetries(t *testing.T) {
	attempt := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		if _, hasVerbosity := payload["verbosity"]; hasVerbosity {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"message":"unsupported field verbosity"}}`)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		io.WriteString(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	s := streamSettings()
	s.UpstreamBaseURL = server.URL
	client := upstream.NewClient(s)
	translator := streaming.NewTranslator("resp_1", "gpt-4o", 1000, tools.Virtualization{})

	var events []responsesapi.Event
	err := streaming.StreamResponsesEvents(context.Background(), translator, streaming.Options{
		Client:      client,
		Settings:    s,
		ChatPayload: []byte(`{"model":"gpt-4o","verbosity":"high"}`),
		Emit: func(ev responsesapi.Event) error {
			events = append(events, ev)
			return nil
		},
	}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, attempt, 2)

	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	assert.Contains(t, names, responsesapi.EventCompleted)
}

func TestStreamResponsesEventsFailsInBandAfterStarted(t *testing.T) {
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":"partial"}}]}`+"\n\n")
		flusher.Flush()
		// malformed chunk after the stream has already started emitting
		// events: must surface as an in-band failure, never a retry.
		io.WriteString(w, "data: {not valid json\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	s := streamSettings()
	s.UpstreamBaseURL = server.URL
	client := upstream.NewClient(s)
	translator := streaming.NewTranslator("resp_1", "gpt-4o", 1000, tools.Virtualization{})

	var events []responsesapi.Event
	err := streaming.StreamResponsesEvents(context.Background(), translator, streaming.Options{
		Client:      client,
		Settings:    s,
		ChatPayload: []byte(`{"model":"gpt-4o"}`),
		Emit: func(ev responsesapi.Event) error {
			events = append(events, ev)
			return nil
		},
	}, nil)
	require.NoError(t, err)

	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	assert.Equal(t, responsesapi.EventCreated, names[0])
	assert.Contains(t, names, responsesapi.EventFailed)
	assert.NotContains(t, names, responsesapi.EventCompleted)
	assert.Equal(t, 1, call)
}
