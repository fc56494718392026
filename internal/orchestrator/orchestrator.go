// Package orchestrator implements the Request Orchestrator (§4.H): the
// state-aware sequencing (client auth has already run in middleware) that ties the translator, tool
// registry, upstream caller, and streaming bridge into the two POST
// /v1/responses dispatch paths, plus GET/DELETE by response_id.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/config"
	"github.com/NeapolitanIcecream/openbridge/internal/ids"
	"github.com/NeapolitanIcecream/openbridge/internal/metrics"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
	"github.com/NeapolitanIcecream/openbridge/internal/state"
	"github.com/NeapolitanIcecream/openbridge/internal/streaming"
	"github.com/NeapolitanIcecream/openbridge/internal/tools"
	"github.com/NeapolitanIcecream/openbridge/internal/translate"
	"github.com/NeapolitanIcecream/openbridge/internal/upstream"
)

// APIError carries both the HTTP status a handler should write and the
// OpenAI-shaped error envelope that goes with it.
type APIError struct {
	Status int
	Body   responsesapi.ErrorResponse

	// degradable marks an error that came from a genuine upstream response
	// body (as opposed to a network or decode failure), the only kind
	// worth retrying with a field stripped from the payload.
	degradable bool
}

func (e *APIError) Error() string { return e.Body.Error.Message }

func newAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Body: responsesapi.NewErrorResponse(message, responsesapi.ErrorTypeForStatus(status))}
}

// Orchestrator holds the collaborators a request needs: the upstream HTTP
// client, resolved settings, the tool registry, and the state store (nil
// when STATE_BACKEND=disabled).
type Orchestrator struct {
	Client   *upstream.Client
	Settings *config.Settings
	Registry *tools.Registry
	Store    state.Store
	Logger   *slog.Logger
}

// New builds an Orchestrator from its collaborators.
func New(client *upstream.Client, settings *config.Settings, registry *tools.Registry, store state.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{Client: client, Settings: settings, Registry: registry, Store: store, Logger: logger}
}

// prepared is the shared outcome of history loading and request
// translation, consumed by both the buffered and streaming dispatch paths.
type prepared struct {
	translation translate.Result
	responseID  string
	createdAt   int64
	payload     []byte
}

func (o *Orchestrator) prepare(ctx context.Context, req responsesapi.CreateRequest) (*prepared, *APIError) {
	var history []chatapi.Message
	if req.PreviousResponseID != "" {
		if o.Store == nil {
			return nil, newAPIError(http.StatusNotImplemented, "state store is disabled")
		}
		stored, err := o.Store.Get(ctx, req.PreviousResponseID)
		if err != nil {
			return nil, newAPIError(http.StatusBadGateway, err.Error())
		}
		if stored == nil {
			return nil, newAPIError(http.StatusNotFound, "previous_response_id not found")
		}
		history = stored.Messages
	}

	translation, err := translate.TranslateRequest(o.Settings, req, o.Registry, history)
	if err != nil {
		return nil, newAPIError(http.StatusBadRequest, err.Error())
	}

	payload, err := json.Marshal(translation.ChatRequest)
	if err != nil {
		return nil, newAPIError(http.StatusInternalServerError, "failed to encode upstream request")
	}

	o.logInputTokens(req)

	return &prepared{
		translation: translation,
		responseID:  ids.New("resp"),
		createdAt:   ids.Now(),
		payload:     payload,
	}, nil
}

// logInputTokens is a best-effort operational signal only, never consulted
// for routing or translation decisions.
func (o *Orchestrator) logInputTokens(req responsesapi.CreateRequest) {
	if o.Logger == nil {
		return
	}
	text, ok := req.InputAsString()
	if !ok {
		return
	}
	tke, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		o.Logger.Debug("failed to get tiktoken encoding", "error", err)
		return
	}
	o.Logger.Debug("estimated input tokens", "count", len(tke.Encode(text, nil, nil)))
}

// CreateResponse runs the buffered (non-streaming) dispatch path: translate,
// call upstream with degrade-retry, retry once on an empty completion, then
// persist.
func (o *Orchestrator) CreateResponse(ctx context.Context, req responsesapi.CreateRequest) (responsesapi.CreateResponse, *APIError) {
	p, apiErr := o.prepare(ctx, req)
	if apiErr != nil {
		return responsesapi.CreateResponse{}, apiErr
	}

	chatResp, apiErr := o.callUpstreamWithDegrade(ctx, p.payload)
	if apiErr != nil {
		return responsesapi.CreateResponse{}, apiErr
	}

	out := translate.ChatResponseToResponses(chatResp, p.translation.ToolMap, p.responseID)
	out.CreatedAt = p.createdAt

	if len(out.Output) == 0 && (req.MaxOutputTokens == nil || *req.MaxOutputTokens > 0) {
		o.Logger.Warn("upstream returned empty output, retrying once", "response_id", p.responseID)
		metrics.EmptyCompletionRetriesTotal.Inc()
		chatResp2, apiErr2 := o.callUpstreamWithDegrade(ctx, p.payload)
		if apiErr2 != nil {
			return responsesapi.CreateResponse{}, apiErr2
		}
		out2 := translate.ChatResponseToResponses(chatResp2, p.translation.ToolMap, p.responseID)
		out2.CreatedAt = p.createdAt
		if len(out2.Output) == 0 {
			return responsesapi.CreateResponse{}, newAPIError(http.StatusBadGateway, "upstream returned empty completion")
		}
		chatResp, out = chatResp2, out2
	}

	var assistant *chatapi.Message
	if len(chatResp.Choices) > 0 {
		assistant = chatResp.Choices[0].Message
	}
	o.persist(ctx, req, p, out, assistant)

	return out, nil
}

// StreamResponse runs the SSE dispatch path, emitting each translated event
// via emit and persisting state once the stream completes.
func (o *Orchestrator) StreamResponse(ctx context.Context, req responsesapi.CreateRequest, emit func(responsesapi.Event) error) *APIError {
	p, apiErr := o.prepare(ctx, req)
	if apiErr != nil {
		return apiErr
	}

	translator := streaming.NewTranslator(p.responseID, p.translation.ChatRequest.Model, p.createdAt, p.translation.ToolMap)

	err := streaming.StreamResponsesEvents(ctx, translator, streaming.Options{
		Client:      o.Client,
		Settings:    o.Settings,
		ChatPayload: p.payload,
		Emit:        emit,
	}, func(final responsesapi.CreateResponse, assistant *chatapi.Message) {
		o.persist(ctx, req, p, final, assistant)
	})
	if err != nil {
		return newAPIError(http.StatusInternalServerError, err.Error())
	}
	return nil
}

// GetResponse looks up a previously stored response by id.
func (o *Orchestrator) GetResponse(ctx context.Context, responseID string) (responsesapi.CreateResponse, *APIError) {
	if o.Store == nil {
		return responsesapi.CreateResponse{}, newAPIError(http.StatusNotImplemented, "state store is disabled")
	}
	stored, err := o.Store.Get(ctx, responseID)
	if err != nil {
		return responsesapi.CreateResponse{}, newAPIError(http.StatusBadGateway, err.Error())
	}
	if stored == nil {
		return responsesapi.CreateResponse{}, newAPIError(http.StatusNotFound, "response_id not found")
	}
	return stored.Response, nil
}

// DeleteResponse evicts a stored response by id. Deleting an id that was
// never stored, or has already expired, is a 404.
func (o *Orchestrator) DeleteResponse(ctx context.Context, responseID string) *APIError {
	if o.Store == nil {
		return newAPIError(http.StatusNotImplemented, "state store is disabled")
	}
	stored, err := o.Store.Get(ctx, responseID)
	if err != nil {
		return newAPIError(http.StatusBadGateway, err.Error())
	}
	if stored == nil {
		return newAPIError(http.StatusNotFound, "response_id not found")
	}
	if err := o.Store.Delete(ctx, responseID); err != nil {
		return newAPIError(http.StatusBadGateway, err.Error())
	}
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, req responsesapi.CreateRequest, p *prepared, final responsesapi.CreateResponse, assistant *chatapi.Message) {
	if o.Store == nil || !req.StoreOrDefault() {
		return
	}

	messages := make([]chatapi.Message, len(p.translation.MessagesForState), len(p.translation.MessagesForState)+1)
	copy(messages, p.translation.MessagesForState)
	if assistant != nil {
		messages = append(messages, *assistant)
	}

	record := state.StoredResponse{
		Response:           final,
		Messages:           messages,
		FunctionToExternal: p.translation.ToolMap.FunctionToExternal,
		Model:              p.translation.ChatRequest.Model,
	}

	ttl := time.Duration(o.Settings.MemoryTTLSeconds) * time.Second
	if err := o.Store.Set(ctx, p.responseID, record, ttl); err != nil {
		o.Logger.Error("failed to persist response state", "response_id", p.responseID, "error", err)
	}
}

// callUpstreamWithDegrade calls upstream once, and if it comes back with a
// genuine upstream-side error whose message names one of the degrade
// fields, strips that field and retries exactly once more.
func (o *Orchestrator) callUpstreamWithDegrade(ctx context.Context, payload []byte) (chatapi.CompletionResponse, *APIError) {
	resp, apiErr := o.callUpstreamOnce(ctx, payload)
	if apiErr == nil {
		return resp, nil
	}
	if !apiErr.degradable {
		return chatapi.CompletionResponse{}, apiErr
	}
	degraded, ok := upstream.ApplyDegradeFields(payload, o.Settings.DegradeFields, apiErr.Body.Error.Message)
	if !ok {
		return chatapi.CompletionResponse{}, apiErr
	}
	metrics.DegradedRequestsTotal.Inc()
	return o.callUpstreamOnce(ctx, degraded)
}

func (o *Orchestrator) callUpstreamOnce(ctx context.Context, payload []byte) (chatapi.CompletionResponse, *APIError) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.UpstreamRequestsTotal.WithLabelValues(status).Inc()
		metrics.UpstreamRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	resp, err := upstream.CallWithRetry(ctx, o.Client, payload, o.Settings)
	if err != nil {
		return chatapi.CompletionResponse{}, &APIError{Status: http.StatusBadGateway, Body: responsesapi.NewErrorResponse(err.Error(), responsesapi.ErrorTypeForStatus(http.StatusBadGateway))}
	}
	defer resp.Body.Close()

	reader, err := upstream.DecompressBody(resp)
	if err != nil {
		return chatapi.CompletionResponse{}, &APIError{Status: http.StatusBadGateway, Body: responsesapi.NewErrorResponse(err.Error(), responsesapi.ErrorTypeForStatus(http.StatusBadGateway))}
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return chatapi.CompletionResponse{}, &APIError{Status: http.StatusBadGateway, Body: responsesapi.NewErrorResponse(err.Error(), responsesapi.ErrorTypeForStatus(http.StatusBadGateway))}
	}

	if resp.StatusCode >= 400 {
		status = fmt.Sprintf("%d", resp.StatusCode)
		message := upstream.ExtractErrorMessage(body)
		errType, param, code := errorDetailFromBody(body)
		return chatapi.CompletionResponse{}, &APIError{
			Status: resp.StatusCode,
			Body:   responsesapi.ErrorResponse{Error: responsesapi.ErrorDetail{Message: message, Type: errType, Param: param, Code: code}, Detail: message},
			degradable: true,
		}
	}

	var chatResp chatapi.CompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return chatapi.CompletionResponse{}, &APIError{Status: http.StatusBadGateway, Body: responsesapi.NewErrorResponse("failed to decode upstream response", responsesapi.ErrorTypeForStatus(http.StatusBadGateway))}
	}
	status = "200"
	return chatResp, nil
}

func errorDetailFromBody(body []byte) (errType string, param, code *string) {
	errType = "invalid_request_error"
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return errType, nil, nil
	}
	errObj, ok := data["error"].(map[string]any)
	if !ok {
		return errType, nil, nil
	}
	if t, ok := errObj["type"].(string); ok && t != "" {
		errType = t
	}
	if p, ok := errObj["param"].(string); ok && p != "" {
		param = &p
	}
	if c, ok := errObj["code"].(string); ok && c != "" {
		code = &c
	}
	return errType, param, code
}
