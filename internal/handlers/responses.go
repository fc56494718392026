package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/NeapolitanIcecream/openbridge/internal/metrics"
	"github.com/NeapolitanIcecream/openbridge/internal/orchestrator"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
)

// ResponsesHandler serves the three §6 endpoints for the Responses API:
// create (streaming and non-streaming), get, and delete.
type ResponsesHandler struct {
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
}

func NewResponsesHandler(o *orchestrator.Orchestrator, logger *slog.Logger) *ResponsesHandler {
	return &ResponsesHandler{orchestrator: o, logger: logger}
}

func (h *ResponsesHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, responsesapi.NewErrorResponse("failed to read request body", responsesapi.ErrorTypeForStatus(http.StatusBadRequest)))
		return
	}

	var req responsesapi.CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, responsesapi.NewErrorResponse("invalid JSON body", responsesapi.ErrorTypeForStatus(http.StatusBadRequest)))
		return
	}

	if req.Stream {
		h.createStreaming(w, r, req)
		return
	}

	out, apiErr := h.orchestrator.CreateResponse(r.Context(), req)
	if apiErr != nil {
		h.writeError(w, apiErr.Status, apiErr.Body)
		return
	}

	h.writeJSON(w, http.StatusOK, out)
}

func (h *ResponsesHandler) createStreaming(w http.ResponseWriter, r *http.Request, req responsesapi.CreateRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, responsesapi.NewErrorResponse("streaming unsupported by this server", responsesapi.ErrorTypeForStatus(http.StatusInternalServerError)))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	apiErr := h.orchestrator.StreamResponse(r.Context(), req, func(ev responsesapi.Event) error {
		return writeSSEEvent(w, ev)
	})
	if apiErr != nil {
		failed := responsesapi.NewFailedEvent(responsesapi.CreateResponse{}, map[string]any{
			"message": apiErr.Body.Error.Message,
			"type":    apiErr.Body.Error.Type,
		})
		if err := writeSSEEvent(w, failed); err != nil {
			h.logger.Error("failed to write SSE error event", "error", err)
		}
	}
	flusher.Flush()
}

func writeSSEEvent(w http.ResponseWriter, ev responsesapi.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + ev.Name + "\n")); err != nil {
		return err
	}
	if _, err := w.Write(append([]byte("data: "), data...)); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (h *ResponsesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, responsesapi.NewErrorResponse("missing response id", responsesapi.ErrorTypeForStatus(http.StatusBadRequest)))
		return
	}

	out, apiErr := h.orchestrator.GetResponse(r.Context(), id)
	if apiErr != nil {
		h.writeError(w, apiErr.Status, apiErr.Body)
		return
	}

	h.writeJSON(w, http.StatusOK, out)
}

func (h *ResponsesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, responsesapi.NewErrorResponse("missing response id", responsesapi.ErrorTypeForStatus(http.StatusBadRequest)))
		return
	}

	if apiErr := h.orchestrator.DeleteResponse(r.Context(), id); apiErr != nil {
		h.writeError(w, apiErr.Status, apiErr.Body)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "response.deleted", "deleted": true})
}

func (h *ResponsesHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response body", "error", err)
	}
}

func (h *ResponsesHandler) writeError(w http.ResponseWriter, status int, body responsesapi.ErrorResponse) {
	h.writeJSON(w, status, body)
}
