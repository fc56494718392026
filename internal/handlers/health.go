package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthHandler answers liveness probes with 200 and {"status":"ok"}, never
// touching the upstream or the state store.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
