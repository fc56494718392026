package server

import (
	"net/http"

	"github.com/NeapolitanIcecream/openbridge/internal/handlers"
	"github.com/NeapolitanIcecream/openbridge/internal/middleware"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	responsesHandler := handlers.NewResponsesHandler(s.orchestrator, s.logger)
	healthHandler := handlers.NewHealthHandler()
	versionHandler := handlers.NewVersionHandler(appVersion)
	metricsHandler := handlers.NewMetricsHandler()

	middlewareSet := middleware.NewMiddlewareSet(s.config, s.logger)
	authed := middlewareSet.DefaultChain()
	public := middlewareSet.PublicChain()

	mux.Handle("POST /v1/responses", authed.Handler(http.HandlerFunc(responsesHandler.Create)))
	mux.Handle("GET /v1/responses/{id}", authed.Handler(http.HandlerFunc(responsesHandler.Get)))
	mux.Handle("DELETE /v1/responses/{id}", authed.Handler(http.HandlerFunc(responsesHandler.Delete)))

	mux.Handle("GET /healthz", public.Handler(healthHandler))
	mux.Handle("GET /version", public.Handler(versionHandler))
	mux.Handle("GET /metrics", public.Handler(metricsHandler))

	return mux
}
