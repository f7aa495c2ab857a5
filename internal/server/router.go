// Package server wires the HTTP routes for the webhook gateway.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowgate-systems/flowgate/internal/handlers"
	"github.com/flowgate-systems/flowgate/internal/middleware"
)

// NewRouter builds the gateway's route table. Ingestion endpoints sit behind
// the auth middleware when a token secret is configured; health, readiness
// and metrics stay open.
func NewRouter(ingest *handlers.IngestHandler, auth *middleware.Auth) http.Handler {
	mux := http.NewServeMux()

	ingestMux := http.NewServeMux()
	ingestMux.HandleFunc("POST /api/v1/ingest/{tenant}/{dataCore}/{flowType}/{eventType}", ingest.HandleEvent)
	ingestMux.HandleFunc("POST /api/v1/ingest/{tenant}/{dataCore}/{flowType}/{eventType}/events", ingest.HandleBatch)

	var ingestHandler http.Handler = ingestMux
	if auth != nil && auth.Enabled() {
		ingestHandler = auth.Wrap(ingestHandler)
	}
	mux.Handle("/api/v1/ingest/", ingestHandler)

	mux.HandleFunc("GET /healthz", ingest.Health)
	mux.HandleFunc("GET /readyz", ingest.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
