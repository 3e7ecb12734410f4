/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api provides the HTTP API server for Pulse.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/pulse/pkg/gateway"
	pulseHttp "github.com/carverauto/pulse/pkg/http"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/query"
	"github.com/carverauto/pulse/pkg/stream"
	tqlmodels "github.com/carverauto/pulse/pkg/tql/models"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultTimeout      = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Ingester accepts a validated telemetry batch into a delivery path.
type Ingester interface {
	Ingest(ctx context.Context, topic string, records []models.RawRecord, reqCtx *models.RequestContext) (*gateway.Result, error)
}

// QueryEngine evaluates a parsed query expression.
type QueryEngine interface {
	Execute(ctx context.Context, q *tqlmodels.Query) (*query.Result, error)
}

// TelemetryReader serves the read-through proxy endpoints from the store.
type TelemetryReader interface {
	List(ctx context.Context, topic models.Topic, filters url.Values) ([]models.RawRecord, error)
	TraceSpans(ctx context.Context, traceID string) ([]models.Span, error)
}

// Broadcaster publishes a message to a broadcast channel. The distributor
// mirrors it across replicas when a broker is attached.
type Broadcaster interface {
	Broadcast(ch models.Channel, payload interface{})
}

// APIServer exposes the ingestion, query, and streaming endpoints.
type APIServer struct {
	router      *mux.Router
	corsConfig  pulseHttp.CORSConfig
	apiKey      string
	ingester    Ingester
	engine      QueryEngine
	reader      TelemetryReader
	hub         *stream.Hub
	broadcaster Broadcaster
	logger      logger.Logger
}

// NewAPIServer creates a new API server instance with the given configuration.
func NewAPIServer(corsConfig pulseHttp.CORSConfig, log logger.Logger, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:     mux.NewRouter(),
		corsConfig: corsConfig,
		logger:     log,
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithIngester attaches the ingestion gateway to the API server.
func WithIngester(g Ingester) func(server *APIServer) {
	return func(server *APIServer) {
		server.ingester = g
	}
}

// WithQueryEngine attaches a query engine to the API server.
func WithQueryEngine(e QueryEngine) func(server *APIServer) {
	return func(server *APIServer) {
		server.engine = e
	}
}

// WithTelemetryReader attaches the store-backed read proxy to the API server.
func WithTelemetryReader(r TelemetryReader) func(server *APIServer) {
	return func(server *APIServer) {
		server.reader = r
	}
}

// WithHub attaches the realtime distribution hub to the API server.
func WithHub(h *stream.Hub) func(server *APIServer) {
	return func(server *APIServer) {
		server.hub = h
	}
}

// WithBroadcaster attaches the broadcast distributor to the API server.
func WithBroadcaster(b Broadcaster) func(server *APIServer) {
	return func(server *APIServer) {
		server.broadcaster = b
	}
}

// WithAPIKey enables API-key authentication on the protected routes.
func WithAPIKey(key string) func(server *APIServer) {
	return func(server *APIServer) {
		server.apiKey = key
	}
}

func (s *APIServer) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return pulseHttp.CommonMiddleware(next, s.corsConfig, s.logger)
	})

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(pulseHttp.APIKeyMiddleware(s.apiKey, s.logger))

	api.HandleFunc("/telemetry/{topic}", s.handleIngest).Methods(http.MethodPost)
	api.HandleFunc("/telemetry/traces/{trace_id}", s.handleTraceSummary).Methods(http.MethodGet)
	api.HandleFunc("/telemetry/{topic}", s.handleTelemetryList).Methods(http.MethodGet)

	api.HandleFunc("/query", s.handleQuery).Methods(http.MethodGet)
	api.HandleFunc("/query_range", s.handleQueryRange).Methods(http.MethodGet)

	api.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/stream/connections", s.handleStreamConnections).Methods(http.MethodGet)
	api.HandleFunc("/stream/channels", s.handleStreamChannels).Methods(http.MethodGet)
	api.HandleFunc("/stream/broadcast", s.handleBroadcast).Methods(http.MethodPost)
	api.HandleFunc("/stream/broadcast/{channel}", s.handleBroadcastChannel).Methods(http.MethodPost)
	api.HandleFunc("/stream/sse/{channel}", s.handleSSE).Methods(http.MethodGet)
	api.HandleFunc("/stream/{channel}", s.handleStreamChannel).Methods(http.MethodGet)
}

// Router returns the configured route tree, mainly for tests.
func (s *APIServer) Router() *mux.Router {
	return s.router
}

// Start starts the API server on the specified address.
func (s *APIServer) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	return srv.ListenAndServe()
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":  "healthy",
		"service": "pulse",
	})
}

func (s *APIServer) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status": "ready",
	})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResponse := models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
