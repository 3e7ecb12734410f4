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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carverauto/pulse/pkg/gateway"
	"github.com/carverauto/pulse/pkg/models"
)

// handleIngest accepts a JSON array of topic-typed records and hands it to
// the dual-path delivery pipeline. A 202 acknowledges handoff, not
// persistence.
func (s *APIServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	var records []models.RawRecord

	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeError(w, "Invalid request body: expected a JSON array of records", http.StatusBadRequest)
		return
	}

	reqCtx := requestContextFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	result, err := s.ingester.Ingest(ctx, topic, records, reqCtx)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrUnknownTopic):
			writeError(w, fmt.Sprintf("Unknown topic: %s", topic), http.StatusNotFound)
		case errors.Is(err, gateway.ErrEmptyBatch):
			writeError(w, "Batch must contain at least one record", http.StatusBadRequest)
		case errors.Is(err, gateway.ErrNoValidRecords):
			writeError(w, "No valid records in batch", http.StatusBadRequest)
		default:
			writeError(w, fmt.Sprintf("Ingestion failed: %v", err), http.StatusInternalServerError)
		}

		return
	}

	if !result.Outcome.Accepted {
		s.logger.Error().
			Str("topic", topic).
			Str("reason", result.Outcome.Reason).
			Msg("Both delivery paths failed")

		writeError(w, fmt.Sprintf("Delivery failed: %s", result.Outcome.Reason), http.StatusServiceUnavailable)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	resp := models.IngestResponse{
		Status:    "accepted",
		Ingestion: result.Outcome.Path,
		Count:     result.Accepted,
		Rejected:  result.Rejected,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode ingest response")
	}
}

// requestContextFrom collects the enrichment identifiers the gateway injects
// into each record.
func requestContextFrom(r *http.Request) *models.RequestContext {
	return &models.RequestContext{
		RequestID: r.Header.Get("X-Request-ID"),
		Namespace: r.Header.Get("X-Namespace"),
		Pod:       r.Header.Get("X-Pod-Name"),
		Node:      r.Header.Get("X-Node-Name"),
	}
}
