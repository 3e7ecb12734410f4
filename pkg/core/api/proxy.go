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
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/pulse/pkg/models"
)

// handleTelemetryList proxies a filtered read to the external store. Query
// parameters pass through as store filters.
func (s *APIServer) handleTelemetryList(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	if !models.ValidTopic(topic) {
		writeError(w, fmt.Sprintf("Unknown topic: %s", topic), http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	records, err := s.reader.List(ctx, models.Topic(topic), r.URL.Query())
	if err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("Store read failed")
		writeError(w, "Store unavailable", http.StatusBadGateway)

		return
	}

	s.writeJSON(w, map[string]interface{}{
		topic:   records,
		"count": len(records),
	})
}

// handleTraceSummary reassembles one trace from its spans.
func (s *APIServer) handleTraceSummary(w http.ResponseWriter, r *http.Request) {
	traceID := mux.Vars(r)["trace_id"]

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	spans, err := s.reader.TraceSpans(ctx, traceID)
	if err != nil {
		s.logger.Error().Err(err).Str("trace_id", traceID).Msg("Store read failed")
		writeError(w, "Store unavailable", http.StatusBadGateway)

		return
	}

	if len(spans) == 0 {
		writeError(w, fmt.Sprintf("Trace not found: %s", traceID), http.StatusNotFound)
		return
	}

	summary := summarizeTrace(traceID, spans)

	s.writeJSON(w, map[string]interface{}{
		"trace": summary,
		"spans": spans,
	})
}

// summarizeTrace derives the trace envelope from its spans: earliest start,
// latest end, span count.
func summarizeTrace(traceID string, spans []models.Span) models.TraceSummary {
	var start, end time.Time

	for _, sp := range spans {
		if start.IsZero() || (!sp.StartTime.IsZero() && sp.StartTime.Before(start)) {
			start = sp.StartTime
		}

		if sp.EndTime.After(end) {
			end = sp.EndTime
		}
	}

	summary := models.TraceSummary{
		TraceID:   traceID,
		SpanCount: len(spans),
	}

	if !start.IsZero() {
		summary.Start = start.UTC().Format(time.RFC3339Nano)
	}

	if !end.IsZero() {
		summary.End = end.UTC().Format(time.RFC3339Nano)
	}

	return summary
}
