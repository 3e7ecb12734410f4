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
	"fmt"
	"net/http"
	"time"

	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/query"
	"github.com/carverauto/pulse/pkg/tql"
	tqlmodels "github.com/carverauto/pulse/pkg/tql/models"
)

const (
	resultTypeVector = "vector"
	resultTypeMatrix = "matrix"
)

// handleQuery evaluates an instant query. Parse failures are a 400;
// evaluation failures (a structurally valid query applied to an incompatible
// data type) come back as an error field in a 200 response.
func (s *APIServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("query")
	if expr == "" {
		s.writeQueryError(w, "Query parameter is required", http.StatusBadRequest)
		return
	}

	q, err := tql.Parse(expr)
	if err != nil {
		s.writeQueryError(w, fmt.Sprintf("Failed to parse query: %v", err), http.StatusBadRequest)
		return
	}

	s.executeQuery(w, r, q, resultTypeVector)
}

// handleQueryRange evaluates a query over an explicit window. When the
// expression carries no range selector, the window runs from the start
// parameter.
func (s *APIServer) handleQueryRange(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	expr := params.Get("query")
	if expr == "" {
		s.writeQueryError(w, "Query parameter is required", http.StatusBadRequest)
		return
	}

	startStr := params.Get("start")
	if startStr == "" {
		s.writeQueryError(w, "Start parameter is required", http.StatusBadRequest)
		return
	}

	start, err := parseQueryTime(startStr)
	if err != nil {
		s.writeQueryError(w, fmt.Sprintf("Invalid start time: %v", err), http.StatusBadRequest)
		return
	}

	if endStr := params.Get("end"); endStr != "" {
		if _, err := parseQueryTime(endStr); err != nil {
			s.writeQueryError(w, fmt.Sprintf("Invalid end time: %v", err), http.StatusBadRequest)
			return
		}
	}

	q, err := tql.Parse(expr)
	if err != nil {
		s.writeQueryError(w, fmt.Sprintf("Failed to parse query: %v", err), http.StatusBadRequest)
		return
	}

	if q.TimeRange == 0 && !start.IsZero() {
		q.TimeRange = time.Since(start)
	}

	s.executeQuery(w, r, q, resultTypeMatrix)
}

func (s *APIServer) executeQuery(w http.ResponseWriter, r *http.Request, q *tqlmodels.Query, resultType string) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	result, err := s.engine.Execute(ctx, q)
	if err != nil {
		s.writeQueryError(w, fmt.Sprintf("Failed to execute query: %v", err), http.StatusInternalServerError)
		return
	}

	if result.Error != "" {
		s.writeJSON(w, models.QueryEnvelope{
			Status: "error",
			Error:  result.Error,
		})

		return
	}

	s.writeJSON(w, models.QueryEnvelope{
		Status: "success",
		Data: &models.QueryData{
			ResultType: resultType,
			Result:     queryPayload(result),
		},
	})
}

// queryPayload shapes the result body: aggregates come back as a single
// value sample, selections as the projected record list.
func queryPayload(result *query.Result) interface{} {
	if result.Value != nil {
		return map[string]interface{}{
			"aggregate": result.Aggregate,
			"value":     *result.Value,
			"count":     result.Count,
		}
	}

	return result.Results
}

func (s *APIServer) writeQueryError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	s.writeQueryEnvelope(w, models.QueryEnvelope{
		Status: "error",
		Error:  message,
	})
}

func (s *APIServer) writeQueryEnvelope(w http.ResponseWriter, envelope models.QueryEnvelope) {
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode query response")
	}
}

// parseQueryTime accepts RFC3339 timestamps or Unix seconds.
func parseQueryTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	var unix float64
	if _, err := fmt.Sscanf(value, "%f", &unix); err == nil {
		sec := int64(unix)
		nsec := int64((unix - float64(sec)) * float64(time.Second))

		return time.Unix(sec, nsec).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
