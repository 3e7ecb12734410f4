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

package models

// ErrorResponse is the JSON body for error statuses.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// IngestResponse acknowledges batch acceptance. A 202 means the batch entered
// a delivery path, not that it has been persisted.
type IngestResponse struct {
	Status    string       `json:"status"`
	Ingestion DeliveryPath `json:"ingestion"`
	Count     int          `json:"count"`
	Rejected  int          `json:"rejected,omitempty"`
}

// QueryEnvelope is the response wrapper for /query and /query_range.
type QueryEnvelope struct {
	Status string     `json:"status"`
	Data   *QueryData `json:"data,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// QueryData carries the evaluated result of a query expression.
type QueryData struct {
	ResultType string      `json:"resultType"`
	Result     interface{} `json:"result"`
}

// TraceSummary is the reassembled view of one trace's spans.
type TraceSummary struct {
	TraceID   string `json:"trace_id"`
	SpanCount int    `json:"span_count"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}
