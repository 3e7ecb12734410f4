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

// Package models defines the shared telemetry value types for the data plane.
package models

import "time"

// Topic identifies the telemetry kind a batch or subject pertains to.
type Topic string

const (
	TopicMetrics Topic = "metrics"
	TopicLogs    Topic = "logs"
	TopicTraces  Topic = "traces"
	TopicEvents  Topic = "events"
)

// ValidTopic reports whether s names a known ingestion topic.
func ValidTopic(s string) bool {
	switch Topic(s) {
	case TopicMetrics, TopicLogs, TopicTraces, TopicEvents:
		return true
	default:
		return false
	}
}

// Metric is a single numeric measurement (metrics pillar).
type Metric struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Value     float64                `json:"value"`
	Unit      string                 `json:"unit"`
	Source    string                 `json:"source"`
	Labels    map[string]string      `json:"labels"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// LogEntry is a single log record (logs pillar).
type LogEntry struct {
	ID        string                 `json:"id,omitempty"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Source    string                 `json:"source"`
	TraceID   string                 `json:"trace_id,omitempty"`
	SpanID    string                 `json:"span_id,omitempty"`
	Labels    map[string]string      `json:"labels"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Event is a discrete occurrence (events pillar).
type Event struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	EventType string                 `json:"event_type"`
	Severity  string                 `json:"severity"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Labels    map[string]string      `json:"labels"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Span is a single trace span (traces pillar).
type Span struct {
	ID           string                 `json:"id,omitempty"`
	TraceID      string                 `json:"trace_id"`
	SpanID       string                 `json:"span_id"`
	ParentSpanID string                 `json:"parent_span_id,omitempty"`
	Name         string                 `json:"name"`
	Source       string                 `json:"source"`
	Labels       map[string]string      `json:"labels"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	StartTime    time.Time              `json:"start_time"`
	EndTime      time.Time              `json:"end_time,omitempty"`
}

// RawRecord is the wire form of a telemetry record before normalization.
// The gateway validates required fields per topic; the batch processors fill
// defaults and convert to the typed models above.
type RawRecord map[string]interface{}

// RequestContext carries request-scoped enrichment attached at the gateway
// boundary. Orchestration identifiers, when present, are injected into each
// record's labels and metadata before handoff.
type RequestContext struct {
	RequestID string `json:"request_id,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Pod       string `json:"pod,omitempty"`
	Node      string `json:"node,omitempty"`
}

// IngestBatch is an ordered sequence of same-topic records plus enrichment
// context. It is created at the gateway boundary and consumed exactly once by
// the delivery path.
type IngestBatch struct {
	Topic   Topic           `json:"topic"`
	Records []RawRecord     `json:"records"`
	Context *RequestContext `json:"context,omitempty"`
}
