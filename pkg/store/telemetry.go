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

package store

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/carverauto/pulse/pkg/models"
)

// WriteMetric persists a single metric record.
func (c *Client) WriteMetric(ctx context.Context, m *models.Metric) error {
	return c.post(ctx, "/api/metrics/", m, nil)
}

// WriteLog persists a single log record.
func (c *Client) WriteLog(ctx context.Context, l *models.LogEntry) error {
	return c.post(ctx, "/api/logs/", l, nil)
}

// WriteEvent persists a single event record.
func (c *Client) WriteEvent(ctx context.Context, e *models.Event) error {
	return c.post(ctx, "/api/events/", e, nil)
}

// WriteSpan persists a single trace span.
func (c *Client) WriteSpan(ctx context.Context, s *models.Span) error {
	return c.post(ctx, "/api/traces/", s, nil)
}

// List fetches raw records of a topic with the caller's filters forwarded
// unmodified. Used by the read-through proxy endpoints.
func (c *Client) List(ctx context.Context, topic models.Topic, filters url.Values) ([]models.RawRecord, error) {
	var records []models.RawRecord

	if err := c.get(ctx, fmt.Sprintf("/api/%s/", topic), filters, &records); err != nil {
		return nil, err
	}

	return records, nil
}

// Records fetches raw records of a collection for query evaluation,
// optionally bounded to records at or after since.
func (c *Client) Records(ctx context.Context, collection string, since time.Time) ([]models.RawRecord, error) {
	params := url.Values{}
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339))
	}

	var records []models.RawRecord

	if err := c.get(ctx, fmt.Sprintf("/api/%s/", collection), params, &records); err != nil {
		return nil, err
	}

	return records, nil
}

// MetricSeries fetches the named metric's points at or after since, for
// anomaly detection.
func (c *Client) MetricSeries(ctx context.Context, name string, since time.Time) ([]models.Metric, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("since", since.UTC().Format(time.RFC3339))

	var metrics []models.Metric

	if err := c.get(ctx, "/api/metrics/", params, &metrics); err != nil {
		return nil, err
	}

	return metrics, nil
}

// TraceSpans fetches every span belonging to a trace.
func (c *Client) TraceSpans(ctx context.Context, traceID string) ([]models.Span, error) {
	params := url.Values{}
	params.Set("trace_id", traceID)

	var spans []models.Span

	if err := c.get(ctx, "/api/traces/", params, &spans); err != nil {
		return nil, err
	}

	return spans, nil
}
