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

package query

import (
	"context"
	"testing"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/tql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records    map[string][]models.RawRecord
	collection string
	since      time.Time
}

func (s *fakeStore) Records(_ context.Context, collection string, since time.Time) ([]models.RawRecord, error) {
	s.collection = collection
	s.since = since

	return s.records[collection], nil
}

func metricRecord(id, name string, value float64, ts time.Time) models.RawRecord {
	return models.RawRecord{
		"id":        id,
		"name":      name,
		"value":     value,
		"unit":      "percent",
		"source":    "node-1",
		"timestamp": ts.UTC().Format(time.RFC3339),
		"internal":  "secret",
	}
}

func newEngine(records map[string][]models.RawRecord) (*Engine, *fakeStore) {
	store := &fakeStore{records: records}
	return NewEngine(store, logger.NewTestLogger()), store
}

func execute(t *testing.T, e *Engine, queryStr string) *Result {
	t.Helper()

	q, err := tql.Parse(queryStr)
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), q)
	require.NoError(t, err)

	return result
}

func TestExecuteAverageOverWindow(t *testing.T) {
	now := time.Now().UTC()
	e, _ := newEngine(map[string][]models.RawRecord{
		"metrics": {
			metricRecord("m1", "cpu_usage", 10, now.Add(-4*time.Minute)),
			metricRecord("m2", "cpu_usage", 12, now.Add(-2*time.Minute)),
			metricRecord("m3", "cpu_usage", 95, now.Add(-1*time.Minute)),
		},
	})

	result := execute(t, e, `avg(metrics{name="cpu_usage"})[5m]`)

	assert.Equal(t, "metrics", result.DataType)
	assert.Equal(t, "avg", result.Aggregate)
	require.NotNil(t, result.Value)
	assert.InDelta(t, 39.0, *result.Value, 0.01)
}

func TestExecuteTimeRangeExcludesOldPoints(t *testing.T) {
	now := time.Now().UTC()
	e, _ := newEngine(map[string][]models.RawRecord{
		"metrics": {
			metricRecord("m1", "cpu_usage", 10, now.Add(-2*time.Hour)),
			metricRecord("m2", "cpu_usage", 20, now.Add(-1*time.Minute)),
		},
	})

	result := execute(t, e, `count(metrics{name="cpu_usage"})[5m]`)

	require.NotNil(t, result.Value)
	assert.InDelta(t, 1.0, *result.Value, 0.001)
}

func TestExecuteRate(t *testing.T) {
	now := time.Now().UTC()

	records := make([]models.RawRecord, 0, 60)
	for i := 0; i < 60; i++ {
		records = append(records, metricRecord("m", "requests_total", 1, now.Add(-time.Duration(i)*time.Second)))
	}

	e, _ := newEngine(map[string][]models.RawRecord{"metrics": records})

	result := execute(t, e, `rate(metrics{name="requests_total"})[1m]`)

	require.NotNil(t, result.Value)
	assert.InDelta(t, 1.0, *result.Value, 0.1)
}

func TestExecuteIncreaseCountsSamplesInWindow(t *testing.T) {
	now := time.Now().UTC()

	records := make([]models.RawRecord, 0, 30)
	for i := 0; i < 30; i++ {
		records = append(records, metricRecord("m", "requests_total", 1, now.Add(-time.Duration(i)*time.Second)))
	}

	e, _ := newEngine(map[string][]models.RawRecord{"metrics": records})

	result := execute(t, e, `increase(metrics{name="requests_total"})[1m]`)

	require.NotNil(t, result.Value)
	assert.InDelta(t, 30.0, *result.Value, 0.001)
	assert.Equal(t, "increase", result.Aggregate)
}

func TestExecuteRateWithoutRangeUsesOneSecond(t *testing.T) {
	now := time.Now().UTC()
	e, _ := newEngine(map[string][]models.RawRecord{
		"metrics": {
			metricRecord("m1", "requests_total", 1, now),
			metricRecord("m2", "requests_total", 1, now),
		},
	})

	result := execute(t, e, `rate(metrics{name="requests_total"})`)

	require.NotNil(t, result.Value)
	assert.InDelta(t, 2.0, *result.Value, 0.001)
}

func TestExecuteNumericAggregateOnLogsIsEvaluationError(t *testing.T) {
	e, _ := newEngine(map[string][]models.RawRecord{
		"logs": {{"id": "l1", "level": "error", "message": "x", "timestamp": time.Now().UTC().Format(time.RFC3339)}},
	})

	result := execute(t, e, `avg(logs{level="error"})`)

	assert.NotEmpty(t, result.Error, "numeric aggregate over logs must surface an evaluation error")
	assert.Nil(t, result.Value)
}

func TestExecuteProjectionWhitelist(t *testing.T) {
	now := time.Now().UTC()
	e, _ := newEngine(map[string][]models.RawRecord{
		"metrics": {metricRecord("m1", "cpu_usage", 10, now)},
	})

	result := execute(t, e, `metrics{name="cpu_usage"}`)

	require.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0], "name")
	assert.Contains(t, result.Results[0], "value")
	assert.NotContains(t, result.Results[0], "internal", "projection must not leak internal fields")
}

func TestExecuteRegexMatcher(t *testing.T) {
	now := time.Now().UTC().Format(time.RFC3339)
	e, _ := newEngine(map[string][]models.RawRecord{
		"logs": {
			{"id": "l1", "level": "error", "message": "a", "source": "web-01", "timestamp": now},
			{"id": "l2", "level": "error", "message": "b", "source": "db-01", "timestamp": now},
		},
	})

	result := execute(t, e, `logs{source=~"web-.*"}`)

	require.Equal(t, 1, result.Count)
	assert.Equal(t, "l1", result.Results[0]["id"])
}

func TestExecuteBadRegexIsEvaluationError(t *testing.T) {
	e, _ := newEngine(map[string][]models.RawRecord{
		"logs": {{"id": "l1", "source": "web", "timestamp": time.Now().UTC().Format(time.RFC3339)}},
	})

	result := execute(t, e, `logs{source=~"["}`)

	assert.NotEmpty(t, result.Error)
}

func TestExecuteNumericComparisonMatcher(t *testing.T) {
	now := time.Now().UTC()
	e, _ := newEngine(map[string][]models.RawRecord{
		"metrics": {
			metricRecord("m1", "cpu_usage", 95, now),
			metricRecord("m2", "cpu_usage", 42, now),
		},
	})

	result := execute(t, e, `metrics{name="cpu_usage", value>="90"}`)

	require.Equal(t, 1, result.Count)
	assert.Equal(t, "m1", result.Results[0]["id"])
}

func TestExecuteOrdersByRecencyAndCapsLimit(t *testing.T) {
	now := time.Now().UTC()
	e, _ := newEngine(map[string][]models.RawRecord{
		"metrics": {
			metricRecord("old", "cpu_usage", 1, now.Add(-10*time.Minute)),
			metricRecord("new", "cpu_usage", 2, now),
			metricRecord("mid", "cpu_usage", 3, now.Add(-5*time.Minute)),
		},
	})

	q, err := tql.Parse(`metrics{name="cpu_usage"}`)
	require.NoError(t, err)

	q.Limit = 2

	result, err := e.Execute(context.Background(), q)
	require.NoError(t, err)

	require.Equal(t, 2, result.Count)
	assert.Equal(t, "new", result.Results[0]["id"])
	assert.Equal(t, "mid", result.Results[1]["id"])
}

func TestExecuteSpansUseTracesCollection(t *testing.T) {
	e, store := newEngine(map[string][]models.RawRecord{
		"traces": {{"id": "s1", "trace_id": "t1", "span_id": "s1", "start_time": time.Now().UTC().Format(time.RFC3339)}},
	})

	result := execute(t, e, `spans{trace_id="t1"}`)

	assert.Equal(t, "traces", store.collection)
	assert.Equal(t, 1, result.Count)
}
