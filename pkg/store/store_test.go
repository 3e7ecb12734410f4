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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&Config{BaseURL: srv.URL, APIKey: "test-key"}, logger.NewTestLogger())
}

func TestWriteMetricSendsAPIKey(t *testing.T) {
	var gotKey, gotPath string

	var gotMetric models.Metric

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMetric))
		w.WriteHeader(http.StatusCreated)
	})

	m := &models.Metric{Name: "cpu_usage", Value: 42.5, Source: "node-1", Timestamp: time.Now()}
	require.NoError(t, client.WriteMetric(context.Background(), m))

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "/api/metrics/", gotPath)
	assert.Equal(t, "cpu_usage", gotMetric.Name)
	assert.InDelta(t, 42.5, gotMetric.Value, 0.001)
}

func TestWriteLogSurfacesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := client.WriteLog(context.Background(), &models.LogEntry{Level: "info", Message: "hello", Source: "svc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestListForwardsFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/logs/", r.URL.Path)
		assert.Equal(t, "error", r.URL.Query().Get("level"))

		_ = json.NewEncoder(w).Encode([]models.RawRecord{{"level": "error", "message": "disk full"}})
	})

	records, err := client.List(context.Background(), models.TopicLogs, map[string][]string{"level": {"error"}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "disk full", records[0]["message"])
}

func TestAlertRulesQueriesActiveOnly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/alert-rules/", r.URL.Path)
		assert.Equal(t, "cpu_usage", r.URL.Query().Get("metric_name"))
		assert.Equal(t, "true", r.URL.Query().Get("is_active"))

		_ = json.NewEncoder(w).Encode([]models.AlertRule{
			{ID: "r1", Name: "high cpu", MetricName: "cpu_usage", Operator: "gt", Threshold: 90, IsActive: true},
		})
	})

	rules, err := client.AlertRules(context.Background(), "cpu_usage")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "gt", rules[0].Operator)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), errBaseURLRequired)

	cfg.BaseURL = "http://localhost:8000"
	assert.NoError(t, cfg.Validate())
}
