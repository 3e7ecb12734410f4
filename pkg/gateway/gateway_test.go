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

package gateway

import (
	"context"
	"testing"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureDeliverer struct {
	batch   *models.IngestBatch
	outcome *models.DeliveryOutcome
}

func (d *captureDeliverer) Deliver(_ context.Context, batch *models.IngestBatch) *models.DeliveryOutcome {
	d.batch = batch

	if d.outcome != nil {
		return d.outcome
	}

	return &models.DeliveryOutcome{Accepted: true, Path: models.PathBroker}
}

func newGateway(d Deliverer) *Gateway {
	return NewGateway(d, logger.NewTestLogger())
}

func TestIngestRejectsUnknownTopic(t *testing.T) {
	g := newGateway(&captureDeliverer{})

	_, err := g.Ingest(context.Background(), "spans", []models.RawRecord{{"name": "x"}}, nil)
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	g := newGateway(&captureDeliverer{})

	_, err := g.Ingest(context.Background(), "metrics", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestIngestDropsMalformedRecordsOnly(t *testing.T) {
	d := &captureDeliverer{}
	g := newGateway(d)

	records := []models.RawRecord{
		{"name": "cpu_usage", "value": 42.0, "source": "node-1"},
		{"name": "cpu_usage", "source": "node-1"},          // missing value
		{"value": 10.0, "source": "node-1"},                // missing name
		{"name": "mem_usage", "value": 7, "source": "n-2"}, // integer value is fine
	}

	res, err := g.Ingest(context.Background(), "metrics", records, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 2, res.Rejected)
	require.NotNil(t, d.batch)
	assert.Len(t, d.batch.Records, 2)
}

func TestIngestAllRecordsInvalid(t *testing.T) {
	g := newGateway(&captureDeliverer{})

	records := []models.RawRecord{{"name": "cpu_usage"}} // no source, no value

	res, err := g.Ingest(context.Background(), "metrics", records, nil)
	require.ErrorIs(t, err, ErrNoValidRecords)
	assert.Equal(t, 1, res.Rejected)
}

func TestIngestInjectsOrchestrationContext(t *testing.T) {
	d := &captureDeliverer{}
	g := newGateway(d)

	records := []models.RawRecord{
		{"message": "started", "source": "svc", "labels": map[string]interface{}{"app": "web"}},
	}
	reqCtx := &models.RequestContext{Namespace: "prod", Pod: "web-0", Node: "n-1"}

	_, err := g.Ingest(context.Background(), "logs", records, reqCtx)
	require.NoError(t, err)

	labels, ok := d.batch.Records[0]["labels"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "prod", labels["namespace"])
	assert.Equal(t, "web-0", labels["pod"])
	assert.Equal(t, "n-1", labels["node"])
	assert.Equal(t, "web", labels["app"], "existing labels are preserved")

	metadata, ok := d.batch.Records[0]["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "prod", metadata["namespace"])
}

func TestIngestTraceValidation(t *testing.T) {
	d := &captureDeliverer{}
	g := newGateway(d)

	records := []models.RawRecord{
		{"trace_id": "t1", "span_id": "s1", "name": "GET /", "source": "svc"},
		{"trace_id": "t1", "source": "svc"}, // missing span_id
	}

	res, err := g.Ingest(context.Background(), "traces", records, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, res.Rejected)
}
