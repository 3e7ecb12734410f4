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

package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBrokerDown = errors.New("broker down")

type fakeBroker struct {
	connected bool
	publishes atomic.Int64
	err       error
	lastTopic models.Topic
}

func (b *fakeBroker) Connected() bool { return b.connected }

func (b *fakeBroker) Publish(_ context.Context, topic models.Topic, _ []byte) error {
	b.publishes.Add(1)
	b.lastTopic = topic

	return b.err
}

type fakeQueue struct {
	batches []*models.IngestBatch
	err     error
}

func (q *fakeQueue) Enqueue(batch *models.IngestBatch) error {
	if q.err != nil {
		return q.err
	}

	q.batches = append(q.batches, batch)

	return nil
}

func metricsBatch() *models.IngestBatch {
	return &models.IngestBatch{
		Topic:   models.TopicMetrics,
		Records: []models.RawRecord{{"name": "cpu_usage", "value": 42.0}},
	}
}

func TestDeliverPrefersBroker(t *testing.T) {
	broker := &fakeBroker{connected: true}
	queue := &fakeQueue{}
	d := NewDeliverer(broker, queue, 0, logger.NewTestLogger())

	outcome := d.Deliver(context.Background(), metricsBatch())

	assert.True(t, outcome.Accepted)
	assert.Equal(t, models.PathBroker, outcome.Path)
	assert.Equal(t, models.TopicMetrics, broker.lastTopic)
	assert.Empty(t, queue.batches, "batch must not also go down the fallback path")
}

func TestDeliverFallsBackWhenDisconnected(t *testing.T) {
	broker := &fakeBroker{connected: false}
	queue := &fakeQueue{}
	d := NewDeliverer(broker, queue, 0, logger.NewTestLogger())

	outcome := d.Deliver(context.Background(), metricsBatch())

	assert.True(t, outcome.Accepted)
	assert.Equal(t, models.PathFallback, outcome.Path)
	assert.Equal(t, int64(0), broker.publishes.Load())
	assert.Len(t, queue.batches, 1)
}

func TestDeliverFallsBackOnPublishFailure(t *testing.T) {
	broker := &fakeBroker{connected: true, err: errBrokerDown}
	queue := &fakeQueue{}
	d := NewDeliverer(broker, queue, 0, logger.NewTestLogger())

	outcome := d.Deliver(context.Background(), metricsBatch())

	assert.True(t, outcome.Accepted)
	assert.Equal(t, models.PathFallback, outcome.Path)
	assert.Equal(t, int64(1), broker.publishes.Load())
	assert.Len(t, queue.batches, 1)
}

func TestDeliverRejectsWhenBothPathsFail(t *testing.T) {
	broker := &fakeBroker{connected: true, err: errBrokerDown}
	queue := &fakeQueue{err: ErrQueueFull}
	d := NewDeliverer(broker, queue, 0, logger.NewTestLogger())

	outcome := d.Deliver(context.Background(), metricsBatch())

	assert.False(t, outcome.Accepted)
	assert.Equal(t, models.PathRejected, outcome.Path)
	assert.Contains(t, outcome.Reason, "queue is full")
}

func TestDeliverWithoutBrokerUsesFallback(t *testing.T) {
	queue := &fakeQueue{}
	d := NewDeliverer(nil, queue, 0, logger.NewTestLogger())

	outcome := d.Deliver(context.Background(), metricsBatch())

	assert.Equal(t, models.PathFallback, outcome.Path)
}

func TestWorkerPoolProcessesBatches(t *testing.T) {
	processed := make(chan *models.IngestBatch, 1)

	pool := NewWorkerPool(2, 8, func(_ context.Context, batch *models.IngestBatch) {
		processed <- batch
	}, logger.NewTestLogger())

	require.NoError(t, pool.Start(context.Background()))

	defer func() { _ = pool.Stop(context.Background()) }()

	require.NoError(t, pool.Enqueue(metricsBatch()))

	select {
	case batch := <-processed:
		assert.Equal(t, models.TopicMetrics, batch.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not processed")
	}
}

func TestWorkerPoolEnqueueAfterStop(t *testing.T) {
	pool := NewWorkerPool(1, 1, func(context.Context, *models.IngestBatch) {}, logger.NewTestLogger())

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(context.Background()))

	assert.ErrorIs(t, pool.Enqueue(metricsBatch()), ErrPoolStopped)
}

func TestDeliverReturnsBeforeProcessingCompletes(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})

	pool := NewWorkerPool(1, 8, func(context.Context, *models.IngestBatch) {
		<-release
		close(done)
	}, logger.NewTestLogger())

	require.NoError(t, pool.Start(context.Background()))

	d := NewDeliverer(nil, pool, 0, logger.NewTestLogger())

	outcome := d.Deliver(context.Background(), metricsBatch())
	assert.True(t, outcome.Accepted, "acceptance must not wait on the slow processor")

	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor never ran")
	}

	require.NoError(t, pool.Stop(context.Background()))
}

func TestBatchSurvivesPublishRoundTrip(t *testing.T) {
	batch := metricsBatch()
	batch.Context = &models.RequestContext{Namespace: "prod", Pod: "api-0"}

	payload, err := json.Marshal(batch)
	require.NoError(t, err)

	var decoded models.IngestBatch

	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, batch.Topic, decoded.Topic)
	assert.Equal(t, "prod", decoded.Context.Namespace)
}
