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

// Package delivery routes accepted batches to a durable broker with an
// in-process fallback queue. The broker path gives durability and
// cross-replica fan-out; the fallback path guarantees forward progress when
// the broker is unreachable. No batch is sent down both paths.
package delivery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

const defaultPublishTimeout = 2 * time.Second

// Broker is the durable publish side, typically NATS JetStream.
type Broker interface {
	Connected() bool
	Publish(ctx context.Context, topic models.Topic, payload []byte) error
}

// Queue is the in-process fallback, consumed by the worker pool.
type Queue interface {
	Enqueue(batch *models.IngestBatch) error
}

// Deliverer implements the ordered broker-then-fallback handoff.
type Deliverer struct {
	broker         Broker
	queue          Queue
	publishTimeout time.Duration
	logger         logger.Logger
}

// NewDeliverer creates a Deliverer. A zero publishTimeout selects the
// default. broker may be nil when the deployment runs without one.
func NewDeliverer(broker Broker, queue Queue, publishTimeout time.Duration, log logger.Logger) *Deliverer {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	return &Deliverer{
		broker:         broker,
		queue:          queue,
		publishTimeout: publishTimeout,
		logger:         log,
	}
}

// Deliver hands a batch to exactly one path and returns the outcome without
// waiting on persistence. A publish-time broker failure, including timeout,
// falls through to the fallback queue.
func (d *Deliverer) Deliver(ctx context.Context, batch *models.IngestBatch) *models.DeliveryOutcome {
	if d.broker != nil && d.broker.Connected() {
		err := d.publish(ctx, batch)
		if err == nil {
			return &models.DeliveryOutcome{Accepted: true, Path: models.PathBroker}
		}

		d.logger.Warn().
			Err(err).
			Str("topic", string(batch.Topic)).
			Msg("Broker publish failed, falling back to in-process queue")
	}

	if err := d.queue.Enqueue(batch); err != nil {
		d.logger.Error().
			Err(err).
			Str("topic", string(batch.Topic)).
			Msg("Fallback enqueue failed, batch rejected")

		return &models.DeliveryOutcome{
			Accepted: false,
			Path:     models.PathRejected,
			Reason:   err.Error(),
		}
	}

	return &models.DeliveryOutcome{Accepted: true, Path: models.PathFallback}
}

func (d *Deliverer) publish(ctx context.Context, batch *models.IngestBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()

	return d.broker.Publish(publishCtx, batch.Topic, payload)
}
