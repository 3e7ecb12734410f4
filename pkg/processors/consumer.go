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

package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	defaultMaxPullMessages = 50

	// defaultPullExpiry bounds one Fetch, keeping the loop responsive to
	// shutdown within lifecycle's stop budget.
	defaultPullExpiry = 5 * time.Second

	defaultMaxRetries = 3
)

// Consumer wraps a JetStream pull consumer on the telemetry stream. It feeds
// fetched batches into the same Processor the fallback pool uses.
type Consumer struct {
	streamName   string
	consumerName string
	consumer     jetstream.Consumer
	logger       logger.Logger
}

// NewConsumer creates or retrieves a durable pull consumer for the stream.
func NewConsumer(ctx context.Context, js jetstream.JetStream, streamName, consumerName string, log logger.Logger) (*Consumer, error) {
	consumer, err := js.Consumer(ctx, streamName, consumerName)
	if err != nil {
		cfg := jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    defaultMaxRetries,
			MaxAckPending: 1000,
		}

		consumer, err = js.CreateConsumer(ctx, streamName, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer %s: %w", consumerName, err)
		}
	}

	return &Consumer{
		streamName:   streamName,
		consumerName: consumerName,
		consumer:     consumer,
		logger:       log,
	}, nil
}

// ProcessMessages continuously fetches and processes messages until ctx is
// canceled.
func (c *Consumer) ProcessMessages(ctx context.Context, processor *Processor) {
	c.logger.Info().
		Str("stream", c.streamName).
		Str("consumer", c.consumerName).
		Msg("Starting telemetry pull consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Stopping message processing due to context cancellation")
			return
		default:
			msgs, err := c.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
			if err != nil {
				c.logger.Warn().Err(err).Msg("Failed to fetch messages")
				time.Sleep(time.Second)

				continue
			}

			for msg := range msgs.Messages() {
				c.handleMessage(ctx, msg, processor)
			}

			if fetchErr := msgs.Error(); fetchErr != nil {
				c.logger.Warn().Err(fetchErr).Msg("Fetch error")
			}
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg, processor *Processor) {
	var batch models.IngestBatch

	if err := json.Unmarshal(msg.Data(), &batch); err != nil {
		c.logger.Error().
			Err(err).
			Str("subject", msg.Subject()).
			Msg("Discarding undecodable batch")

		// Redelivery cannot fix a bad payload.
		_ = msg.Ack()

		return
	}

	result := processor.ProcessBatch(ctx, &batch)

	if result.Processed == 0 && result.Errors > 0 {
		metadata, _ := msg.Metadata()

		if metadata != nil && metadata.NumDelivered >= defaultMaxRetries {
			_ = msg.Ack()
		} else {
			_ = msg.Nak()
		}

		return
	}

	_ = msg.Ack()
}
