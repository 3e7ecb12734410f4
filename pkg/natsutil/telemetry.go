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

package natsutil

import (
	"context"
	"fmt"

	"github.com/carverauto/pulse/pkg/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// DefaultTelemetryStream is the JetStream stream that buffers ingested
	// telemetry batches between the gateway and the batch processors.
	DefaultTelemetryStream = "pulse-telemetry"

	telemetrySubjectPrefix = "pulse.telemetry."
)

// TelemetrySubject returns the JetStream subject for a telemetry topic.
func TelemetrySubject(topic models.Topic) string {
	return telemetrySubjectPrefix + string(topic)
}

// TelemetryPublisher publishes telemetry batches to NATS JetStream.
type TelemetryPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

// NewTelemetryPublisher creates a JetStream context on an existing NATS
// connection and ensures the telemetry stream exists.
func NewTelemetryPublisher(ctx context.Context, nc *nats.Conn, domain, streamName string) (*TelemetryPublisher, error) {
	var (
		js  jetstream.JetStream
		err error
	)

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}
	} else {
		js, err = jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	if streamName == "" {
		streamName = DefaultTelemetryStream
	}

	_, err = js.Stream(ctx, streamName)
	if err != nil {
		streamConfig := jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{telemetrySubjectPrefix + ">"},
		}

		_, err = js.CreateOrUpdateStream(ctx, streamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create or get stream %s: %w", streamName, err)
		}
	}

	return &TelemetryPublisher{nc: nc, js: js, stream: streamName}, nil
}

// Connected reports whether the underlying NATS connection is usable.
func (p *TelemetryPublisher) Connected() bool {
	return p.nc != nil && p.nc.Status() == nats.CONNECTED
}

// Publish writes a payload to the topic's subject and waits for the stream ack.
func (p *TelemetryPublisher) Publish(ctx context.Context, topic models.Topic, payload []byte) error {
	_, err := p.js.Publish(ctx, TelemetrySubject(topic), payload)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", TelemetrySubject(topic), err)
	}

	return nil
}

// Stream returns the name of the telemetry stream.
func (p *TelemetryPublisher) Stream() string {
	return p.stream
}

// JetStream exposes the underlying JetStream context for consumers.
func (p *TelemetryPublisher) JetStream() jetstream.JetStream {
	return p.js
}
