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

package stream

import (
	"context"
	"encoding/json"

	"github.com/carverauto/pulse/pkg/lifecycle"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// Distributor is the publish side of the hub. With a NATS connection every
// broadcast goes through the broker's channel subjects so all replicas'
// hubs deliver it; without one (single-instance deployments, tests) it
// delivers straight to the local hub.
type Distributor struct {
	hub    *Hub
	nc     *nats.Conn
	logger logger.Logger
}

// NewDistributor creates a Distributor. nc may be nil.
func NewDistributor(hub *Hub, nc *nats.Conn, log logger.Logger) *Distributor {
	return &Distributor{hub: hub, nc: nc, logger: log}
}

// Broadcast publishes a payload to a channel.
func (d *Distributor) Broadcast(ch models.Channel, payload interface{}) {
	if d.nc == nil {
		d.hub.Broadcast(ch, payload)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Warn().Err(err).Str("channel", string(ch)).Msg("Dropping unmarshalable broadcast")
		return
	}

	if err := natsutil.PublishChannel(d.nc, ch, data); err != nil {
		d.logger.Warn().Err(err).Str("channel", string(ch)).Msg("Channel publish failed, delivering locally")
		d.hub.Broadcast(ch, payload)
	}
}

// Relay subscribes to the broker's channel subjects and re-broadcasts every
// received message to the locally attached connections. It implements
// lifecycle.Service.
type Relay struct {
	hub    *Hub
	nc     *nats.Conn
	sub    *nats.Subscription
	logger logger.Logger
}

// NewRelay creates a Relay on an existing NATS connection.
func NewRelay(hub *Hub, nc *nats.Conn, log logger.Logger) *Relay {
	return &Relay{hub: hub, nc: nc, logger: log}
}

// Start subscribes to the channel fan-out subjects.
func (r *Relay) Start(_ context.Context) error {
	sub, err := natsutil.SubscribeChannels(r.nc, func(ch models.Channel, payload []byte) {
		var data interface{}

		if err := json.Unmarshal(payload, &data); err != nil {
			r.logger.Warn().Err(err).Str("channel", string(ch)).Msg("Discarding undecodable channel message")
			return
		}

		r.hub.Broadcast(ch, data)
	})
	if err != nil {
		return err
	}

	r.sub = sub

	r.logger.Info().Msg("Stream relay started")

	return nil
}

// Stop drains the subscription.
func (r *Relay) Stop(_ context.Context) error {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}

	r.logger.Info().Msg("Stream relay stopped")

	return nil
}

var _ lifecycle.Service = (*Relay)(nil)
