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

// Package stream fans telemetry broadcasts out to live subscribers over
// channel-scoped subscriptions.
package stream

import (
	"sync"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

// Subscriber is the send side of one attached connection. The hub owns the
// subscription set; subscribers only deliver messages.
type Subscriber interface {
	ID() string
	Send(message map[string]interface{}) error
	Close() error
}

// Stats reports live connection counts.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	Channels         map[string]int `json:"channels"`
}

// Hub maintains channel-scoped subscriptions and broadcasts to them. All
// methods are safe for concurrent use.
type Hub struct {
	mu       sync.RWMutex
	channels map[models.Channel]map[string]Subscriber
	members  map[string]map[models.Channel]struct{}
	byID     map[string]Subscriber
	logger   logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	channels := make(map[models.Channel]map[string]Subscriber)
	for _, ch := range models.Channels() {
		channels[ch] = make(map[string]Subscriber)
	}

	return &Hub{
		channels: channels,
		members:  make(map[string]map[models.Channel]struct{}),
		byID:     make(map[string]Subscriber),
		logger:   log,
	}
}

// Register attaches a subscriber to the given channels. With no channels it
// defaults to ChannelAll.
func (h *Hub) Register(sub Subscriber, channels ...models.Channel) {
	if len(channels) == 0 {
		channels = []models.Channel{models.ChannelAll}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.byID[sub.ID()] = sub
	h.members[sub.ID()] = make(map[models.Channel]struct{}, len(channels))

	for _, ch := range channels {
		h.members[sub.ID()][ch] = struct{}{}
		h.channels[ch][sub.ID()] = sub
	}

	h.logger.Debug().
		Str("connection_id", sub.ID()).
		Int("channels", len(channels)).
		Msg("Connection registered")
}

// Unregister removes a subscriber from every channel membership.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unregisterLocked(id)
}

func (h *Hub) unregisterLocked(id string) {
	for ch := range h.members[id] {
		delete(h.channels[ch], id)
	}

	delete(h.members, id)
	delete(h.byID, id)
}

// Subscribe adds a channel membership. Re-subscribing an already subscribed
// connection is a no-op, so no broadcast is ever delivered twice.
func (h *Hub) Subscribe(id string, ch models.Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.byID[id]
	if !ok {
		return
	}

	h.members[id][ch] = struct{}{}
	h.channels[ch][id] = sub
}

// Unsubscribe removes a channel membership.
func (h *Hub) Unsubscribe(id string, ch models.Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byID[id]; !ok {
		return
	}

	delete(h.members[id], ch)
	delete(h.channels[ch], id)
}

// Broadcast delivers a message to every connection subscribed to the channel
// or to ChannelAll. The recipient set is copied before sending so the lock is
// not held across the fan-out; a failed send closes and removes only that
// recipient.
func (h *Hub) Broadcast(ch models.Channel, payload interface{}) {
	message := map[string]interface{}{
		"channel":   string(ch),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"data":      payload,
	}

	h.deliver(h.recipients(ch), message)
}

// BroadcastAll delivers a message to every attached connection regardless of
// its subscriptions.
func (h *Hub) BroadcastAll(payload interface{}) {
	message := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"data":      payload,
	}

	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.byID))

	for _, sub := range h.byID {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	h.deliver(targets, message)
}

func (h *Hub) recipients(ch models.Channel) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// A broadcast addressed to ChannelAll reaches every attached connection.
	if ch == models.ChannelAll {
		targets := make([]Subscriber, 0, len(h.byID))

		for _, sub := range h.byID {
			targets = append(targets, sub)
		}

		return targets
	}

	size := len(h.channels[ch]) + len(h.channels[models.ChannelAll])
	seen := make(map[string]struct{}, size)
	targets := make([]Subscriber, 0, size)

	for id, sub := range h.channels[ch] {
		seen[id] = struct{}{}
		targets = append(targets, sub)
	}

	for id, sub := range h.channels[models.ChannelAll] {
		if _, dup := seen[id]; dup {
			continue
		}

		targets = append(targets, sub)
	}

	return targets
}

func (h *Hub) deliver(targets []Subscriber, message map[string]interface{}) {
	for _, sub := range targets {
		if err := sub.Send(message); err != nil {
			h.logger.Debug().
				Err(err).
				Str("connection_id", sub.ID()).
				Msg("Dropping dead connection")

			h.Unregister(sub.ID())
			_ = sub.Close()
		}
	}
}

// Stats returns live connection counts, total and per channel.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		TotalConnections: len(h.byID),
		Channels:         make(map[string]int, len(h.channels)),
	}

	for ch, subs := range h.channels {
		stats.Channels[string(ch)] = len(subs)
	}

	return stats
}

// ChannelCount reports the subscriber count of one channel.
func (h *Hub) ChannelCount(ch models.Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.channels[ch])
}
