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

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/carverauto/pulse/pkg/models"
)

// handleStream upgrades to a WebSocket on the default channel set.
func (s *APIServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.upgrade(w, r)
	if !ok {
		return
	}

	s.hub.HandleConnection(conn)
}

// handleStreamChannel upgrades to a WebSocket pinned to one channel.
func (s *APIServer) handleStreamChannel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["channel"]

	ch, ok := models.ParseChannel(name)
	if !ok {
		writeError(w, fmt.Sprintf("Unknown channel: %s", name), http.StatusBadRequest)
		return
	}

	conn, ok := s.upgrade(w, r)
	if !ok {
		return
	}

	s.hub.HandleConnection(conn, ch)
}

// handleSSE streams one channel's broadcasts over server-sent events.
func (s *APIServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["channel"]

	ch, ok := models.ParseChannel(name)
	if !ok {
		writeError(w, fmt.Sprintf("Unknown channel: %s", name), http.StatusBadRequest)
		return
	}

	s.hub.ServeSSE(w, r, ch)
}

func (s *APIServer) handleStreamConnections(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.hub.Stats())
}

func (s *APIServer) handleStreamChannels(w http.ResponseWriter, _ *http.Request) {
	channels := make([]map[string]interface{}, 0, len(models.Channels()))

	for _, ch := range models.Channels() {
		channels = append(channels, map[string]interface{}{
			"name":        string(ch),
			"description": fmt.Sprintf("Real-time %s stream", ch),
			"connections": s.hub.ChannelCount(ch),
		})
	}

	s.writeJSON(w, map[string]interface{}{"channels": channels})
}

// handleBroadcast pushes a message to every attached connection, across
// replicas when a broker is wired in.
func (s *APIServer) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	message, ok := decodeBroadcast(w, r)
	if !ok {
		return
	}

	s.broadcaster.Broadcast(models.ChannelAll, message)

	stats := s.hub.Stats()

	s.writeJSON(w, map[string]interface{}{
		"status":            "broadcasted",
		"total_connections": stats.TotalConnections,
		"channels":          stats.Channels,
	})
}

// handleBroadcastChannel pushes a message to one channel's subscribers.
func (s *APIServer) handleBroadcastChannel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["channel"]

	ch, ok := models.ParseChannel(name)
	if !ok {
		writeError(w, fmt.Sprintf("Unknown channel: %s", name), http.StatusBadRequest)
		return
	}

	message, ok := decodeBroadcast(w, r)
	if !ok {
		return
	}

	s.broadcaster.Broadcast(ch, message)

	s.writeJSON(w, map[string]interface{}{
		"status":     "broadcasted",
		"channel":    string(ch),
		"recipients": s.hub.ChannelCount(ch),
	})
}

func decodeBroadcast(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	var message map[string]interface{}

	if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
		writeError(w, "Invalid request body: expected a JSON object", http.StatusBadRequest)
		return nil, false
	}

	return message, true
}

func (s *APIServer) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, bool) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.checkWebSocketOrigin(r)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return nil, false
	}

	return conn, true
}

// checkWebSocketOrigin validates the WebSocket origin against the CORS
// configuration. Connections without an Origin header (CLI clients, tests)
// are allowed.
func (s *APIServer) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range s.corsConfig.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}
