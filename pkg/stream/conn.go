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
	"encoding/json"
	"sync"

	"github.com/carverauto/pulse/pkg/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsSubscriber wraps a websocket connection as a hub Subscriber. Writes are
// serialized with a mutex; gorilla/websocket allows one concurrent writer.
type wsSubscriber struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func newWSSubscriber(ws *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{id: uuid.New().String(), ws: ws}
}

func (s *wsSubscriber) ID() string { return s.id }

func (s *wsSubscriber) Send(message map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ws.WriteJSON(message)
}

func (s *wsSubscriber) Close() error {
	return s.ws.Close()
}

// controlMessage is the client-to-server command shape.
type controlMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// HandleConnection registers a websocket on the hub and runs its read loop
// until the client disconnects. Control commands mutate the connection's
// subscription set; unrecognized payloads are echoed back rather than
// closing the connection.
func (h *Hub) HandleConnection(ws *websocket.Conn, channels ...models.Channel) {
	sub := newWSSubscriber(ws)
	h.Register(sub, channels...)

	defer func() {
		h.Unregister(sub.id)
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		h.handleControl(sub, data)
	}
}

func (h *Hub) handleControl(sub *wsSubscriber, data []byte) {
	var msg controlMessage

	if err := json.Unmarshal(data, &msg); err != nil {
		_ = sub.Send(map[string]interface{}{"type": "error", "message": "Invalid JSON"})
		return
	}

	switch msg.Action {
	case "subscribe":
		ch, ok := models.ParseChannel(defaultChannel(msg.Channel))
		if !ok {
			_ = sub.Send(map[string]interface{}{"type": "error", "message": "Unknown channel: " + msg.Channel})
			return
		}

		h.Subscribe(sub.id, ch)
		_ = sub.Send(map[string]interface{}{"type": "subscribed", "channel": string(ch)})
	case "unsubscribe":
		ch, ok := models.ParseChannel(defaultChannel(msg.Channel))
		if !ok {
			_ = sub.Send(map[string]interface{}{"type": "error", "message": "Unknown channel: " + msg.Channel})
			return
		}

		h.Unsubscribe(sub.id, ch)
		_ = sub.Send(map[string]interface{}{"type": "unsubscribed", "channel": string(ch)})
	case "ping":
		_ = sub.Send(map[string]interface{}{"type": "pong"})
	default:
		var raw interface{}

		_ = json.Unmarshal(data, &raw)
		_ = sub.Send(map[string]interface{}{"type": "echo", "data": raw})
	}
}

func defaultChannel(name string) string {
	if name == "" {
		return string(models.ChannelAll)
	}

	return name
}
