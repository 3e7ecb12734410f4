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
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/carverauto/pulse/pkg/models"
	"github.com/google/uuid"
)

var errSSEConnectionClosed = errors.New("sse connection closed")

// sseSubscriber streams hub messages to one HTTP response as server-sent
// events. Send failures surface once the client goes away.
type sseSubscriber struct {
	id      string
	channel models.Channel
	w       http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
	mu      sync.Mutex
	once    sync.Once
}

func (s *sseSubscriber) ID() string { return s.id }

func (s *sseSubscriber) Send(message map[string]interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The ResponseWriter must not be touched once ServeSSE has returned.
	// Close closes done under the same mutex, so this check is ordered
	// against the handler's exit.
	select {
	case <-s.done:
		return errSSEConnectionClosed
	default:
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", s.channel, data); err != nil {
		return err
	}

	s.flusher.Flush()

	return nil
}

func (s *sseSubscriber) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
	})

	return nil
}

// ServeSSE attaches a one-shot server-push subscriber for a single channel
// and blocks until the client disconnects.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, ch models.Channel) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := &sseSubscriber{
		id:      uuid.New().String(),
		channel: ch,
		w:       w,
		flusher: flusher,
		done:    make(chan struct{}),
	}

	h.Register(sub, ch)

	// Close before returning: it waits out any in-flight Send and stops
	// later ones from reaching the dead ResponseWriter.
	defer func() {
		h.Unregister(sub.id)
		_ = sub.Close()
	}()

	select {
	case <-r.Context().Done():
	case <-sub.done:
	}
}
