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
	"fmt"
	"strings"

	"github.com/carverauto/pulse/pkg/models"
	"github.com/nats-io/nats.go"
)

const channelSubjectPrefix = "pulse.stream."

// ChannelSubject returns the core NATS subject used to fan a stream channel
// out across server replicas.
func ChannelSubject(ch models.Channel) string {
	return channelSubjectPrefix + string(ch)
}

// PublishChannel publishes a payload on a channel's fan-out subject.
func PublishChannel(nc *nats.Conn, ch models.Channel, payload []byte) error {
	if err := nc.Publish(ChannelSubject(ch), payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", ChannelSubject(ch), err)
	}

	return nil
}

// SubscribeChannels subscribes to all channel fan-out subjects and invokes
// handler with the channel name and payload of each message.
func SubscribeChannels(nc *nats.Conn, handler func(ch models.Channel, payload []byte)) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(channelSubjectPrefix+"*", func(msg *nats.Msg) {
		name := strings.TrimPrefix(msg.Subject, channelSubjectPrefix)

		ch, ok := models.ParseChannel(name)
		if !ok {
			return
		}

		handler(ch, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to channel subjects: %w", err)
	}

	return sub, nil
}
