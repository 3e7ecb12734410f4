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

package models

// Channel is a named real-time broadcast group a subscriber can join.
// Membership in ChannelAll implies receipt of every other channel's
// broadcasts.
type Channel string

const (
	ChannelMetrics Channel = "metrics"
	ChannelLogs    Channel = "logs"
	ChannelEvents  Channel = "events"
	ChannelTraces  Channel = "traces"
	ChannelAlerts  Channel = "alerts"
	ChannelAll     Channel = "all"
)

// Channels lists every broadcast channel, ChannelAll included.
func Channels() []Channel {
	return []Channel{ChannelMetrics, ChannelLogs, ChannelEvents, ChannelTraces, ChannelAlerts, ChannelAll}
}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelMetrics, ChannelLogs, ChannelEvents, ChannelTraces, ChannelAlerts, ChannelAll:
		return Channel(s), true
	default:
		return "", false
	}
}
