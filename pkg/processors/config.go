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

import "errors"

var errConsumerNameRequired = errors.New("consumer_name is required")

const (
	defaultAnomalyWindowMinutes = 60
	defaultAnomalySweepMinutes  = 5

	// anomalyMinPoints is the smallest series that yields a statistically
	// meaningful scan; below it the result is insufficient_data.
	anomalyMinPoints = 10

	// anomalyStdevFactor bounds the normal band at mean ± 3·stdev.
	anomalyStdevFactor = 3.0
)

// Config holds batch processor settings. AnomalyMetrics lists the metric
// names the periodic anomaly sweep scans; an empty list disables the sweep.
type Config struct {
	StreamName           string   `json:"stream_name,omitempty"`
	ConsumerName         string   `json:"consumer_name"`
	AnomalyWindowMinutes int      `json:"anomaly_window_minutes,omitempty"`
	AnomalySweepMinutes  int      `json:"anomaly_sweep_minutes,omitempty"`
	AnomalyMetrics       []string `json:"anomaly_metrics,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.ConsumerName == "" {
		return errConsumerNameRequired
	}

	if c.AnomalyWindowMinutes <= 0 {
		c.AnomalyWindowMinutes = defaultAnomalyWindowMinutes
	}

	if c.AnomalySweepMinutes <= 0 {
		c.AnomalySweepMinutes = defaultAnomalySweepMinutes
	}

	return nil
}
