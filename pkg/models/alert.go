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

// AlertRule is the external store's alert rule entity, read-only here.
// Batch processors evaluate just-ingested metrics against active rules.
type AlertRule struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	MetricName string  `json:"metric_name"`
	Operator   string  `json:"operator"` // gt, gte, lt, lte, eq
	Threshold  float64 `json:"threshold"`
	IsActive   bool    `json:"is_active"`
}

// TriggeredAlert records a rule that fired for a metric value. Dispatching
// notifications for it is the external collaborator's job.
type TriggeredAlert struct {
	RuleID      string  `json:"rule_id"`
	RuleName    string  `json:"rule_name"`
	MetricName  string  `json:"metric_name"`
	MetricValue float64 `json:"metric_value"`
	Threshold   float64 `json:"threshold"`
}

// AnomalyReport is the outcome of a statistical anomaly scan over one metric
// series. Status is "ok" or "insufficient_data".
type AnomalyReport struct {
	Status        string   `json:"status"`
	MetricName    string   `json:"metric_name"`
	WindowMinutes int      `json:"window_minutes"`
	DataPoints    int      `json:"data_points"`
	Mean          float64  `json:"mean,omitempty"`
	Stdev         float64  `json:"stdev,omitempty"`
	AnomalyIDs    []string `json:"anomaly_ids,omitempty"`
}
