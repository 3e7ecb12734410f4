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

// DeliveryPath names the route a batch took through dual-path delivery.
type DeliveryPath string

const (
	PathBroker   DeliveryPath = "broker"
	PathFallback DeliveryPath = "fallback"
	PathRejected DeliveryPath = "rejected"
)

// DeliveryOutcome is returned synchronously to the ingesting caller. It never
// blocks on persistence completion.
type DeliveryOutcome struct {
	Accepted bool         `json:"accepted"`
	Path     DeliveryPath `json:"path"`
	Reason   string       `json:"reason,omitempty"`
}

// ProcessResult counts per-record successes and failures for one batch.
type ProcessResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}
