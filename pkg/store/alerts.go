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

package store

import (
	"context"
	"net/url"

	"github.com/carverauto/pulse/pkg/models"
)

// AlertRules fetches the active alert rules for a metric name.
func (c *Client) AlertRules(ctx context.Context, metricName string) ([]models.AlertRule, error) {
	params := url.Values{}
	params.Set("metric_name", metricName)
	params.Set("is_active", "true")

	var rules []models.AlertRule

	if err := c.get(ctx, "/api/alert-rules/", params, &rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// CreateAlert records a triggered alert in the store. Notification dispatch
// is the store side's concern.
func (c *Client) CreateAlert(ctx context.Context, alert *models.TriggeredAlert) error {
	return c.post(ctx, "/api/alerts/", alert, nil)
}
