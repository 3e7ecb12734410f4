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

import (
	"context"
	"math"
	"time"

	"github.com/carverauto/pulse/pkg/models"
)

// EvaluateAlertRules fetches the active rules for a metric's name, compares
// the metric value against each threshold, and records every rule that fired.
// A single failed rule write is counted and skipped; it does not stop the
// remaining rules. Notification dispatch belongs to the store side.
func (p *Processor) EvaluateAlertRules(ctx context.Context, metric *models.Metric) ([]models.TriggeredAlert, error) {
	rules, err := p.store.AlertRules(ctx, metric.Name)
	if err != nil {
		return nil, err
	}

	var triggered []models.TriggeredAlert

	for i := range rules {
		rule := &rules[i]

		fired, err := ruleFires(rule.Operator, metric.Value, rule.Threshold)
		if err != nil {
			p.logger.Warn().
				Str("rule_id", rule.ID).
				Str("operator", rule.Operator).
				Msg("Skipping rule with unknown operator")

			continue
		}

		if !fired {
			continue
		}

		alert := models.TriggeredAlert{
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			MetricName:  metric.Name,
			MetricValue: metric.Value,
			Threshold:   rule.Threshold,
		}

		if err := p.store.CreateAlert(ctx, &alert); err != nil {
			p.logger.Warn().
				Err(err).
				Str("rule_id", rule.ID).
				Msg("Failed to record triggered alert")

			continue
		}

		triggered = append(triggered, alert)
	}

	return triggered, nil
}

func ruleFires(operator string, value, threshold float64) (bool, error) {
	switch operator {
	case "gt":
		return value > threshold, nil
	case "gte":
		return value >= threshold, nil
	case "lt":
		return value < threshold, nil
	case "lte":
		return value <= threshold, nil
	case "eq":
		return value == threshold, nil
	default:
		return false, ErrUnknownOperator
	}
}

// RunAnomalyDetection pulls the metric's points over the lookback window and
// flags every point outside mean ± 3·stdev. Fewer than ten points yields
// insufficient_data rather than a spurious signal.
func (p *Processor) RunAnomalyDetection(ctx context.Context, metricName string, windowMinutes int) (*models.AnomalyReport, error) {
	if windowMinutes <= 0 {
		windowMinutes = defaultAnomalyWindowMinutes
	}

	since := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)

	series, err := p.store.MetricSeries(ctx, metricName, since)
	if err != nil {
		return nil, err
	}

	report := &models.AnomalyReport{
		MetricName:    metricName,
		WindowMinutes: windowMinutes,
		DataPoints:    len(series),
	}

	if len(series) < anomalyMinPoints {
		report.Status = "insufficient_data"
		return report, nil
	}

	values := make([]float64, len(series))
	for i := range series {
		values[i] = series[i].Value
	}

	mean, stdev := meanAndSampleStdev(values)

	report.Status = "ok"
	report.Mean = mean
	report.Stdev = stdev

	// Each point is judged against the band of the remaining points, so a
	// single extreme outlier cannot widen the band enough to hide itself.
	for i := range series {
		if outlier(values, i) {
			report.AnomalyIDs = append(report.AnomalyIDs, series[i].ID)
		}
	}

	if len(report.AnomalyIDs) > 0 {
		p.logger.Info().
			Str("metric", metricName).
			Int("anomalies", len(report.AnomalyIDs)).
			Msg("Anomalies detected")

		p.broadcast(models.ChannelAlerts, report)
	}

	return report, nil
}

func meanAndSampleStdev(values []float64) (mean, stdev float64) {
	n := float64(len(values))

	var sum float64
	for _, v := range values {
		sum += v
	}

	mean = sum / n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	stdev = math.Sqrt(sq / (n - 1))

	return mean, stdev
}

// outlier reports whether values[i] falls outside mean ± 3·stdev of the
// other points.
func outlier(values []float64, i int) bool {
	rest := make([]float64, 0, len(values)-1)
	rest = append(rest, values[:i]...)
	rest = append(rest, values[i+1:]...)

	mean, stdev := meanAndSampleStdev(rest)

	if stdev == 0 {
		return values[i] != mean
	}

	return values[i] < mean-anomalyStdevFactor*stdev || values[i] > mean+anomalyStdevFactor*stdev
}
