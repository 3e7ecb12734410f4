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

// Package processors normalizes and persists telemetry batches, then runs the
// dependent alert and anomaly steps for metrics. The same processing logic
// serves both the JetStream consumer and the in-process fallback pool.
package processors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/google/uuid"
)

// Store is the slice of the external store API the processors need.
type Store interface {
	WriteMetric(ctx context.Context, m *models.Metric) error
	WriteLog(ctx context.Context, l *models.LogEntry) error
	WriteEvent(ctx context.Context, e *models.Event) error
	WriteSpan(ctx context.Context, s *models.Span) error
	MetricSeries(ctx context.Context, name string, since time.Time) ([]models.Metric, error)
	AlertRules(ctx context.Context, metricName string) ([]models.AlertRule, error)
	CreateAlert(ctx context.Context, alert *models.TriggeredAlert) error
}

// Broadcaster pushes freshly persisted records and triggered alerts to the
// distribution hub's channels.
type Broadcaster interface {
	Broadcast(ch models.Channel, payload interface{})
}

// Processor runs the per-topic batch processing steps.
type Processor struct {
	store       Store
	broadcaster Broadcaster
	logger      logger.Logger
}

// NewProcessor creates a Processor. broadcaster may be nil when no hub is
// attached (e.g. a standalone consumer deployment).
func NewProcessor(store Store, broadcaster Broadcaster, log logger.Logger) *Processor {
	return &Processor{store: store, broadcaster: broadcaster, logger: log}
}

// ProcessBatch normalizes and persists every record of a batch, counting
// per-record outcomes independently. A failed record never aborts the batch.
func (p *Processor) ProcessBatch(ctx context.Context, batch *models.IngestBatch) models.ProcessResult {
	var result models.ProcessResult

	for _, rec := range batch.Records {
		if err := p.processRecord(ctx, batch.Topic, rec); err != nil {
			result.Errors++

			p.logger.Warn().
				Err(err).
				Str("topic", string(batch.Topic)).
				Msg("Failed to process record")

			continue
		}

		result.Processed++
	}

	p.logger.Debug().
		Str("topic", string(batch.Topic)).
		Int("processed", result.Processed).
		Int("errors", result.Errors).
		Msg("Batch processed")

	return result
}

func (p *Processor) processRecord(ctx context.Context, topic models.Topic, rec models.RawRecord) error {
	switch topic {
	case models.TopicMetrics:
		return p.processMetric(ctx, rec)
	case models.TopicLogs:
		return p.processLog(ctx, rec)
	case models.TopicEvents:
		return p.processEvent(ctx, rec)
	case models.TopicTraces:
		return p.processSpan(ctx, rec)
	default:
		return errUnknownTopic
	}
}

func (p *Processor) processMetric(ctx context.Context, rec models.RawRecord) error {
	metric, err := normalizeMetric(rec)
	if err != nil {
		return err
	}

	if err := p.store.WriteMetric(ctx, metric); err != nil {
		return err
	}

	p.broadcast(models.ChannelMetrics, metric)

	triggered, err := p.EvaluateAlertRules(ctx, metric)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("metric", metric.Name).
			Msg("Alert rule evaluation failed")
	}

	for i := range triggered {
		p.broadcast(models.ChannelAlerts, &triggered[i])
	}

	return nil
}

func (p *Processor) processLog(ctx context.Context, rec models.RawRecord) error {
	entry, err := normalizeLog(rec)
	if err != nil {
		return err
	}

	if err := p.store.WriteLog(ctx, entry); err != nil {
		return err
	}

	p.broadcast(models.ChannelLogs, entry)

	return nil
}

func (p *Processor) processEvent(ctx context.Context, rec models.RawRecord) error {
	event, err := normalizeEvent(rec)
	if err != nil {
		return err
	}

	if err := p.store.WriteEvent(ctx, event); err != nil {
		return err
	}

	p.broadcast(models.ChannelEvents, event)

	return nil
}

func (p *Processor) processSpan(ctx context.Context, rec models.RawRecord) error {
	span, err := normalizeSpan(rec)
	if err != nil {
		return err
	}

	if err := p.store.WriteSpan(ctx, span); err != nil {
		return err
	}

	p.broadcast(models.ChannelTraces, span)

	return nil
}

func (p *Processor) broadcast(ch models.Channel, payload interface{}) {
	if p.broadcaster == nil {
		return
	}

	p.broadcaster.Broadcast(ch, payload)
}

// decodeRecord round-trips a raw record through JSON into the typed model.
func decodeRecord(rec models.RawRecord, dst interface{}) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dst)
}

func normalizeMetric(rec models.RawRecord) (*models.Metric, error) {
	var m models.Metric

	if err := decodeRecord(rec, &m); err != nil {
		return nil, err
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	if m.Unit == "" {
		m.Unit = "count"
	}

	if m.Labels == nil {
		m.Labels = map[string]string{}
	}

	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	return &m, nil
}

func normalizeLog(rec models.RawRecord) (*models.LogEntry, error) {
	var l models.LogEntry

	if err := decodeRecord(rec, &l); err != nil {
		return nil, err
	}

	if l.ID == "" {
		l.ID = uuid.New().String()
	}

	if l.Level == "" {
		l.Level = "info"
	}

	if l.Labels == nil {
		l.Labels = map[string]string{}
	}

	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}

	return &l, nil
}

func normalizeEvent(rec models.RawRecord) (*models.Event, error) {
	var e models.Event

	if err := decodeRecord(rec, &e); err != nil {
		return nil, err
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	if e.EventType == "" {
		e.EventType = "generic"
	}

	if e.Severity == "" {
		e.Severity = "info"
	}

	if e.Labels == nil {
		e.Labels = map[string]string{}
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	return &e, nil
}

func normalizeSpan(rec models.RawRecord) (*models.Span, error) {
	var s models.Span

	if err := decodeRecord(rec, &s); err != nil {
		return nil, err
	}

	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	if s.Labels == nil {
		s.Labels = map[string]string{}
	}

	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}

	return &s, nil
}
