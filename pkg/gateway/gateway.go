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

// Package gateway validates incoming telemetry batches and hands them to the
// delivery path. It responds before persistence happens and never waits on
// downstream health.
package gateway

import (
	"context"
	"errors"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

var (
	// ErrUnknownTopic is returned for a topic outside the four pillars.
	ErrUnknownTopic = errors.New("unknown telemetry topic")

	// ErrEmptyBatch is returned when the batch carries no records.
	ErrEmptyBatch = errors.New("batch contains no records")

	// ErrNoValidRecords is returned when every record in the batch failed
	// validation; nothing was handed off.
	ErrNoValidRecords = errors.New("no valid records in batch")
)

// Deliverer is the dual-path delivery entry point.
type Deliverer interface {
	Deliver(ctx context.Context, batch *models.IngestBatch) *models.DeliveryOutcome
}

// Result reports an ingestion call's outcome: the delivery path taken plus
// per-record validation counts.
type Result struct {
	Outcome  *models.DeliveryOutcome
	Accepted int
	Rejected int
}

// Gateway is the ingestion front door.
type Gateway struct {
	deliverer Deliverer
	logger    logger.Logger
}

// NewGateway creates a Gateway.
func NewGateway(deliverer Deliverer, log logger.Logger) *Gateway {
	return &Gateway{deliverer: deliverer, logger: log}
}

// Ingest validates the batch, injects orchestration context into each valid
// record, and hands the batch off. Malformed records are dropped with a
// counted rejection rather than failing the batch; an error is returned only
// when validation leaves nothing to deliver.
func (g *Gateway) Ingest(ctx context.Context, topic string, records []models.RawRecord, reqCtx *models.RequestContext) (*Result, error) {
	if !models.ValidTopic(topic) {
		return nil, ErrUnknownTopic
	}

	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}

	valid := make([]models.RawRecord, 0, len(records))
	rejected := 0

	for _, rec := range records {
		if !validRecord(models.Topic(topic), rec) {
			rejected++
			continue
		}

		injectContext(rec, reqCtx)
		valid = append(valid, rec)
	}

	if rejected > 0 {
		g.logger.Debug().
			Str("topic", topic).
			Int("rejected", rejected).
			Msg("Dropped malformed records")
	}

	if len(valid) == 0 {
		return &Result{Rejected: rejected}, ErrNoValidRecords
	}

	batch := &models.IngestBatch{
		Topic:   models.Topic(topic),
		Records: valid,
		Context: reqCtx,
	}

	outcome := g.deliverer.Deliver(ctx, batch)

	return &Result{
		Outcome:  outcome,
		Accepted: len(valid),
		Rejected: rejected,
	}, nil
}

// validRecord checks the per-topic required fields. Defaults (unit, labels,
// timestamp) are filled later by the batch processors.
func validRecord(topic models.Topic, rec models.RawRecord) bool {
	if stringField(rec, "source") == "" {
		return false
	}

	switch topic {
	case models.TopicMetrics:
		_, numeric := numericField(rec, "value")
		return stringField(rec, "name") != "" && numeric
	case models.TopicLogs:
		return stringField(rec, "message") != ""
	case models.TopicEvents:
		return stringField(rec, "name") != ""
	case models.TopicTraces:
		return stringField(rec, "trace_id") != "" && stringField(rec, "span_id") != ""
	default:
		return false
	}
}

// injectContext copies orchestration identifiers into the record's labels and
// metadata. This is the only mutation the gateway performs.
func injectContext(rec models.RawRecord, reqCtx *models.RequestContext) {
	if reqCtx == nil {
		return
	}

	fields := map[string]string{
		"namespace": reqCtx.Namespace,
		"pod":       reqCtx.Pod,
		"node":      reqCtx.Node,
	}

	labels := mapField(rec, "labels")
	metadata := mapField(rec, "metadata")

	for key, value := range fields {
		if value == "" {
			continue
		}

		labels[key] = value
		metadata[key] = value
	}

	rec["labels"] = labels
	rec["metadata"] = metadata
}

func stringField(rec models.RawRecord, key string) string {
	s, _ := rec[key].(string)
	return s
}

func numericField(rec models.RawRecord, key string) (float64, bool) {
	switch v := rec[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func mapField(rec models.RawRecord, key string) map[string]interface{} {
	if m, ok := rec[key].(map[string]interface{}); ok {
		return m
	}

	return make(map[string]interface{})
}
