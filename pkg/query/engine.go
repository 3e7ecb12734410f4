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

// Package query executes parsed TQL expressions against the external store.
// Parse failures are the caller's 4xx; evaluation failures (a numeric
// aggregate over logs, a bad matcher regex) are reported in the result, not
// as transport errors.
package query

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	tqlmodels "github.com/carverauto/pulse/pkg/tql/models"
)

// Store is the read side of the external store the engine needs.
type Store interface {
	Records(ctx context.Context, collection string, since time.Time) ([]models.RawRecord, error)
}

// Result is a query outcome. Exactly one of Results (raw projection) or
// Value (aggregate) is meaningful; Error carries an evaluation failure
// inside an otherwise successful response.
type Result struct {
	DataType  string                   `json:"data_type"`
	Count     int                      `json:"count"`
	Aggregate string                   `json:"aggregate,omitempty"`
	Value     *float64                 `json:"value,omitempty"`
	Results   []map[string]interface{} `json:"results,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Engine resolves queries against the store.
type Engine struct {
	store  Store
	logger logger.Logger
}

// NewEngine creates a query Engine.
func NewEngine(store Store, log logger.Logger) *Engine {
	return &Engine{store: store, logger: log}
}

// spans share the traces collection; every other data type maps to its own.
func collectionFor(dt tqlmodels.DataType) string {
	if dt == tqlmodels.Spans {
		return string(tqlmodels.Traces)
	}

	return string(dt)
}

// timeFieldFor returns the canonical time field of a data type.
func timeFieldFor(dt tqlmodels.DataType) string {
	switch dt {
	case tqlmodels.Traces, tqlmodels.Spans:
		return "start_time"
	default:
		return "timestamp"
	}
}

// Execute runs a parsed query. The returned error is reserved for store
// failures; evaluation problems land in Result.Error.
func (e *Engine) Execute(ctx context.Context, q *tqlmodels.Query) (*Result, error) {
	var since time.Time
	if q.TimeRange > 0 {
		since = time.Now().UTC().Add(-q.TimeRange)
	}

	records, err := e.store.Records(ctx, collectionFor(q.DataType), since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s records: %w", q.DataType, err)
	}

	timeField := timeFieldFor(q.DataType)

	if !since.IsZero() {
		records = filterSince(records, timeField, since)
	}

	for _, matcher := range q.Matchers {
		records, err = applyMatcher(records, matcher)
		if err != nil {
			return &Result{DataType: string(q.DataType), Error: err.Error()}, nil
		}
	}

	if q.Aggregate != "" {
		return e.aggregate(q, records), nil
	}

	sortByRecency(records, timeField)

	limit := q.Limit
	if limit <= 0 {
		limit = tqlmodels.DefaultLimit
	}

	if len(records) > limit {
		records = records[:limit]
	}

	return &Result{
		DataType: string(q.DataType),
		Count:    len(records),
		Results:  project(records, q.DataType),
	}, nil
}

func filterSince(records []models.RawRecord, timeField string, since time.Time) []models.RawRecord {
	kept := records[:0]

	for _, rec := range records {
		ts, ok := recordTime(rec, timeField)
		if !ok || ts.Before(since) {
			continue
		}

		kept = append(kept, rec)
	}

	return kept
}

func applyMatcher(records []models.RawRecord, matcher tqlmodels.LabelMatcher) ([]models.RawRecord, error) {
	var re *regexp.Regexp

	if matcher.Operator == tqlmodels.Regex || matcher.Operator == tqlmodels.NotRegex {
		var err error

		re, err = regexp.Compile(matcher.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q for %s: %w", matcher.Value, matcher.Key, err)
		}
	}

	kept := make([]models.RawRecord, 0, len(records))

	for _, rec := range records {
		value, ok := fieldValue(rec, matcher.Key)
		if !ok {
			continue
		}

		match, err := matches(matcher, value, re)
		if err != nil {
			return nil, err
		}

		if match {
			kept = append(kept, rec)
		}
	}

	return kept, nil
}

func matches(matcher tqlmodels.LabelMatcher, value interface{}, re *regexp.Regexp) (bool, error) {
	switch matcher.Operator {
	case tqlmodels.Equals:
		return stringForm(value) == matcher.Value, nil
	case tqlmodels.NotEquals:
		return stringForm(value) != matcher.Value, nil
	case tqlmodels.Regex:
		return re.MatchString(stringForm(value)), nil
	case tqlmodels.NotRegex:
		return !re.MatchString(stringForm(value)), nil
	case tqlmodels.GreaterThan, tqlmodels.LessThan, tqlmodels.GreaterOrEq, tqlmodels.LessOrEq:
		return compareNumeric(matcher, value)
	default:
		return false, fmt.Errorf("unsupported operator %q", matcher.Operator)
	}
}

func compareNumeric(matcher tqlmodels.LabelMatcher, value interface{}) (bool, error) {
	threshold, err := strconv.ParseFloat(matcher.Value, 64)
	if err != nil {
		return false, fmt.Errorf("matcher %s%s%q requires a numeric value", matcher.Key, matcher.Operator, matcher.Value)
	}

	fieldNum, ok := numericForm(value)
	if !ok {
		return false, nil
	}

	switch matcher.Operator {
	case tqlmodels.GreaterThan:
		return fieldNum > threshold, nil
	case tqlmodels.LessThan:
		return fieldNum < threshold, nil
	case tqlmodels.GreaterOrEq:
		return fieldNum >= threshold, nil
	default:
		return fieldNum <= threshold, nil
	}
}

func (e *Engine) aggregate(q *tqlmodels.Query, records []models.RawRecord) *Result {
	result := &Result{
		DataType:  string(q.DataType),
		Count:     len(records),
		Aggregate: string(q.Aggregate),
	}

	switch q.Aggregate {
	case tqlmodels.Count:
		v := float64(len(records))
		result.Value = &v

		return result
	case tqlmodels.Rate, tqlmodels.Increase:
		seconds := q.TimeRange.Seconds()
		if seconds <= 0 {
			seconds = 1
		}

		v := float64(len(records))
		if q.Aggregate == tqlmodels.Rate {
			v /= seconds
		}

		result.Value = &v

		return result
	default:
	}

	if q.DataType != tqlmodels.Metrics {
		result.Error = fmt.Sprintf("aggregate %s is not applicable to %s", q.Aggregate, q.DataType)
		return result
	}

	values := make([]float64, 0, len(records))

	for _, rec := range records {
		if v, ok := numericForm(rec["value"]); ok {
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return result
	}

	v := reduce(q.Aggregate, values)
	result.Value = &v

	return result
}

func reduce(fn tqlmodels.AggregateFunction, values []float64) float64 {
	switch fn {
	case tqlmodels.Sum, tqlmodels.Avg:
		var sum float64
		for _, v := range values {
			sum += v
		}

		if fn == tqlmodels.Avg {
			return sum / float64(len(values))
		}

		return sum
	case tqlmodels.Max:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}

		return m
	default: // min
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}

		return m
	}
}

// projectedFields whitelists the fields each data type exposes, so query
// results never leak internal store fields.
var projectedFields = map[tqlmodels.DataType][]string{
	tqlmodels.Metrics: {"id", "timestamp", "name", "value", "unit", "source", "labels"},
	tqlmodels.Logs:    {"id", "timestamp", "level", "message", "source", "trace_id"},
	tqlmodels.Events:  {"id", "timestamp", "name", "event_type", "severity", "source"},
	tqlmodels.Traces:  {"id", "trace_id", "span_id", "name", "source", "start_time", "end_time"},
	tqlmodels.Spans:   {"id", "trace_id", "span_id", "name", "source", "start_time", "end_time"},
}

func project(records []models.RawRecord, dt tqlmodels.DataType) []map[string]interface{} {
	fields := projectedFields[dt]
	out := make([]map[string]interface{}, 0, len(records))

	for _, rec := range records {
		row := make(map[string]interface{}, len(fields))

		for _, f := range fields {
			if v, ok := rec[f]; ok {
				row[f] = v
			}
		}

		out = append(out, row)
	}

	return out
}

func sortByRecency(records []models.RawRecord, timeField string) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, iok := recordTime(records[i], timeField)
		tj, jok := recordTime(records[j], timeField)

		if !jok {
			return iok
		}

		if !iok {
			return false
		}

		return ti.After(tj)
	})
}

func recordTime(rec models.RawRecord, field string) (time.Time, bool) {
	switch v := rec[field].(type) {
	case time.Time:
		return v, true
	case string:
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			ts, err = time.Parse(time.RFC3339Nano, v)
		}

		return ts, err == nil
	default:
		return time.Time{}, false
	}
}

// fieldValue resolves a matcher key against the record's top-level fields
// first, then its labels map.
func fieldValue(rec models.RawRecord, key string) (interface{}, bool) {
	if v, ok := rec[key]; ok {
		return v, true
	}

	if labels, ok := rec["labels"].(map[string]interface{}); ok {
		if v, ok := labels[key]; ok {
			return v, true
		}
	}

	return nil, false
}

func stringForm(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func numericForm(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
