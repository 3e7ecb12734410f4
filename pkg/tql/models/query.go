package models

import "time"

// DataType identifies which store collection a query targets.
type DataType string

const (
	Metrics DataType = "metrics"
	Logs    DataType = "logs"
	Traces  DataType = "traces"
	Events  DataType = "events"
	Spans   DataType = "spans"
)

// ValidDataType reports whether s names a queryable data type.
func ValidDataType(s string) bool {
	switch DataType(s) {
	case Metrics, Logs, Traces, Events, Spans:
		return true
	default:
		return false
	}
}

// OperatorType represents a matcher comparison operator.
type OperatorType string

const (
	Equals      OperatorType = "="
	NotEquals   OperatorType = "!="
	Regex       OperatorType = "=~"
	NotRegex    OperatorType = "!~"
	GreaterThan OperatorType = ">"
	LessThan    OperatorType = "<"
	GreaterOrEq OperatorType = ">="
	LessOrEq    OperatorType = "<="
)

// AggregateFunction represents the outer aggregate call of a query.
type AggregateFunction string

const (
	Avg      AggregateFunction = "avg"
	Sum      AggregateFunction = "sum"
	Count    AggregateFunction = "count"
	Max      AggregateFunction = "max"
	Min      AggregateFunction = "min"
	Rate     AggregateFunction = "rate"
	Increase AggregateFunction = "increase"
)

// ValidAggregate reports whether s names a known aggregate function.
func ValidAggregate(s string) bool {
	switch AggregateFunction(s) {
	case Avg, Sum, Count, Max, Min, Rate, Increase:
		return true
	default:
		return false
	}
}

// LabelMatcher is a single field comparison inside a selector.
type LabelMatcher struct {
	Key      string
	Operator OperatorType
	Value    string
}

// DefaultLimit caps unaggregated result sets.
const DefaultLimit = 100

// Query is a parsed query expression.
type Query struct {
	DataType  DataType
	Matchers  []LabelMatcher
	Aggregate AggregateFunction // empty when the query has no aggregate
	TimeRange time.Duration     // zero when the query has no range
	Limit     int
}
