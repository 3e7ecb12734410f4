// Package tql implements the telemetry query language: a compact PromQL-like
// syntax for ad-hoc queries over persisted telemetry.
//
// Examples:
//
//	metrics{name="cpu_usage", source="app-01"}
//	logs{level="error", source=~"web-.*"}[15m]
//	avg(metrics{name="memory_usage"})[5m]
//	rate(metrics{name="requests_total"})[1m]
package tql

import (
	"github.com/carverauto/pulse/pkg/tql/models"
	"github.com/carverauto/pulse/pkg/tql/parser"
)

// NewParser creates a new TQL parser.
func NewParser() *parser.Parser {
	return parser.NewParser()
}

// Parse parses a query string and returns a Query model.
func Parse(queryStr string) (*models.Query, error) {
	p := NewParser()
	return p.Parse(queryStr)
}
