// Package parser turns TQL query strings into typed query models. The
// grammar is regular, so the parser is a small set of anchored regular
// expressions rather than a generated grammar.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/pulse/pkg/tql/models"
)

var (
	aggregatePattern  = regexp.MustCompile(`^(\w+)\s*\(\s*(.+)\s*\)\s*(\[\d+[smhd]\])?$`)
	basicPattern      = regexp.MustCompile(`^(\w+)\s*\{([^}]*)\}\s*(\[\d+[smhd]\])?$`)
	labelPattern      = regexp.MustCompile(`(\w+)\s*(=~|!~|!=|>=|<=|=|>|<)\s*"([^"]*)"`)
	identifierPattern = regexp.MustCompile(`^\w+$`)
	durationPattern   = regexp.MustCompile(`^(\d+)([smhd])$`)
)

// Parser parses TQL query strings.
type Parser struct{}

// NewParser creates a new TQL parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses a query string into a Query. A bare identifier is sugar for
// metrics{name="<identifier>"}. A duration on the outer aggregate call takes
// precedence over one on the inner selector.
func (p *Parser) Parse(queryStr string) (*models.Query, error) {
	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" {
		return nil, errEmptyQuery
	}

	query := &models.Query{Limit: models.DefaultLimit}
	selector := queryStr

	if m := aggregatePattern.FindStringSubmatch(queryStr); m != nil {
		fnName := strings.ToLower(m[1])
		if !models.ValidAggregate(fnName) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAggregate, fnName)
		}

		query.Aggregate = models.AggregateFunction(fnName)
		selector = strings.TrimSpace(m[2])

		if m[3] != "" {
			rng, err := parseDuration(strings.Trim(m[3], "[]"))
			if err != nil {
				return nil, err
			}

			query.TimeRange = rng
		}
	}

	m := basicPattern.FindStringSubmatch(selector)
	if m == nil {
		if identifierPattern.MatchString(selector) {
			query.DataType = models.Metrics
			query.Matchers = []models.LabelMatcher{
				{Key: "name", Operator: models.Equals, Value: selector},
			}

			return query, nil
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidSyntax, selector)
	}

	dataType := strings.ToLower(m[1])
	if !models.ValidDataType(dataType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataType, dataType)
	}

	query.DataType = models.DataType(dataType)
	query.Matchers = parseMatchers(m[2])

	if m[3] != "" && query.TimeRange == 0 {
		rng, err := parseDuration(strings.Trim(m[3], "[]"))
		if err != nil {
			return nil, err
		}

		query.TimeRange = rng
	}

	return query, nil
}

func parseMatchers(labels string) []models.LabelMatcher {
	if strings.TrimSpace(labels) == "" {
		return nil
	}

	var matchers []models.LabelMatcher

	for _, m := range labelPattern.FindAllStringSubmatch(labels, -1) {
		matchers = append(matchers, models.LabelMatcher{
			Key:      m[1],
			Operator: models.OperatorType(m[2]),
			Value:    m[3],
		})
	}

	return matchers
}

func parseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
	}

	value, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
	}

	switch m[2] {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
	}
}
