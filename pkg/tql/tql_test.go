package tql_test

import (
	"testing"
	"time"

	"github.com/carverauto/pulse/pkg/tql"
	"github.com/carverauto/pulse/pkg/tql/models"
	"github.com/carverauto/pulse/pkg/tql/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicSelector(t *testing.T) {
	p := tql.NewParser()

	query, err := p.Parse(`metrics{name="cpu_usage", source="a"}[5m]`)
	require.NoError(t, err)
	assert.Equal(t, models.Metrics, query.DataType)
	require.Len(t, query.Matchers, 2)
	assert.Equal(t, "name", query.Matchers[0].Key)
	assert.Equal(t, models.Equals, query.Matchers[0].Operator)
	assert.Equal(t, "cpu_usage", query.Matchers[0].Value)
	assert.Equal(t, "source", query.Matchers[1].Key)
	assert.Equal(t, "a", query.Matchers[1].Value)
	assert.Equal(t, 5*time.Minute, query.TimeRange)
	assert.Empty(t, query.Aggregate)
	assert.Equal(t, models.DefaultLimit, query.Limit)
}

func TestParseAggregateWithRange(t *testing.T) {
	p := tql.NewParser()

	query, err := p.Parse(`avg(metrics{name="mem"})[1h]`)
	require.NoError(t, err)
	assert.Equal(t, models.Avg, query.Aggregate)
	assert.Equal(t, models.Metrics, query.DataType)
	require.Len(t, query.Matchers, 1)
	assert.Equal(t, "mem", query.Matchers[0].Value)
	assert.Equal(t, time.Hour, query.TimeRange)
}

func TestParseBareIdentifier(t *testing.T) {
	query, err := tql.Parse("cpu_usage")
	require.NoError(t, err)
	assert.Equal(t, models.Metrics, query.DataType)
	require.Len(t, query.Matchers, 1)
	assert.Equal(t, "name", query.Matchers[0].Key)
	assert.Equal(t, models.Equals, query.Matchers[0].Operator)
	assert.Equal(t, "cpu_usage", query.Matchers[0].Value)
}

func TestParseOuterDurationTakesPrecedence(t *testing.T) {
	query, err := tql.Parse(`sum(metrics{name="requests"}[5m])[1h]`)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, query.TimeRange)
}

func TestParseTQL(t *testing.T) {
	p := tql.NewParser()

	testCases := []struct {
		name     string
		query    string
		wantErr  error
		validate func(t *testing.T, query *models.Query)
	}{
		{
			name:  "regex matcher on logs",
			query: `logs{level="error", source=~"web-.*"}`,
			validate: func(t *testing.T, query *models.Query) {
				t.Helper()

				assert.Equal(t, models.Logs, query.DataType)
				require.Len(t, query.Matchers, 2)
				assert.Equal(t, models.Regex, query.Matchers[1].Operator)
				assert.Equal(t, "web-.*", query.Matchers[1].Value)
			},
		},
		{
			name:  "numeric comparison matcher",
			query: `metrics{name="cpu_usage", value>="90"}`,
			validate: func(t *testing.T, query *models.Query) {
				t.Helper()

				require.Len(t, query.Matchers, 2)
				assert.Equal(t, models.GreaterOrEq, query.Matchers[1].Operator)
			},
		},
		{
			name:  "not-regex matcher",
			query: `events{name!~"deploy.*"}`,
			validate: func(t *testing.T, query *models.Query) {
				t.Helper()

				assert.Equal(t, models.Events, query.DataType)
				assert.Equal(t, models.NotRegex, query.Matchers[0].Operator)
			},
		},
		{
			name:  "empty selector body",
			query: `traces{}`,
			validate: func(t *testing.T, query *models.Query) {
				t.Helper()

				assert.Equal(t, models.Traces, query.DataType)
				assert.Empty(t, query.Matchers)
			},
		},
		{
			name:  "spans data type",
			query: `spans{trace_id="abc123"}[30s]`,
			validate: func(t *testing.T, query *models.Query) {
				t.Helper()

				assert.Equal(t, models.Spans, query.DataType)
				assert.Equal(t, 30*time.Second, query.TimeRange)
			},
		},
		{
			name:  "count aggregate",
			query: `count(logs{level="error"})[24h]`,
			validate: func(t *testing.T, query *models.Query) {
				t.Helper()

				assert.Equal(t, models.Count, query.Aggregate)
				assert.Equal(t, 24*time.Hour, query.TimeRange)
			},
		},
		{
			name:  "day duration",
			query: `metrics{name="disk"}[7d]`,
			validate: func(t *testing.T, query *models.Query) {
				t.Helper()

				assert.Equal(t, 7*24*time.Hour, query.TimeRange)
			},
		},
		{
			name:    "unbalanced bracket",
			query:   `rate(http_requests_total[5min`,
			wantErr: parser.ErrInvalidSyntax,
		},
		{
			name:    "unknown data type",
			query:   `widgets{name="x"}`,
			wantErr: parser.ErrUnknownDataType,
		},
		{
			name:    "unknown aggregate",
			query:   `median(metrics{name="x"})`,
			wantErr: parser.ErrUnknownAggregate,
		},
		{
			name:    "empty query",
			query:   "   ",
			wantErr: assert.AnError,
		},
		{
			name:    "garbage",
			query:   `{{{`,
			wantErr: parser.ErrInvalidSyntax,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			query, err := p.Parse(tc.query)

			if tc.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, query, "a parse error must never yield a partial AST")

				if tc.wantErr != assert.AnError {
					assert.ErrorIs(t, err, tc.wantErr)
				}

				return
			}

			require.NoError(t, err)
			tc.validate(t, query)
		})
	}
}
