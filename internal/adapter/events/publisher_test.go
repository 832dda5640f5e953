package events

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendscope/internal/domain/trend"
)

func TestNewReportCompleted(t *testing.T) {
	r := &trend.Report{
		ID:          "rep-1",
		Query:       trend.Query{Geo: "IT", Timeframe: "today 12-m"},
		Keywords:    []string{"trauma", "ipnosi"},
		GeneratedAt: time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC),
		Stats: []trend.KeywordStats{
			{Keyword: "trauma", Mean: 42.5, Slope: 0.3, Direction: trend.DirectionUp},
			{Keyword: "ipnosi", Mean: math.NaN(), Slope: -0.1, Direction: trend.DirectionDown},
		},
	}

	ev := NewReportCompleted(r)
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "report.completed", decoded["type"])
	assert.Equal(t, "rep-1", decoded["report_id"])
	assert.Equal(t, []interface{}{}, decoded["missing"])

	stats := decoded["stats"].([]interface{})
	require.Len(t, stats, 2)
	assert.Equal(t, 42.5, stats[0].(map[string]interface{})["mean"])
	assert.Nil(t, stats[1].(map[string]interface{})["mean"])
	assert.Equal(t, "down", stats[1].(map[string]interface{})["direction"])
}

func TestCompletedSubject(t *testing.T) {
	assert.Equal(t, "trends.completed", CompletedSubject("trends"))
	assert.Equal(t, "trends.completed", NewNATSPublisher(nil, "trends").Subject())
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishReport(context.Background(), &trend.Report{}))
}
