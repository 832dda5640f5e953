package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendscope/internal/domain/trend"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthEnd(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{day(2021, time.January, 3), day(2021, time.January, 31)},
		{day(2020, time.February, 10), day(2020, time.February, 29)},
		{day(2021, time.February, 28), day(2021, time.February, 28)},
		{day(2021, time.December, 1), day(2021, time.December, 31)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MonthEnd(tt.in), "MonthEnd(%s)", tt.in)
	}
}

func TestResampleMonthly(t *testing.T) {
	series := trend.Series{
		Keyword: "ipnosi",
		Points: []trend.Point{
			{Time: day(2021, time.March, 5), Value: 30},
			{Time: day(2021, time.January, 3), Value: 10},
			{Time: day(2021, time.January, 10), Value: 20},
		},
	}

	table := ResampleMonthly(series)

	require.Equal(t, []string{"ipnosi"}, table.Columns)
	require.Equal(t, []time.Time{
		day(2021, time.January, 31),
		day(2021, time.February, 28),
		day(2021, time.March, 31),
	}, table.Index)

	values := table.Column("ipnosi")
	assert.Equal(t, 15.0, values[0])
	assert.True(t, math.IsNaN(values[1]))
	assert.Equal(t, 30.0, values[2])
}

func TestResampleMonthly_Empty(t *testing.T) {
	table := ResampleMonthly(trend.Series{Keyword: "trauma"})
	assert.True(t, table.Empty())
}

func TestMerge(t *testing.T) {
	a := &trend.Table{
		Index:   []time.Time{day(2021, time.January, 31), day(2021, time.February, 28)},
		Columns: []string{"a"},
		Values:  map[string][]float64{"a": {1, 2}},
	}
	b := &trend.Table{
		Index:   []time.Time{day(2021, time.February, 28), day(2021, time.March, 31)},
		Columns: []string{"b", "a"},
		Values:  map[string][]float64{"b": {5, 6}, "a": {100, 100}},
	}

	merged := Merge(a, nil, b)

	require.Len(t, merged.Index, 3)
	assert.Equal(t, []string{"a", "b"}, merged.Columns)

	colA := merged.Column("a")
	assert.Equal(t, 1.0, colA[0])
	assert.Equal(t, 2.0, colA[1])
	assert.True(t, math.IsNaN(colA[2]))

	colB := merged.Column("b")
	assert.True(t, math.IsNaN(colB[0]))
	assert.Equal(t, 5.0, colB[1])
	assert.Equal(t, 6.0, colB[2])
}

func TestMean(t *testing.T) {
	assert.Equal(t, 2.0, Mean([]float64{1, math.NaN(), 3}))
	assert.True(t, math.IsNaN(Mean([]float64{math.NaN()})))
	assert.True(t, math.IsNaN(Mean(nil)))
}

func TestSlope(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"rising", []float64{1, 2, 3, 4}, 1},
		{"falling", []float64{8, 6, 4, 2}, -2},
		{"flat", []float64{5, 5, 5}, 0},
		{"missing counts as zero", []float64{2, math.NaN(), 2}, 0},
		{"missing at end pulls down", []float64{4, 4, math.NaN()}, -2},
		{"single row", []float64{7}, 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Slope(tt.values), 1e-9)
		})
	}
}

func TestStats_SortedBySlope(t *testing.T) {
	table := &trend.Table{
		Index: []time.Time{
			day(2021, time.January, 31),
			day(2021, time.February, 28),
			day(2021, time.March, 31),
		},
		Columns: []string{"flat", "down", "up", "zero"},
		Values: map[string][]float64{
			"flat": {1, 1, 1},
			"down": {3, 2, 1},
			"up":   {1, 2, 3},
			"zero": {0, 0, 0},
		},
	}

	stats := Stats(table)

	require.Len(t, stats, 4)
	keywords := []string{stats[0].Keyword, stats[1].Keyword, stats[2].Keyword, stats[3].Keyword}
	assert.Equal(t, []string{"up", "flat", "zero", "down"}, keywords)

	assert.Equal(t, trend.DirectionUp, stats[0].Direction)
	assert.InDelta(t, 2.0, stats[0].Mean, 1e-9)
	assert.Equal(t, trend.DirectionDown, stats[1].Direction)
	assert.Equal(t, trend.DirectionDown, stats[3].Direction)
	assert.InDelta(t, -1.0, stats[3].Slope, 1e-9)
}

func TestAnnotation(t *testing.T) {
	assert.Equal(t, "↑ 0.12", Annotation(trend.KeywordStats{Slope: 0.123, Direction: trend.DirectionUp}))
	assert.Equal(t, "↓ -0.05", Annotation(trend.KeywordStats{Slope: -0.049, Direction: trend.DirectionDown}))
	assert.Equal(t, "↓ 0.00", Annotation(trend.KeywordStats{Slope: 0, Direction: trend.DirectionDown}))
}
