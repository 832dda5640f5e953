package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"trendscope/internal/domain/trend"
)

// Mean averages the non-NaN values; NaN when there are none
func Mean(values []float64) float64 {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return math.NaN()
	}
	return stat.Mean(present, nil)
}

// Slope fits value = a + b*i by least squares over the row positions
// i = 0..n-1 and returns b. Missing values count as zero.
func Slope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	x := make([]float64, len(values))
	y := make([]float64, len(values))
	for i, v := range values {
		x[i] = float64(i)
		if !math.IsNaN(v) {
			y[i] = v
		}
	}

	_, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

// Stats computes mean and slope for every column, ordered by slope descending.
// Columns with equal slopes keep their table order.
func Stats(table *trend.Table) []trend.KeywordStats {
	if table == nil {
		return nil
	}

	stats := make([]trend.KeywordStats, 0, len(table.Columns))
	for _, col := range table.Columns {
		values := table.Values[col]
		slope := Slope(values)

		direction := trend.DirectionDown
		if slope > 0 {
			direction = trend.DirectionUp
		}

		stats = append(stats, trend.KeywordStats{
			Keyword:   col,
			Mean:      Mean(values),
			Slope:     slope,
			Direction: direction,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Slope > stats[j].Slope
	})

	return stats
}

// Annotation renders the growth indicator shown next to a keyword
func Annotation(s trend.KeywordStats) string {
	arrow := "↓"
	if s.Direction == trend.DirectionUp {
		arrow = "↑"
	}
	return fmt.Sprintf("%s %.2f", arrow, s.Slope)
}
