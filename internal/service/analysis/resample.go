package analysis

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"trendscope/internal/domain/trend"
)

// MonthEnd returns the last day of t's month at UTC midnight
func MonthEnd(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// ResampleMonthly averages a series per calendar month. Rows are labelled with
// the month end and every month between the first and the last sample is
// present; months without samples hold NaN.
func ResampleMonthly(s trend.Series) *trend.Table {
	table := trend.NewTable()
	if s.Empty() {
		return table
	}

	points := make([]trend.Point, len(s.Points))
	copy(points, s.Points)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})

	buckets := make(map[time.Time][]float64)
	for _, p := range points {
		if math.IsNaN(p.Value) {
			continue
		}
		key := MonthEnd(p.Time)
		buckets[key] = append(buckets[key], p.Value)
	}

	first := MonthEnd(points[0].Time)
	last := MonthEnd(points[len(points)-1].Time)

	values := []float64{}
	for m := first; !m.After(last); m = MonthEnd(m.AddDate(0, 0, 1)) {
		table.Index = append(table.Index, m)
		if vs, ok := buckets[m]; ok {
			values = append(values, stat.Mean(vs, nil))
		} else {
			values = append(values, math.NaN())
		}
	}

	table.Columns = []string{s.Keyword}
	table.Values[s.Keyword] = values
	return table
}

// Merge joins tables column-wise on the union of their indexes. Cells absent
// from a source table become NaN. A keyword present in several tables keeps
// the column of the first one.
func Merge(tables ...*trend.Table) *trend.Table {
	merged := trend.NewTable()

	seen := make(map[time.Time]struct{})
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, ts := range t.Index {
			if _, ok := seen[ts]; ok {
				continue
			}
			seen[ts] = struct{}{}
			merged.Index = append(merged.Index, ts)
		}
	}
	sort.Slice(merged.Index, func(i, j int) bool {
		return merged.Index[i].Before(merged.Index[j])
	})

	row := make(map[time.Time]int, len(merged.Index))
	for i, ts := range merged.Index {
		row[ts] = i
	}

	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, col := range t.Columns {
			if _, exists := merged.Values[col]; exists {
				continue
			}
			values := make([]float64, len(merged.Index))
			for i := range values {
				values[i] = math.NaN()
			}
			for i, ts := range t.Index {
				values[row[ts]] = t.Values[col][i]
			}
			merged.Columns = append(merged.Columns, col)
			merged.Values[col] = values
		}
	}

	return merged
}
