package trend

import (
	"math"
	"time"
)

// Point is a single provider sample for one keyword
type Point struct {
	Time    time.Time
	Value   float64
	Partial bool
}

// Series holds the raw samples returned for one keyword
type Series struct {
	Keyword string
	Points  []Point
}

// Empty reports whether the series carries no samples
func (s Series) Empty() bool {
	return len(s.Points) == 0
}

// Query describes what the provider is asked for
type Query struct {
	Geo       string
	Timeframe string
}

// Table is a month-indexed table with one column per keyword.
// Missing cells hold NaN.
type Table struct {
	Index   []time.Time
	Columns []string
	Values  map[string][]float64
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{
		Values: make(map[string][]float64),
	}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Index)
}

// Empty reports whether the table has no columns or no rows
func (t *Table) Empty() bool {
	return t == nil || len(t.Columns) == 0 || len(t.Index) == 0
}

// Column returns the values of a keyword column, or nil if absent
func (t *Table) Column(keyword string) []float64 {
	if t == nil {
		return nil
	}
	return t.Values[keyword]
}

// Max returns the largest non-NaN value in the table, or NaN when there is none
func (t *Table) Max() float64 {
	max := math.NaN()
	if t == nil {
		return max
	}
	for _, col := range t.Columns {
		for _, v := range t.Values[col] {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(max) || v > max {
				max = v
			}
		}
	}
	return max
}

// Direction is the sign of a keyword's linear trend
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// KeywordStats holds the scalar statistics computed per keyword
type KeywordStats struct {
	Keyword   string    `json:"keyword"`
	Mean      float64   `json:"mean"`
	Slope     float64   `json:"slope"`
	Direction Direction `json:"direction"`
}

// Artifacts lists the files produced by a run. Empty paths were not produced.
type Artifacts struct {
	CSVPath       string
	LineChartPath string
	BarChartPath  string
}

// Report is the result of one collection run
type Report struct {
	ID          string
	Query       Query
	Keywords    []string
	GeneratedAt time.Time
	Table       *Table
	Stats       []KeywordStats
	Missing     []string
	Artifacts   Artifacts
}

// Summary is a compact view of a report used in listings and events
type Summary struct {
	ID          string        `json:"id"`
	Geo         string        `json:"geo"`
	Timeframe   string        `json:"timeframe"`
	Keywords    []string      `json:"keywords"`
	Missing     []string      `json:"missing,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
	Stats       []StatSummary `json:"stats"`
}

// StatSummary is KeywordStats with an undefined mean as null
type StatSummary struct {
	Keyword   string    `json:"keyword"`
	Mean      *float64  `json:"mean"`
	Slope     float64   `json:"slope"`
	Direction Direction `json:"direction"`
}

// NewStatSummary converts s, dropping a NaN or infinite mean
func NewStatSummary(s KeywordStats) StatSummary {
	sm := StatSummary{
		Keyword:   s.Keyword,
		Slope:     s.Slope,
		Direction: s.Direction,
	}
	if !math.IsNaN(s.Mean) && !math.IsInf(s.Mean, 0) {
		mean := s.Mean
		sm.Mean = &mean
	}
	return sm
}

// Summarize builds the summary of a report
func (r *Report) Summarize() Summary {
	sm := Summary{
		ID:          r.ID,
		Geo:         r.Query.Geo,
		Timeframe:   r.Query.Timeframe,
		Keywords:    r.Keywords,
		Missing:     r.Missing,
		GeneratedAt: r.GeneratedAt,
		Stats:       make([]StatSummary, 0, len(r.Stats)),
	}
	for _, st := range r.Stats {
		sm.Stats = append(sm.Stats, NewStatSummary(st))
	}
	return sm
}
