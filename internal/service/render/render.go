// Package render draws the trend charts as PNG images.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/freetype/truetype"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font/gofont/goregular"

	"trendscope/internal/domain/trend"
	"trendscope/internal/service/analysis"
)

// ErrNotEnoughData is returned when there is nothing meaningful to draw
var ErrNotEnoughData = errors.New("not enough data to render chart")

// singleRowPad widens the time axis around a table with one month
const singleRowPad = 15 * 24 * time.Hour

var (
	fontOnce sync.Once
	font     *truetype.Font
	fontErr  error
)

// Font returns the font used for all chart text. Unlike the go-chart default
// it has glyphs for the growth arrows.
func Font() (*truetype.Font, error) {
	fontOnce.Do(func() {
		font, fontErr = truetype.Parse(goregular.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("error parsing chart font: %w", fontErr)
		}
	})
	return font, fontErr
}

var (
	barFill   = drawing.Color{R: 135, G: 206, B: 235, A: 204}
	risingFg  = chart.ColorGreen
	fallingFg = chart.ColorRed
)

// Options controls chart size and labelling
type Options struct {
	Width     int
	Height    int
	Timeframe string
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 1200
	}
	if h <= 0 {
		h = 800
	}
	return w, h
}

// LineChart draws one line per keyword over the monthly index. A table with a
// single month is drawn as dots on a padded axis.
func LineChart(w io.Writer, t *trend.Table, opts Options) error {
	if t.Len() == 0 || len(t.Columns) == 0 {
		return ErrNotEnoughData
	}

	f, err := Font()
	if err != nil {
		return err
	}

	series := make([]chart.Series, 0, len(t.Columns))
	for _, col := range t.Columns {
		var (
			xs []time.Time
			ys []float64
		)
		values := t.Values[col]
		for i := 0; i < t.Len() && i < len(values); i++ {
			if math.IsNaN(values[i]) {
				continue
			}
			xs = append(xs, t.Index[i])
			ys = append(ys, values[i])
		}
		if len(xs) == 0 {
			continue
		}

		style := chart.Style{StrokeWidth: 2}
		if len(xs) == 1 {
			style.DotWidth = 5
		}
		series = append(series, chart.TimeSeries{
			Name:    col,
			XValues: xs,
			YValues: ys,
			Style:   style,
		})
	}
	if len(series) == 0 {
		return ErrNotEnoughData
	}

	yMax := 100.0
	if m := t.Max(); !math.IsNaN(m) && m > yMax {
		yMax = m
	}

	first, last := t.Index[0], t.Index[t.Len()-1]
	if t.Len() == 1 {
		first, last = first.Add(-singleRowPad), last.Add(singleRowPad)
	}

	width, height := opts.size()
	ch := chart.Chart{
		Title:      fmt.Sprintf("Google Trends: Monthly Analysis (%s)", opts.Timeframe),
		TitleStyle: chart.Style{Padding: chart.Box{Top: 10}},
		Font:       f,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 90, Left: 24, Right: 24, Bottom: 24}},
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006"),
			Range: &chart.ContinuousRange{
				Min: chart.TimeToFloat64(first),
				Max: chart.TimeToFloat64(last),
			},
			Ticks: timeTicks(first, last, t.Index),
		},
		YAxis: chart.YAxis{
			Name:  "Interest (%)",
			Range: &chart.ContinuousRange{Min: 0, Max: yMax},
		},
		Series: series,
	}
	// The legend sits in the top padding, between the title and the plot.
	ch.Elements = []chart.Renderable{chart.LegendThin(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("error rendering line chart: %w", err)
	}
	return nil
}

// timeTicks returns one tick per January inside [first, last]. Ranges that
// span fewer than two Januaries get month ticks from index instead.
func timeTicks(first, last time.Time, index []time.Time) []chart.Tick {
	var ticks []chart.Tick
	for y := first.Year(); y <= last.Year(); y++ {
		jan := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		if jan.Before(first) || jan.After(last) {
			continue
		}
		ticks = append(ticks, chart.Tick{Value: chart.TimeToFloat64(jan), Label: jan.Format("2006")})
	}
	if len(ticks) >= 2 {
		return ticks
	}

	ticks = ticks[:0]
	step := 1 + len(index)/12
	for i := 0; i < len(index); i += step {
		ticks = append(ticks, chart.Tick{Value: chart.TimeToFloat64(index[i]), Label: index[i].Format("Jan 2006")})
	}
	return ticks
}

// BarChart draws the mean interest per keyword in the given order, labelled
// with the growth indicator of each keyword
func BarChart(w io.Writer, stats []trend.KeywordStats, opts Options) error {
	if len(stats) == 0 {
		return ErrNotEnoughData
	}

	f, err := Font()
	if err != nil {
		return err
	}

	top := 0.0
	bars := make([]chart.Value, 0, len(stats))
	for _, st := range stats {
		mean := st.Mean
		if math.IsNaN(mean) {
			mean = 0
		}
		if mean > top {
			top = mean
		}

		outline := fallingFg
		if st.Direction == trend.DirectionUp {
			outline = risingFg
		}

		bars = append(bars, chart.Value{
			Value: mean,
			Label: fmt.Sprintf("%s %s", st.Keyword, analysis.Annotation(st)),
			Style: chart.Style{
				FillColor:   barFill,
				StrokeColor: outline,
				StrokeWidth: 3,
			},
		})
	}

	width, height := opts.size()
	barWidth := (width - 160) / (2 * len(bars))
	if barWidth < 8 {
		barWidth = 8
	}

	bc := chart.BarChart{
		Title:      fmt.Sprintf("Average Interest (%s) with Growth Indicators", opts.Timeframe),
		Font:       f,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barWidth,
		Background: chart.Style{Padding: chart.Box{Top: 60, Left: 24, Right: 24, Bottom: 24}},
		YAxis: chart.YAxis{
			Name:  "Average Interest (%)",
			Range: &chart.ContinuousRange{Min: 0, Max: math.Max(top*1.1, 1)},
		},
		Bars: bars,
	}

	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("error rendering bar chart: %w", err)
	}
	return nil
}

// WriteFile renders into path, creating parent directories. The file is
// removed again when rendering fails.
func WriteFile(path string, draw func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}

	if err := draw(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
