package render

import (
	"bytes"
	"errors"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	chart "github.com/wcharczuk/go-chart/v2"

	"trendscope/internal/domain/trend"
)

func monthlyTable() *trend.Table {
	t := trend.NewTable()
	for i := 0; i < 24; i++ {
		t.Index = append(t.Index, time.Date(2022, time.Month(i+2), 0, 0, 0, 0, 0, time.UTC))
	}
	up := make([]float64, 24)
	down := make([]float64, 24)
	for i := range up {
		up[i] = float64(20 + i)
		down[i] = float64(80 - 2*i)
	}
	down[5] = math.NaN()

	t.Columns = []string{"mindfulness", "ipnosi"}
	t.Values["mindfulness"] = up
	t.Values["ipnosi"] = down
	return t
}

func TestLineChart(t *testing.T) {
	var buf bytes.Buffer
	err := LineChart(&buf, monthlyTable(), Options{Width: 640, Height: 480, Timeframe: "today 5-y"})
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
}

func TestLineChart_SingleRow(t *testing.T) {
	single := trend.NewTable()
	single.Index = []time.Time{time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)}
	single.Columns = []string{"mindfulness", "ipnosi"}
	single.Values["mindfulness"] = []float64{42}
	single.Values["ipnosi"] = []float64{math.NaN()}

	var buf bytes.Buffer
	require.NoError(t, LineChart(&buf, single, Options{Width: 640, Height: 480, Timeframe: "now 7-d"}))

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
}

func TestLineChart_NotEnoughData(t *testing.T) {
	err := LineChart(io.Discard, trend.NewTable(), Options{})
	assert.ErrorIs(t, err, ErrNotEnoughData)

	allMissing := trend.NewTable()
	allMissing.Index = []time.Time{time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)}
	allMissing.Columns = []string{"trauma"}
	allMissing.Values["trauma"] = []float64{math.NaN()}

	err = LineChart(io.Discard, allMissing, Options{})
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestTimeTicks(t *testing.T) {
	var index []time.Time
	for i := 0; i < 30; i++ {
		index = append(index, time.Date(2022, time.Month(i+2), 0, 0, 0, 0, 0, time.UTC))
	}
	first, last := index[0], index[len(index)-1]

	ticks := timeTicks(first, last, index)
	require.Len(t, ticks, 2)
	assert.Equal(t, "2023", ticks[0].Label)
	assert.Equal(t, "2024", ticks[1].Label)
	assert.Equal(t, chart.TimeToFloat64(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)), ticks[0].Value)

	short := index[:3]
	ticks = timeTicks(short[0], short[2], short)
	require.Len(t, ticks, 3)
	assert.Equal(t, "Jan 2022", ticks[0].Label)
	assert.Equal(t, "Mar 2022", ticks[2].Label)
}

func TestFontHasArrowGlyphs(t *testing.T) {
	f, err := Font()
	require.NoError(t, err)

	for _, r := range []rune{'↑', '↓'} {
		assert.NotZero(t, f.Index(r), "missing glyph for %q", r)
	}
}

func TestBarChart(t *testing.T) {
	stats := []trend.KeywordStats{
		{Keyword: "mindfulness", Mean: 31.5, Slope: 1, Direction: trend.DirectionUp},
		{Keyword: "autostima", Mean: 12, Slope: 0, Direction: trend.DirectionDown},
		{Keyword: "ipnosi", Mean: 57, Slope: -2, Direction: trend.DirectionDown},
	}

	var buf bytes.Buffer
	require.NoError(t, BarChart(&buf, stats, Options{Width: 800, Height: 600, Timeframe: "today 5-y"}))

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
}

func TestBarChart_NoStats(t *testing.T) {
	assert.ErrorIs(t, BarChart(io.Discard, nil, Options{}), ErrNotEnoughData)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "charts", "ok.png")
	require.NoError(t, WriteFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("png"))
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	failed := filepath.Join(dir, "failed.png")
	boom := errors.New("boom")
	assert.ErrorIs(t, WriteFile(failed, func(io.Writer) error { return boom }), boom)
	_, err = os.Stat(failed)
	assert.True(t, os.IsNotExist(err))
}
