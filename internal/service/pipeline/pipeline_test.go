package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendscope/internal/adapter/storage"
	"trendscope/internal/domain/trend"
	"trendscope/internal/metrics"
	"trendscope/internal/service/listening"
)

type stubCollector struct {
	result listening.Result
	err    error
	got    []string
}

func (c *stubCollector) Collect(ctx context.Context, keywords []string, q trend.Query) (listening.Result, error) {
	c.got = keywords
	return c.result, c.err
}

type recordingPublisher struct {
	reports []*trend.Report
	err     error
}

func (p *recordingPublisher) PublishReport(ctx context.Context, r *trend.Report) error {
	p.reports = append(p.reports, r)
	return p.err
}

func testTable() *trend.Table {
	t := trend.NewTable()
	for i := 0; i < 12; i++ {
		t.Index = append(t.Index, time.Date(2023, time.Month(i+2), 0, 0, 0, 0, 0, time.UTC))
	}
	t.Columns = []string{"trauma", "mindfulness"}
	t.Values["trauma"] = []float64{60, 58, 56, 54, 52, 50, 48, 46, 44, 42, 40, 38}
	t.Values["mindfulness"] = []float64{10, 12, 14, 16, 18, 20, 22, 24, 26, 28, 30, 32}
	return t
}

func newTestPipeline(t *testing.T, c Collector, store trend.ReportStore, pub trend.Publisher, m *metrics.Metrics) (*Pipeline, string) {
	t.Helper()

	dir := t.TempDir()
	p := New(c, store, pub, m, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Keywords:      []string{"trauma", "mindfulness", "hikikomori"},
		Query:         trend.Query{Geo: "IT-52", Timeframe: "today 5-y"},
		OutputDir:     dir,
		CSVFile:       "GoogleTrends_Mensile.csv",
		LineChartFile: "GoogleTrends_Mensile_Plot.png",
		BarChartFile:  "GoogleTrends_Bar_Plot_Sorted_Averages.png",
		ChartWidth:    640,
		ChartHeight:   480,
	})
	p.newID = func() string { return "report-1" }
	return p, dir
}

func TestRun(t *testing.T) {
	collector := &stubCollector{result: listening.Result{Table: testTable(), Missing: []string{"hikikomori"}}}
	store := storage.NewMemoryStore(0)
	pub := &recordingPublisher{}
	m := metrics.New()

	p, dir := newTestPipeline(t, collector, store, pub, m)

	var handled []string
	p.RegisterReportHandler(func(r *trend.Report) { handled = append(handled, r.ID) })

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "report-1", report.ID)
	assert.Equal(t, []string{"trauma", "mindfulness", "hikikomori"}, collector.got)
	assert.Equal(t, []string{"hikikomori"}, report.Missing)

	require.Len(t, report.Stats, 2)
	assert.Equal(t, "mindfulness", report.Stats[0].Keyword)
	assert.Equal(t, trend.DirectionUp, report.Stats[0].Direction)
	assert.Equal(t, "trauma", report.Stats[1].Keyword)
	assert.Equal(t, trend.DirectionDown, report.Stats[1].Direction)

	assert.Equal(t, filepath.Join(dir, "GoogleTrends_Mensile.csv"), report.Artifacts.CSVPath)
	for _, path := range []string{report.Artifacts.CSVPath, report.Artifacts.LineChartPath, report.Artifacts.BarChartPath} {
		require.NotEmpty(t, path)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	stored, err := store.GetReport(context.Background(), "report-1")
	require.NoError(t, err)
	assert.Same(t, report, stored)

	require.Len(t, pub.reports, 1)
	assert.Equal(t, []string{"report-1"}, handled)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(metrics.StatusOK)))
}

func TestRun_PublishFailureDoesNotFailRun(t *testing.T) {
	collector := &stubCollector{result: listening.Result{Table: testTable()}}
	pub := &recordingPublisher{err: errors.New("nats down")}

	p, _ := newTestPipeline(t, collector, nil, pub, nil)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, report)
}

func TestRun_NoData(t *testing.T) {
	collector := &stubCollector{result: listening.Result{Table: trend.NewTable(), Missing: []string{"trauma"}}}
	m := metrics.New()

	p, dir := newTestPipeline(t, collector, nil, nil, m)

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, trend.ErrNoData)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(metrics.StatusFailed)))

	_, statErr := os.Stat(filepath.Join(dir, "GoogleTrends_Mensile.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_CollectorError(t *testing.T) {
	collector := &stubCollector{err: context.Canceled}
	p, _ := newTestPipeline(t, collector, nil, nil, nil)

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_SingleRowStillDrawsLineChart(t *testing.T) {
	table := testTable()
	table.Index = table.Index[:1]
	table.Values["trauma"] = table.Values["trauma"][:1]
	table.Values["mindfulness"] = table.Values["mindfulness"][:1]

	p, _ := newTestPipeline(t, &stubCollector{result: listening.Result{Table: table}}, nil, nil, nil)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, report.Artifacts.LineChartPath)
	assert.FileExists(t, report.Artifacts.BarChartPath)
	assert.NotEmpty(t, report.Artifacts.CSVPath)
}

func TestRun_LockedOutputDir(t *testing.T) {
	p, dir := newTestPipeline(t, &stubCollector{result: listening.Result{Table: testTable()}}, nil, nil, nil)

	held := flock.New(filepath.Join(dir, lockFile))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
}
