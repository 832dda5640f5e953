// internal/service/pipeline/pipeline.go

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"trendscope/internal/adapter/storage"
	"trendscope/internal/domain/trend"
	"trendscope/internal/metrics"
	"trendscope/internal/service/analysis"
	"trendscope/internal/service/listening"
	"trendscope/internal/service/render"
)

const lockFile = ".trendscope.lock"

// ErrRunInProgress is returned when another run holds the output directory
var ErrRunInProgress = errors.New("another run is writing to the output directory")

// Collector fetches the monthly table for a set of keywords
type Collector interface {
	Collect(ctx context.Context, keywords []string, q trend.Query) (listening.Result, error)
}

// Config contains configuration for a pipeline run
type Config struct {
	Keywords      []string
	Query         trend.Query
	OutputDir     string
	CSVFile       string
	LineChartFile string
	BarChartFile  string
	ChartWidth    int
	ChartHeight   int
}

// Pipeline runs collection, export, analysis and rendering in sequence
type Pipeline struct {
	collector Collector
	store     trend.ReportStore
	publisher trend.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	config    Config

	handlers []func(*trend.Report)
	mu       sync.RWMutex

	now   func() time.Time
	newID func() string
}

// New creates a pipeline. store and publisher may be nil.
func New(
	collector Collector,
	store trend.ReportStore,
	publisher trend.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	config Config,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if config.OutputDir == "" {
		config.OutputDir = "."
	}

	return &Pipeline{
		collector: collector,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		config:    config,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// RegisterReportHandler registers a callback invoked after every successful run
func (p *Pipeline) RegisterReportHandler(handler func(*trend.Report)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers = append(p.handlers, handler)
}

// Run executes one collection run with the configured keywords and query
func (p *Pipeline) Run(ctx context.Context) (*trend.Report, error) {
	start := p.now()

	report, err := p.run(ctx)

	if p.metrics != nil {
		p.metrics.RunDuration.Observe(p.now().Sub(start).Seconds())
		status := metrics.StatusOK
		if err != nil {
			status = metrics.StatusFailed
		} else {
			p.metrics.LastRunTime.Set(float64(report.GeneratedAt.Unix()))
		}
		p.metrics.Runs.WithLabelValues(status).Inc()
	}

	if err != nil {
		return nil, err
	}

	p.callReportHandlers(report)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context) (*trend.Report, error) {
	cfg := p.config

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.OutputDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("error locking output directory: %w", err)
	}
	if !locked {
		return nil, ErrRunInProgress
	}
	defer lock.Unlock()

	p.logger.Info("starting run",
		"keywords", len(cfg.Keywords),
		"geo", cfg.Query.Geo,
		"timeframe", cfg.Query.Timeframe,
	)

	result, err := p.collector.Collect(ctx, cfg.Keywords, cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("error collecting trends: %w", err)
	}
	if result.Table.Empty() {
		return nil, fmt.Errorf("%w: no keyword returned data", trend.ErrNoData)
	}

	report := &trend.Report{
		ID:          p.newID(),
		Query:       cfg.Query,
		Keywords:    cfg.Keywords,
		GeneratedAt: p.now().UTC(),
		Table:       result.Table,
		Missing:     result.Missing,
	}

	csvPath := p.path(cfg.CSVFile)
	if err := storage.WriteCSVFile(csvPath, report.Table); err != nil {
		return nil, err
	}
	report.Artifacts.CSVPath = csvPath
	p.logger.Info("table written", "path", csvPath, "rows", report.Table.Len(), "columns", len(report.Table.Columns))

	report.Stats = analysis.Stats(report.Table)

	opts := render.Options{
		Width:     cfg.ChartWidth,
		Height:    cfg.ChartHeight,
		Timeframe: cfg.Query.Timeframe,
	}
	report.Artifacts.LineChartPath = p.renderChart("line", cfg.LineChartFile, func(w io.Writer) error {
		return render.LineChart(w, report.Table, opts)
	})
	report.Artifacts.BarChartPath = p.renderChart("bar", cfg.BarChartFile, func(w io.Writer) error {
		return render.BarChart(w, report.Stats, opts)
	})

	if p.store != nil {
		if err := p.store.SaveReport(ctx, report); err != nil {
			p.logger.Error("error saving report", "report", report.ID, "error", err)
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishReport(ctx, report); err != nil {
			p.logger.Error("error publishing report event", "report", report.ID, "error", err)
		}
	}

	p.logger.Info("run complete", "report", report.ID, "missing", report.Missing)
	return report, nil
}

// renderChart writes one chart and returns its path, or "" when it could not
// be produced
func (p *Pipeline) renderChart(kind, file string, draw func(io.Writer) error) string {
	if file == "" {
		return ""
	}

	path := p.path(file)
	if err := render.WriteFile(path, draw); err != nil {
		p.logger.Warn("chart not rendered", "chart", kind, "error", err)
		return ""
	}

	p.logger.Info("chart written", "chart", kind, "path", path)
	return path
}

func (p *Pipeline) path(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(p.config.OutputDir, file)
}

// callReportHandlers calls all registered report handlers
func (p *Pipeline) callReportHandlers(r *trend.Report) {
	p.mu.RLock()
	handlers := make([]func(*trend.Report), len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	for _, handler := range handlers {
		handler(r)
	}
}
