// internal/service/listening/collector.go

package listening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"trendscope/internal/domain/trend"
	"trendscope/internal/metrics"
	"trendscope/internal/retry"
	"trendscope/internal/service/analysis"
)

// CollectorConfig contains configuration for the collector
type CollectorConfig struct {
	BatchSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	Pause       time.Duration
}

// Result is the merged outcome of a collection
type Result struct {
	Table   *trend.Table
	Missing []string
}

// Collector fetches keyword series batch by batch and resamples them monthly
type Collector struct {
	provider trend.Provider
	config   CollectorConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	limiter  *rate.Limiter
}

// NewCollector creates a new collector
func NewCollector(
	provider trend.Provider,
	m *metrics.Metrics,
	logger *slog.Logger,
	config CollectorConfig,
) *Collector {
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if config.Pause > 0 {
		limit = rate.Every(config.Pause)
	}

	return &Collector{
		provider: provider,
		config:   config,
		metrics:  m,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Batches splits keywords into consecutive groups of at most size elements
func Batches(keywords []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var batches [][]string
	for i := 0; i < len(keywords); i += size {
		end := i + size
		if end > len(keywords) {
			end = len(keywords)
		}
		batches = append(batches, keywords[i:end])
	}
	return batches
}

// Collect fetches every keyword and returns the merged monthly table. Keywords
// that yield nothing after all attempts are listed in Result.Missing; only a
// cancelled context aborts the collection.
func (c *Collector) Collect(ctx context.Context, keywords []string, q trend.Query) (Result, error) {
	var (
		tables  []*trend.Table
		missing []string
	)

	batches := Batches(keywords, c.config.BatchSize)
	for i, batch := range batches {
		c.logger.Info("collecting batch", "batch", i+1, "batches", len(batches), "keywords", batch)

		table, batchMissing, err := c.collectBatch(ctx, batch, q)
		if err != nil {
			return Result{}, err
		}
		tables = append(tables, table)
		missing = append(missing, batchMissing...)
	}

	return Result{
		Table:   analysis.Merge(tables...),
		Missing: missing,
	}, nil
}

// collectBatch fetches the keywords of one batch
func (c *Collector) collectBatch(ctx context.Context, batch []string, q trend.Query) (*trend.Table, []string, error) {
	var (
		tables  []*trend.Table
		missing []string
	)

	for _, keyword := range batch {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}

		series, err := c.fetchKeyword(ctx, keyword, q)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			c.logger.Error("giving up on keyword", "keyword", keyword, "error", err)
			c.missing()
			missing = append(missing, keyword)
			continue
		}

		tables = append(tables, analysis.ResampleMonthly(series))
		c.logger.Info("data retrieved", "keyword", keyword, "samples", len(series.Points))
	}

	return analysis.Merge(tables...), missing, nil
}

// fetchKeyword calls the provider until it returns data. Empty results are
// retried at once, errors after RetryDelay.
func (c *Collector) fetchKeyword(ctx context.Context, keyword string, q trend.Query) (trend.Series, error) {
	var series trend.Series

	err := retry.Do(ctx, func(attempt int) error {
		s, err := c.provider.InterestOverTime(ctx, keyword, q)
		if err == nil && s.Empty() {
			err = trend.ErrNoData
		}
		if err != nil {
			return err
		}
		c.attempt(metrics.OutcomeSuccess)
		series = s
		return nil
	},
		retry.WithMaxAttempts(c.config.MaxAttempts),
		retry.WithBackoff(retry.FixedBackoff(c.config.RetryDelay)),
		retry.WithImmediateRetry(func(err error) bool {
			return errors.Is(err, trend.ErrNoData)
		}),
		retry.WithOnRetry(func(attempt int, err error) {
			if errors.Is(err, trend.ErrNoData) {
				c.attempt(metrics.OutcomeEmpty)
				c.logger.Warn("no data", "keyword", keyword, "attempt", attempt+1)
				return
			}
			c.attempt(metrics.OutcomeError)
			c.logger.Warn("fetch failed", "keyword", keyword, "attempt", attempt+1, "error", err)
		}),
	)
	if err != nil {
		return trend.Series{}, fmt.Errorf("fetching %q: %w", keyword, err)
	}

	return series, nil
}

func (c *Collector) attempt(outcome string) {
	if c.metrics != nil {
		c.metrics.FetchAttempts.WithLabelValues(outcome).Inc()
	}
}

func (c *Collector) missing() {
	if c.metrics != nil {
		c.metrics.KeywordsMissing.Inc()
	}
}
