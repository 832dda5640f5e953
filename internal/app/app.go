// internal/app/app.go

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"

	"trendscope/internal/adapter/events"
	"trendscope/internal/adapter/googletrends"
	"trendscope/internal/adapter/storage"
	"trendscope/internal/config"
	"trendscope/internal/domain/trend"
	"trendscope/internal/metrics"
	"trendscope/internal/service/listening"
	"trendscope/internal/service/pipeline"
)

// App holds the wired dependencies shared by the commands
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Store    trend.ReportStore
	Pipeline *pipeline.Pipeline

	db       *pgxpool.Pool
	natsConn *nats.Conn
}

// NewLogger creates a text logger on stderr at the given level
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// New connects the optional database and NATS and builds the pipeline.
// fallback is used as the report store when the database is disabled; it
// may be nil.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, fallback trend.ReportStore) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Store:   fallback,
	}

	if cfg.Database.Enabled {
		db, err := InitDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.db = db

		store := storage.NewReportStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Store = store
	}

	var publisher trend.Publisher = events.NopPublisher{}
	if cfg.NATS.Enabled {
		nc, err := InitNATS(cfg.NATS, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.natsConn = nc

		pub := events.NewNATSPublisher(nc, cfg.NATS.EventsTopic)
		logger.Info("publishing report events", "subject", pub.Subject())
		publisher = pub
	}

	provider, err := googletrends.NewClient(googletrends.Config{
		BaseURL:        cfg.Provider.BaseURL,
		HostLanguage:   cfg.Provider.HostLanguage,
		TZ:             cfg.Provider.TZ,
		Timeout:        cfg.Provider.Timeout,
		ConnectTimeout: cfg.Provider.ConnectTimeout,
		HTTPRetries:    cfg.Provider.HTTPRetries,
		UserAgent:      cfg.Provider.UserAgent,
	}, logger.With("component", "googletrends"))
	if err != nil {
		a.Close()
		return nil, err
	}

	collector := listening.NewCollector(
		provider,
		a.Metrics,
		logger.With("component", "collector"),
		listening.CollectorConfig{
			BatchSize:   cfg.Trends.BatchSize,
			MaxAttempts: cfg.Trends.MaxAttempts,
			RetryDelay:  cfg.Trends.RetryDelay,
			Pause:       cfg.Trends.Pause,
		},
	)

	a.Pipeline = pipeline.New(
		collector,
		a.Store,
		publisher,
		a.Metrics,
		logger.With("component", "pipeline"),
		pipeline.Config{
			Keywords:      cfg.Trends.Keywords,
			Query:         trend.Query{Geo: cfg.Trends.Geo, Timeframe: cfg.Trends.Timeframe},
			OutputDir:     cfg.Output.Dir,
			CSVFile:       cfg.Output.CSVFile,
			LineChartFile: cfg.Output.LineChartFile,
			BarChartFile:  cfg.Output.BarChartFile,
			ChartWidth:    cfg.Output.ChartWidth,
			ChartHeight:   cfg.Output.ChartHeight,
		},
	)

	return a, nil
}

// Close releases the database pool and the NATS connection
func (a *App) Close() {
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.natsConn.Close()
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// InitDatabase opens and pings a connection pool
func InitDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// InitNATS connects to NATS with reconnect logging
func InitNATS(cfg config.NATSConfig, logger *slog.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("trendscope"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
