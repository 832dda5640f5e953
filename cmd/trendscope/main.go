// cmd/trendscope/main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"trendscope/internal/app"
	"trendscope/internal/config"
	"trendscope/internal/service/analysis"
)

func main() {
	keywords := flag.String("keywords", "", "comma separated keywords (overrides TRENDS_KEYWORDS)")
	geo := flag.String("geo", "", "geography, e.g. IT or IT-52 (overrides TRENDS_GEO)")
	timeframe := flag.String("timeframe", "", "timeframe, e.g. \"today 5-y\" (overrides TRENDS_TIMEFRAME)")
	out := flag.String("out", "", "output directory (overrides OUTPUT_DIR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "keywords":
			cfg.Trends.Keywords = config.NormalizeKeywords(strings.Split(*keywords, ","))
		case "geo":
			cfg.Trends.Geo = *geo
		case "timeframe":
			cfg.Trends.Timeframe = *timeframe
		case "out":
			cfg.Output.Dir = *out
		}
	})
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := app.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	report, err := a.Pipeline.Run(ctx)
	if err != nil {
		a.Close()
		log.Fatalf("Run failed: %v", err)
	}

	for _, st := range report.Stats {
		fmt.Fprintf(os.Stdout, "%-20s mean=%6.2f %s\n", st.Keyword, st.Mean, analysis.Annotation(st))
	}
	if len(report.Missing) > 0 {
		fmt.Fprintf(os.Stdout, "no data: %s\n", strings.Join(report.Missing, ", "))
	}
	fmt.Fprintf(os.Stdout, "csv: %s\n", report.Artifacts.CSVPath)
	if report.Artifacts.LineChartPath != "" {
		fmt.Fprintf(os.Stdout, "line chart: %s\n", report.Artifacts.LineChartPath)
	}
	if report.Artifacts.BarChartPath != "" {
		fmt.Fprintf(os.Stdout, "bar chart: %s\n", report.Artifacts.BarChartPath)
	}
}
