// internal/adapter/storage/report_store.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trendscope/internal/domain/trend"
)

// Schema creates the report tables when they do not exist
const Schema = `
CREATE TABLE IF NOT EXISTS reports (
	id              TEXT PRIMARY KEY,
	geo             TEXT NOT NULL,
	timeframe       TEXT NOT NULL,
	keywords        TEXT[] NOT NULL,
	columns         TEXT[] NOT NULL,
	missing         TEXT[] NOT NULL,
	generated_at    TIMESTAMPTZ NOT NULL,
	csv_path        TEXT NOT NULL DEFAULT '',
	line_chart_path TEXT NOT NULL DEFAULT '',
	bar_chart_path  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS reports_generated_at_idx ON reports (generated_at DESC);

CREATE TABLE IF NOT EXISTS report_points (
	report_id TEXT NOT NULL REFERENCES reports (id) ON DELETE CASCADE,
	keyword   TEXT NOT NULL,
	bucket    DATE NOT NULL,
	value     DOUBLE PRECISION,
	PRIMARY KEY (report_id, keyword, bucket)
);

CREATE TABLE IF NOT EXISTS report_stats (
	report_id TEXT NOT NULL REFERENCES reports (id) ON DELETE CASCADE,
	keyword   TEXT NOT NULL,
	rank      INT NOT NULL,
	mean      DOUBLE PRECISION,
	slope     DOUBLE PRECISION NOT NULL,
	direction TEXT NOT NULL,
	PRIMARY KEY (report_id, keyword)
);
`

// ReportStore implements report storage on PostgreSQL
type ReportStore struct {
	db *pgxpool.Pool
}

// NewReportStore creates a new report store
func NewReportStore(db *pgxpool.Pool) *ReportStore {
	return &ReportStore{
		db: db,
	}
}

// EnsureSchema creates the tables used by the store
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}

// SaveReport stores a report, its table and its statistics in one transaction
func (s *ReportStore) SaveReport(ctx context.Context, r *trend.Report) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var columns []string
	if r.Table != nil {
		columns = r.Table.Columns
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reports (
			id, geo, timeframe, keywords, columns, missing, generated_at,
			csv_path, line_chart_path, bar_chart_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		r.ID,
		r.Query.Geo,
		r.Query.Timeframe,
		nonNil(r.Keywords),
		nonNil(columns),
		nonNil(r.Missing),
		r.GeneratedAt,
		r.Artifacts.CSVPath,
		r.Artifacts.LineChartPath,
		r.Artifacts.BarChartPath,
	)
	if err != nil {
		return fmt.Errorf("error inserting report: %w", err)
	}

	if rows := pointRows(r.ID, r.Table); len(rows) > 0 {
		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"report_points"},
			[]string{"report_id", "keyword", "bucket", "value"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("error copying report points: %w", err)
		}
	}

	for rank, st := range r.Stats {
		_, err = tx.Exec(ctx, `
			INSERT INTO report_stats (report_id, keyword, rank, mean, slope, direction)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, r.ID, st.Keyword, rank, nullable(st.Mean), st.Slope, string(st.Direction))
		if err != nil {
			return fmt.Errorf("error inserting stats for %q: %w", st.Keyword, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by ID
func (s *ReportStore) GetReport(ctx context.Context, id string) (*trend.Report, error) {
	var (
		r       trend.Report
		columns []string
	)

	err := s.db.QueryRow(ctx, `
		SELECT
			id, geo, timeframe, keywords, columns, missing, generated_at,
			csv_path, line_chart_path, bar_chart_path
		FROM reports
		WHERE id = $1
	`, id).Scan(
		&r.ID,
		&r.Query.Geo,
		&r.Query.Timeframe,
		&r.Keywords,
		&columns,
		&r.Missing,
		&r.GeneratedAt,
		&r.Artifacts.CSVPath,
		&r.Artifacts.LineChartPath,
		&r.Artifacts.BarChartPath,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, trend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying report: %w", err)
	}

	points, err := s.loadPoints(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Table = tableFromPoints(columns, points)

	r.Stats, err = s.loadStats(ctx, id)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// LatestReport retrieves the most recently generated report
func (s *ReportStore) LatestReport(ctx context.Context) (*trend.Report, error) {
	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM reports ORDER BY generated_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, trend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying latest report: %w", err)
	}

	return s.GetReport(ctx, id)
}

// ListReports returns report summaries with their stats, newest first
func (s *ReportStore) ListReports(ctx context.Context, limit int) ([]trend.Summary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, geo, timeframe, keywords, missing, generated_at
		FROM reports
		ORDER BY generated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var (
		summaries []trend.Summary
		ids       []string
	)
	for rows.Next() {
		var sm trend.Summary
		if err := rows.Scan(&sm.ID, &sm.Geo, &sm.Timeframe, &sm.Keywords, &sm.Missing, &sm.GeneratedAt); err != nil {
			return nil, fmt.Errorf("error scanning report: %w", err)
		}
		summaries = append(summaries, sm)
		ids = append(ids, sm.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return summaries, nil
	}

	stats, err := s.loadStatSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	attachStats(summaries, stats)

	return summaries, nil
}

// loadStatSummaries returns the ranked stats of several reports keyed by report ID
func (s *ReportStore) loadStatSummaries(ctx context.Context, ids []string) (map[string][]trend.StatSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT report_id, keyword, mean, slope, direction
		FROM report_stats
		WHERE report_id = ANY($1)
		ORDER BY report_id, rank
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("error querying report stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string][]trend.StatSummary, len(ids))
	for rows.Next() {
		var (
			id        string
			st        trend.StatSummary
			direction string
		)
		if err := rows.Scan(&id, &st.Keyword, &st.Mean, &st.Slope, &direction); err != nil {
			return nil, fmt.Errorf("error scanning report stats: %w", err)
		}
		st.Direction = trend.Direction(direction)
		stats[id] = append(stats[id], st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report stats: %w", err)
	}

	return stats, nil
}

// attachStats sets the stats of every summary, using an empty list for
// reports without stats
func attachStats(summaries []trend.Summary, stats map[string][]trend.StatSummary) {
	for i := range summaries {
		st := stats[summaries[i].ID]
		if st == nil {
			st = []trend.StatSummary{}
		}
		summaries[i].Stats = st
	}
}

type point struct {
	keyword string
	bucket  time.Time
	value   *float64
}

func (s *ReportStore) loadPoints(ctx context.Context, id string) ([]point, error) {
	rows, err := s.db.Query(ctx, `
		SELECT keyword, bucket, value
		FROM report_points
		WHERE report_id = $1
		ORDER BY bucket
	`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying report points: %w", err)
	}
	defer rows.Close()

	var points []point
	for rows.Next() {
		var p point
		if err := rows.Scan(&p.keyword, &p.bucket, &p.value); err != nil {
			return nil, fmt.Errorf("error scanning report point: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report points: %w", err)
	}

	return points, nil
}

func (s *ReportStore) loadStats(ctx context.Context, id string) ([]trend.KeywordStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT keyword, mean, slope, direction
		FROM report_stats
		WHERE report_id = $1
		ORDER BY rank
	`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying report stats: %w", err)
	}
	defer rows.Close()

	var stats []trend.KeywordStats
	for rows.Next() {
		var (
			st        trend.KeywordStats
			mean      *float64
			direction string
		)
		if err := rows.Scan(&st.Keyword, &mean, &st.Slope, &direction); err != nil {
			return nil, fmt.Errorf("error scanning report stats: %w", err)
		}
		st.Mean = math.NaN()
		if mean != nil {
			st.Mean = *mean
		}
		st.Direction = trend.Direction(direction)
		stats = append(stats, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report stats: %w", err)
	}

	return stats, nil
}

// pointRows flattens a table into COPY rows; NaN becomes NULL
func pointRows(id string, t *trend.Table) [][]interface{} {
	if t == nil {
		return nil
	}

	var rows [][]interface{}
	for _, col := range t.Columns {
		for i, ts := range t.Index {
			rows = append(rows, []interface{}{id, col, ts, nullable(t.Values[col][i])})
		}
	}
	return rows
}

// tableFromPoints rebuilds a table from stored points, keeping column order
func tableFromPoints(columns []string, points []point) *trend.Table {
	t := trend.NewTable()

	seen := make(map[time.Time]int)
	for _, p := range points {
		bucket := p.bucket.UTC()
		if _, ok := seen[bucket]; !ok {
			seen[bucket] = 0
			t.Index = append(t.Index, bucket)
		}
	}
	sort.Slice(t.Index, func(i, j int) bool {
		return t.Index[i].Before(t.Index[j])
	})
	for i, ts := range t.Index {
		seen[ts] = i
	}

	for _, col := range columns {
		values := make([]float64, len(t.Index))
		for i := range values {
			values[i] = math.NaN()
		}
		t.Columns = append(t.Columns, col)
		t.Values[col] = values
	}

	for _, p := range points {
		values, ok := t.Values[p.keyword]
		if !ok || p.value == nil {
			continue
		}
		values[seen[p.bucket.UTC()]] = *p.value
	}

	return t
}

func nullable(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
