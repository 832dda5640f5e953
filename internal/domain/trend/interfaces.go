// internal/domain/trend/interfaces.go

package trend

import (
	"context"
	"errors"
)

// Common errors
var (
	// ErrNoData is returned when the provider has no samples for a keyword
	ErrNoData = errors.New("no data")

	// ErrNotFound is returned when a report does not exist
	ErrNotFound = errors.New("not found")
)

// Provider defines the interface for an external trends data source
type Provider interface {
	// InterestOverTime returns the popularity samples of a single keyword
	InterestOverTime(ctx context.Context, keyword string, q Query) (Series, error)
}

// ReportStore defines persistence for completed reports
type ReportStore interface {
	// SaveReport stores a report with its table and statistics
	SaveReport(ctx context.Context, r *Report) error

	// GetReport returns a report by ID
	GetReport(ctx context.Context, id string) (*Report, error)

	// LatestReport returns the most recently generated report
	LatestReport(ctx context.Context) (*Report, error)

	// ListReports returns report summaries, newest first
	ListReports(ctx context.Context, limit int) ([]Summary, error)
}

// Publisher announces completed reports to interested parties
type Publisher interface {
	PublishReport(ctx context.Context, r *Report) error
}
