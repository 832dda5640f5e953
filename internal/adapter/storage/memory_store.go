package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trendscope/internal/domain/trend"
)

// MemoryStore keeps reports in process memory. It is used when no database is
// configured.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*trend.Report
	max     int
}

// NewMemoryStore creates a store keeping at most max reports (0 = unbounded).
// The oldest reports are evicted first.
func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*trend.Report),
		max:     max,
	}
}

// SaveReport stores a report
func (s *MemoryStore) SaveReport(ctx context.Context, r *trend.Report) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("report ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.ID]; exists {
		return fmt.Errorf("report %s already stored", r.ID)
	}
	s.reports[r.ID] = r

	if s.max > 0 && len(s.reports) > s.max {
		ordered := s.ordered()
		for _, old := range ordered[s.max:] {
			delete(s.reports, old.ID)
		}
	}

	return nil
}

// GetReport retrieves a report by ID
func (s *MemoryStore) GetReport(ctx context.Context, id string) (*trend.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, trend.ErrNotFound
	}
	return r, nil
}

// LatestReport retrieves the most recently generated report
func (s *MemoryStore) LatestReport(ctx context.Context) (*trend.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.ordered()
	if len(ordered) == 0 {
		return nil, trend.ErrNotFound
	}
	return ordered[0], nil
}

// ListReports returns report summaries, newest first
func (s *MemoryStore) ListReports(ctx context.Context, limit int) ([]trend.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.ordered()
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}

	summaries := make([]trend.Summary, 0, len(ordered))
	for _, r := range ordered {
		summaries = append(summaries, r.Summarize())
	}
	return summaries, nil
}

// ordered returns reports newest first; callers hold the lock
func (s *MemoryStore) ordered() []*trend.Report {
	out := make([]*trend.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out
}
