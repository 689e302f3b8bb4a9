package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// IntervalCountStore is an in-memory implementation of storage.IntervalCountStore.
type IntervalCountStore struct {
	mu   sync.RWMutex
	data map[string]*domain.IntervalCount // keyed by measure|site|date
}

// NewIntervalCountStore creates a new in-memory interval count store.
func NewIntervalCountStore() *IntervalCountStore {
	return &IntervalCountStore{
		data: make(map[string]*domain.IntervalCount),
	}
}

func intervalKey(measure string, siteID int64, start string) string {
	return fmt.Sprintf("%s|%d|%s", measure, siteID, start)
}

func validInterval(r *domain.IntervalCount) bool {
	return r != nil && r.Measure != "" && !r.IntervalStart.IsZero() && r.Numerator >= 0 && r.Denominator > 0
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *IntervalCountStore) InsertBulk(_ context.Context, rows []*domain.IntervalCount) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))

	// First pass: validate and check duplicates (existing + intra-batch)
	for _, r := range rows {
		if !validInterval(r) {
			return storage.ErrInvalidInput
		}
		key := intervalKey(r.Measure, r.SiteID, r.IntervalStart.Format(dateLayout))
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert copies
	for _, r := range rows {
		key := intervalKey(r.Measure, r.SiteID, r.IntervalStart.Format(dateLayout))
		rowCopy := *r
		s.data[key] = &rowCopy
	}

	return nil
}

// GetAll retrieves all rows ordered by (measure, site_id, interval_start) ASC.
func (s *IntervalCountStore) GetAll(_ context.Context) ([]*domain.IntervalCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.IntervalCount, 0, len(s.data))
	for _, r := range s.data {
		rowCopy := *r
		result = append(result, &rowCopy)
	}
	sortIntervals(result)
	return result, nil
}

// GetByMeasure retrieves rows for one measure ordered by (site_id, interval_start) ASC.
func (s *IntervalCountStore) GetByMeasure(_ context.Context, measure string) ([]*domain.IntervalCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IntervalCount
	for _, r := range s.data {
		if r.Measure == measure {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}
	sortIntervals(result)
	return result, nil
}

// Measures returns the distinct measures, sorted.
func (s *IntervalCountStore) Measures(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, r := range s.data {
		seen[r.Measure] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for m := range seen {
		result = append(result, m)
	}
	sort.Strings(result)
	return result, nil
}

func sortIntervals(rows []*domain.IntervalCount) {
	sort.Slice(rows, func(i, j int) bool {
		return domain.CompareIntervals(rows[i], rows[j]) < 0
	})
}

var _ storage.IntervalCountStore = (*IntervalCountStore)(nil)
