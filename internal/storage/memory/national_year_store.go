package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// NationalYearStore is an in-memory implementation of storage.NationalYearStore.
type NationalYearStore struct {
	mu   sync.RWMutex
	data map[string]*domain.NationalYearSummary // keyed by set|measure|year
}

// NewNationalYearStore creates a new in-memory national year store.
func NewNationalYearStore() *NationalYearStore {
	return &NationalYearStore{
		data: make(map[string]*domain.NationalYearSummary),
	}
}

func nationalYearKey(set domain.ResultSet, measure string, year int) string {
	return setKey(set, fmt.Sprintf("%s|%d", measure, year))
}

// InsertBulk adds multiple summaries atomically. Fails entire batch on any duplicate.
func (s *NationalYearStore) InsertBulk(_ context.Context, summaries []*domain.NationalYearSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(summaries))
	for _, n := range summaries {
		if n == nil || n.Measure == "" {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(n.ResultSet); err != nil {
			return err
		}
		key := nationalYearKey(n.ResultSet, n.Measure, n.Year)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, n := range summaries {
		nCopy := *n
		s.data[nationalYearKey(n.ResultSet, n.Measure, n.Year)] = &nCopy
	}
	return nil
}

// GetByMeasure retrieves the set's summaries for one measure ordered by year ASC.
func (s *NationalYearStore) GetByMeasure(_ context.Context, set domain.ResultSet, measure string) ([]*domain.NationalYearSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NationalYearSummary
	for _, n := range s.data {
		if n.ResultSet == set && n.Measure == measure {
			nCopy := *n
			result = append(result, &nCopy)
		}
	}
	sortNationalYears(result)
	return result, nil
}

// GetAll retrieves the set's summaries ordered by (measure, year) ASC.
func (s *NationalYearStore) GetAll(_ context.Context, set domain.ResultSet) ([]*domain.NationalYearSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NationalYearSummary
	for _, n := range s.data {
		if n.ResultSet != set {
			continue
		}
		nCopy := *n
		result = append(result, &nCopy)
	}
	sortNationalYears(result)
	return result, nil
}

func sortNationalYears(rows []*domain.NationalYearSummary) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Measure != rows[j].Measure {
			return rows[i].Measure < rows[j].Measure
		}
		return rows[i].Year < rows[j].Year
	})
}

var _ storage.NationalYearStore = (*NationalYearStore)(nil)
