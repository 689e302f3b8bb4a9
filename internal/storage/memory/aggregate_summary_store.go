package memory

import (
	"context"
	"sort"
	"sync"

	"seasonality-lab/internal/domain"
	"seasonality-lab/internal/storage"
)

// AggregateSummaryStore is an in-memory implementation of storage.AggregateSummaryStore.
type AggregateSummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AggregateSummary // keyed by set|measure|season|period
}

// NewAggregateSummaryStore creates a new in-memory aggregate summary store.
func NewAggregateSummaryStore() *AggregateSummaryStore {
	return &AggregateSummaryStore{
		data: make(map[string]*domain.AggregateSummary),
	}
}

func summaryGroup(a *domain.AggregateSummary) domain.GroupKey {
	return domain.GroupKey{Measure: a.Measure, Season: a.Season, PandemicPeriod: a.PandemicPeriod}
}

// InsertBulk adds multiple summaries atomically. Fails entire batch on any duplicate.
func (s *AggregateSummaryStore) InsertBulk(_ context.Context, summaries []*domain.AggregateSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(summaries))
	for _, a := range summaries {
		if a == nil || a.Measure == "" || a.Season == "" || a.PandemicPeriod == "" {
			return storage.ErrInvalidInput
		}
		if err := storage.CheckResultSet(a.ResultSet); err != nil {
			return err
		}
		key := setKey(a.ResultSet, groupKey(summaryGroup(a)))
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, a := range summaries {
		s.data[setKey(a.ResultSet, groupKey(summaryGroup(a)))] = copySummary(a)
	}
	return nil
}

// GetByKey retrieves one summary. Returns ErrNotFound if not exists.
func (s *AggregateSummaryStore) GetByKey(_ context.Context, set domain.ResultSet, group domain.GroupKey) (*domain.AggregateSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[setKey(set, groupKey(group))]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySummary(a), nil
}

// GetAll retrieves the set's summaries ordered by (measure, season, pandemic_period) ASC.
func (s *AggregateSummaryStore) GetAll(_ context.Context, set domain.ResultSet) ([]*domain.AggregateSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AggregateSummary
	for _, a := range s.data {
		if a.ResultSet == set {
			result = append(result, copySummary(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return compareGroups(summaryGroup(result[i]), summaryGroup(result[j])) < 0
	})
	return result, nil
}

func copySummary(a *domain.AggregateSummary) *domain.AggregateSummary {
	c := *a
	c.PooledRRRolling = copyFloat(a.PooledRRRolling)
	c.PooledRDRolling = copyFloat(a.PooledRDRolling)
	c.PooledRRAnchor = copyFloat(a.PooledRRAnchor)
	c.PooledRDAnchor = copyFloat(a.PooledRDAnchor)
	c.SiteRRRolling = copyFloat(a.SiteRRRolling)
	c.SiteRDRolling = copyFloat(a.SiteRDRolling)
	c.SiteRRAnchor = copyFloat(a.SiteRRAnchor)
	c.SiteRDAnchor = copyFloat(a.SiteRDAnchor)
	c.PropSignificant = copyFloat(a.PropSignificant)
	c.PropSignificantAdj = copyFloat(a.PropSignificantAdj)
	return &c
}

var _ storage.AggregateSummaryStore = (*AggregateSummaryStore)(nil)
