package testutils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/reveriehq/engram/pkg/storage"
)

// MemorySummaryStore is an in-memory storage.SummaryStore enforcing the same
// per-window uniqueness as the SQL stores.
type MemorySummaryStore struct {
	mu        sync.Mutex
	summaries map[string]*storage.WindowSummary

	// FailInsert causes Insert to return an error.
	FailInsert bool
}

// NewMemorySummaryStore creates an empty in-memory summary store.
func NewMemorySummaryStore() *MemorySummaryStore {
	return &MemorySummaryStore{
		summaries: make(map[string]*storage.WindowSummary),
	}
}

func (s *MemorySummaryStore) Insert(_ context.Context, summary *storage.WindowSummary) (bool, error) {
	if s.FailInsert {
		return false, fmt.Errorf("mock summary insert failure")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := windowKey(summary.OwnerKey, summary.WindowStart, summary.WindowEnd)
	if _, exists := s.summaries[key]; exists {
		return false, nil
	}
	cp := *summary
	s.summaries[key] = &cp
	return true, nil
}

func (s *MemorySummaryStore) LatestWindowEnd(_ context.Context, ownerKey string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest time.Time
	for _, sum := range s.summaries {
		if sum.OwnerKey == ownerKey && sum.WindowEnd.After(latest) {
			latest = sum.WindowEnd
		}
	}
	return latest, nil
}

func (s *MemorySummaryStore) List(_ context.Context, ownerKey string, limit int) ([]*storage.WindowSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*storage.WindowSummary
	for _, sum := range s.summaries {
		if sum.OwnerKey == ownerKey {
			cp := *sum
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowStart.After(out[j].WindowStart) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemorySummaryStore) Close() error {
	return nil
}

// Len reports the number of stored summaries.
func (s *MemorySummaryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaries)
}

func windowKey(owner string, start, end time.Time) string {
	return fmt.Sprintf("%s/%d/%d", owner, start.Unix(), end.Unix())
}

var _ storage.SummaryStore = (*MemorySummaryStore)(nil)
