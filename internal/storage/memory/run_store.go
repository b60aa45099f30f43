// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

// DefaultCapacity bounds how many runs a RunStore keeps.
const DefaultCapacity = 256

// RunStore keeps recent run summaries in memory.
type RunStore struct {
	mu       sync.RWMutex
	runs     []crawler.RunSummary
	capacity int
}

// NewRunStore constructs a RunStore holding at most capacity runs.
func NewRunStore(capacity int) *RunStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RunStore{capacity: capacity}
}

// RecordRun stores a finished run, evicting the oldest past capacity.
func (s *RunStore) RecordRun(_ context.Context, summary crawler.RunSummary) error {
	if summary.RunID == "" {
		return errors.New("run id is required")
	}
	summary.Records = nil
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, summary)
	if len(s.runs) > s.capacity {
		s.runs = append([]crawler.RunSummary(nil), s.runs[len(s.runs)-s.capacity:]...)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every stored run.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]crawler.RunSummary, error) {
	s.mu.RLock()
	out := make([]crawler.RunSummary, len(s.runs))
	copy(out, s.runs)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
