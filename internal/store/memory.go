package store

import (
	"errors"
	"sync"
	"time"

	"github.com/satdata/tracegas-aggregation/internal/tracegas"
)

var (
	// ErrNotFound is returned when no result is stored for a given field.
	ErrNotFound = errors.New("no gridded result for field")
)

// ResultHistory holds a time-ordered list of gridded results for one map field.
type ResultHistory struct {
	Results []*tracegas.GriddedResult
}

// MemoryStore is a concurrency-safe in-memory store of averaging results.
type MemoryStore struct {
	mu sync.RWMutex

	// key: map field name, value: history
	data map[string]*ResultHistory

	// retention configuration
	maxHistory int           // max number of results per field
	maxAge     time.Duration // optional max age for results
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ResultHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Save appends a new result under its map field and enforces retention.
func (s *MemoryStore) Save(result *tracegas.GriddedResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[result.Field]
	if !ok {
		history = &ResultHistory{}
		s.data[result.Field] = history
	}

	history.Results = append(history.Results, result)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Results) > s.maxHistory {
		over := len(history.Results) - s.maxHistory
		history.Results = history.Results[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Results); i++ {
			if !history.Results[i].GeneratedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history.Results) {
			history.Results = history.Results[i:]
		}
	}
}

// Latest returns the most recent result for a map field.
func (s *MemoryStore) Latest(field string) (*tracegas.GriddedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[field]
	if !ok || len(history.Results) == 0 {
		return nil, ErrNotFound
	}
	return history.Results[len(history.Results)-1], nil
}

// Range returns all results for a map field generated between from and to
// (inclusive).
func (s *MemoryStore) Range(field string, from, to time.Time) ([]*tracegas.GriddedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[field]
	if !ok || len(history.Results) == 0 {
		return nil, ErrNotFound
	}

	var result []*tracegas.GriddedResult
	for _, r := range history.Results {
		if !r.GeneratedAt.Before(from) && !r.GeneratedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
