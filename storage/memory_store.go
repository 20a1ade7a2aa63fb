// storage/memory_store.go
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chhz0/dslproc/types"
	"github.com/google/uuid"
)

type MemoryStorage struct {
	results map[string]*types.Result
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		results: make(map[string]*types.Result),
	}
}

func (s *MemoryStorage) SaveResult(ctx context.Context, result *types.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.ID == "" {
		result.ID = generateID()
	}
	if result.FinishedAt.IsZero() {
		result.FinishedAt = time.Now()
	}
	cp := *result
	cp.Options = result.Options.Clone()
	s.results[result.ID] = &cp
	return nil
}

func (s *MemoryStorage) GetResult(ctx context.Context, id string) (*types.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[id]
	if !ok {
		return nil, ErrResultNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStorage) ListResults(ctx context.Context, runID string, limit int) ([]*types.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Result
	for _, r := range s.results {
		if r.RunID == runID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) Close() error {
	return nil // 无需关闭操作
}

func generateID() string {
	return uuid.New().String()
}
