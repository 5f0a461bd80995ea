package swarm

import (
	"context"
	"sort"
	"sync"
)

// MemoryStateStore is an in-process StateStore for tests and ephemeral
// runs. It stores copies, so callers can keep mutating their checkpoint
// between saves.
type MemoryStateStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{checkpoints: map[string]*Checkpoint{}}
}

func (s *MemoryStateStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.ID] = cp.Copy()
	return nil
}

func (s *MemoryStateStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, nil
	}
	return cp.Copy(), nil
}

func (s *MemoryStateStore) List(ctx context.Context, filter CheckpointFilter) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Checkpoint
	for _, cp := range s.checkpoints {
		if filter.matches(cp) {
			out = append(out, cp.Copy())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStateStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkpoints[id]; !ok {
		return ErrCheckpointNotFound
	}
	delete(s.checkpoints, id)
	return nil
}

func (s *MemoryStateStore) GetLatest(ctx context.Context, workflowName string) (*Checkpoint, error) {
	checkpoints, err := s.List(ctx, CheckpointFilter{WorkflowName: workflowName})
	if err != nil || len(checkpoints) == 0 {
		return nil, err
	}
	return checkpoints[0], nil
}
